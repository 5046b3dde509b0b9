package conf

import "fmt"

// maxRecvBufSize matches the wire type of tcpcm.ParamRecvBufSize
// (uint16): a configured value above this cannot be expressed as that
// parameter.
const maxRecvBufSize = 65535

func (t *Tuning) setDefaults() {
	if t.RecvBufSize == 0 {
		// Scale modestly with CPU count, bounded tightly since this is a
		// single-connection-manager buffer size, not a worker pool.
		t.RecvBufSize = clampInt(sysCPUCount()*4096, 16384, maxRecvBufSize)
	}
	if t.StatsIntervalSeconds == 0 {
		t.StatsIntervalSeconds = 30
	}
}

func (t *Tuning) validate() []error {
	var errs []error
	if t.RecvBufSize < 1024 || t.RecvBufSize > maxRecvBufSize {
		errs = append(errs, fmt.Errorf("tuning.recv_bufsize must be between 1024 and %d bytes", maxRecvBufSize))
	}
	if t.StatsIntervalSeconds < 0 || t.StatsIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("tuning.stats_interval_seconds must be between 0 and 3600"))
	}
	return errs
}

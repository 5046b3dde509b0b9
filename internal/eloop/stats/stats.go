// Package stats is a periodic connection-count/byte-count reporter
// driven by the loop's own cyclic timer instead of a side goroutine
// plus time.Ticker, since the loop is this codebase's one clock
// source.
package stats

import (
	"time"

	"eloop"
	"eloop/internal/eloop/timer"
	"eloop/internal/elog"
)

// Source is anything a Reporter can summarize: a tcpcm.Manager
// satisfies this without stats needing to import tcpcm.
type Source interface {
	Name() string
	ConnectionCount() int
	BytesSent() uint64
	BytesReceived() uint64
}

// Reporter logs a one-line summary per Source on a fixed cyclic
// interval. A Source with no connections and no bytes moved since the
// previous report is skipped.
type Reporter struct {
	logger  elog.Logger
	sources []Source

	lastSent map[string]uint64
	lastRecv map[string]uint64

	timerID uint64
	loop    *eloop.Loop
}

// New builds a Reporter over sources. Call Attach to start logging on
// loop's cyclic timer.
func New(logger elog.Logger, sources ...Source) *Reporter {
	if logger == nil {
		logger = elog.Discard()
	}
	return &Reporter{
		logger:   logger,
		sources:  sources,
		lastSent: make(map[string]uint64),
		lastRecv: make(map[string]uint64),
	}
}

// Attach schedules a cyclic timer on loop that logs a summary every
// interval, starting at the first fire interval from now. Attach must
// be called after loop.Start. Uses CurrentTime rescheduling: if the
// loop falls behind, reporting cadence tracks real elapsed time rather
// than firing once per missed interval.
func (r *Reporter) Attach(loop *eloop.Loop, interval time.Duration) error {
	r.loop = loop
	id, err := loop.AddCyclic(r.report, interval, time.Time{}, timer.CurrentTime)
	if err != nil {
		return err
	}
	r.timerID = id
	return nil
}

// Detach removes the reporter's cyclic timer. Safe to call even if
// Attach was never called.
func (r *Reporter) Detach() {
	if r.loop == nil {
		return
	}
	r.loop.RemoveCyclic(r.timerID)
}

func (r *Reporter) report(time.Time) {
	for _, s := range r.sources {
		sent := s.BytesSent()
		recv := s.BytesReceived()
		conns := s.ConnectionCount()

		deltaSent := sent - r.lastSent[s.Name()]
		deltaRecv := recv - r.lastRecv[s.Name()]
		r.lastSent[s.Name()] = sent
		r.lastRecv[s.Name()] = recv

		if conns == 0 && deltaSent == 0 && deltaRecv == 0 {
			continue
		}
		r.logger.Infof("%s: connections=%d sent=+%d recv=+%d (totals sent=%d recv=%d)",
			s.Name(), conns, deltaSent, deltaRecv, sent, recv)
	}
}

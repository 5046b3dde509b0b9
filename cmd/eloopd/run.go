package main

import (
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"eloop"
	"eloop/internal/conf"
	"eloop/internal/eloop/interruptcm"
	"eloop/internal/eloop/params"
	"eloop/internal/eloop/stats"
	"eloop/internal/eloop/tcpcm"
	"eloop/internal/elog"
)

var confPath string

func init() {
	runCmd.Flags().StringVarP(&confPath, "config", "c", "config.yaml", "Path to the configuration file.")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the event loop in client or server role based on the config file.",
	Long:  `The 'run' command reads the specified YAML configuration file and drives the event loop until an interrupt signal is received.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := conf.LoadFromFile(confPath)
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		if err := runLoop(cfg); err != nil {
			log.Fatalf("eloopd exited with error: %v", err)
		}
	},
}

// runLoop builds the Loop, registers its Event Sources per cfg, and
// drives Run cycles until an interrupt signal transitions the loop
// into Stopping.
func runLoop(cfg *conf.Conf) error {
	logger := elog.NewStdout(cfg.LogLevel())

	loop := eloop.New(logger)

	tcp := tcpcm.New("tcp", logger, func(id tcpcm.ConnID, statusErr error, payload []byte, p params.Map, ctx *any) {
		if statusErr != nil {
			logger.Infof("connection %d closed: %v", id, statusErr)
			return
		}
		if len(payload) > 0 {
			logger.Debugf("connection %d: %d bytes received", id, len(payload))
		}
	})

	tcpParams := params.New()
	if cfg.Listen.Port != 0 {
		tcpParams.Set(tcpcm.ParamListenPort, params.Uint16(cfg.Listen.Port))
		if len(cfg.Listen.Hostnames) > 0 {
			tcpParams.Set(tcpcm.ParamListenHostnames, params.Strings(cfg.Listen.Hostnames))
		}
	}
	tcpParams.Set(tcpcm.ParamRecvBufSize, params.Uint16(clampToUint16(cfg.Tuning.RecvBufSize)))
	tcp.Configure(tcpParams)

	shutdown := make(chan struct{})
	interrupt := interruptcm.New("interrupt", logger, func(sig os.Signal) {
		logger.Infof("received signal %v, shutting down", sig)
		close(shutdown)
	})

	if err := loop.RegisterEventSource(tcp); err != nil {
		return err
	}
	if err := loop.RegisterEventSource(interrupt); err != nil {
		return err
	}
	if err := loop.Start(); err != nil {
		return err
	}

	if cfg.Role == "client" && cfg.Connect.Hostname != "" {
		dial := params.New()
		dial.Set(tcpcm.ParamHostname, params.String(cfg.Connect.Hostname))
		dial.Set(tcpcm.ParamPort, params.Uint16(cfg.Connect.Port))
		if _, err := tcp.OpenConnection(dial); err != nil {
			logger.Errorf("failed to open connection to %s:%d: %v", cfg.Connect.Hostname, cfg.Connect.Port, err)
		}
	}

	var reporter *stats.Reporter
	if cfg.Tuning.StatsIntervalSeconds > 0 {
		reporter = stats.New(logger, tcp)
		if err := reporter.Attach(loop, time.Duration(cfg.Tuning.StatsIntervalSeconds)*time.Second); err != nil {
			logger.Warnf("failed to attach stats reporter: %v", err)
			reporter = nil
		}
	}

	logger.Infof("eloopd started: role=%s", cfg.Role)

	stopRequested := false
	for loop.State() != eloop.Stopped {
		select {
		case <-shutdown:
			if !stopRequested {
				stopRequested = true
				if err := loop.Stop(); err != nil {
					logger.Warnf("stop: %v", err)
				}
			}
		default:
		}
		if _, err := loop.Run(100 * time.Millisecond); err != nil {
			return err
		}
	}

	if reporter != nil {
		reporter.Detach()
	}
	return loop.Free()
}

func clampToUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

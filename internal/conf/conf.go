// Package conf is the YAML application configuration for cmd/eloopd:
// role, logging, listen/connect endpoints, and buffer/tuning knobs.
// Uses a two-phase setDefaults/validate shape and loads YAML via
// goccy/go-yaml.
package conf

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"eloop/internal/elog"
)

// Conf is the top-level application configuration, loaded once at
// startup from a YAML file.
type Conf struct {
	// Role selects whether eloopd listens (server) or dials out (client).
	Role string `yaml:"role"`

	Log     Log     `yaml:"log"`
	Listen  Listen  `yaml:"listen"`
	Connect Connect `yaml:"connect"`
	Tuning  Tuning  `yaml:"tuning"`
}

// Log controls the application logger's verbosity.
type Log struct {
	Level string `yaml:"level"`
}

// Listen configures the TCP Connection Manager's listening side.
// Omitting Port entirely means "don't listen" (a pure client).
type Listen struct {
	Port      uint16   `yaml:"port"`
	Hostnames []string `yaml:"hostnames"`
}

// Connect configures an outbound connection opened at startup. Omitting
// Hostname entirely means "don't dial automatically" (a pure server).
type Connect struct {
	Hostname string `yaml:"hostname"`
	Port     uint16 `yaml:"port"`
}

// Tuning holds the TCP Connection Manager's receive buffer size and the
// stats reporting interval.
type Tuning struct {
	// RecvBufSize is the per-connection receive buffer size in bytes.
	RecvBufSize int `yaml:"recv_bufsize"`

	// StatsIntervalSeconds controls how often internal/eloop/stats
	// logs a connection/byte-count summary. 0 disables periodic
	// reporting.
	StatsIntervalSeconds int `yaml:"stats_interval_seconds"`
}

// LoadFromFile reads path, unmarshals it into a Conf, applies defaults,
// and validates the result, returning the first validation error
// joined with every other one found (so a misconfigured file reports
// everything wrong with it in one pass, not one field at a time).
func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var c Conf
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	c.setDefaults()
	if errs := c.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", joinErrors(errs))
	}
	return &c, nil
}

func (c *Conf) setDefaults() {
	if c.Role == "" {
		c.Role = "server"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Tuning.setDefaults()
}

func (c *Conf) validate() []error {
	var errs []error
	if c.Role != "client" && c.Role != "server" {
		errs = append(errs, fmt.Errorf("role must be \"client\" or \"server\", got %q", c.Role))
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug/info/warn/error/none", c.Log.Level))
	}
	if c.Role == "client" && c.Connect.Hostname == "" {
		errs = append(errs, fmt.Errorf("connect.hostname is required when role is \"client\""))
	}
	if c.Role == "server" && c.Listen.Port == 0 {
		errs = append(errs, fmt.Errorf("listen.port is required when role is \"server\""))
	}
	errs = append(errs, c.Tuning.validate()...)
	return errs
}

// LogLevel resolves the configured textual level into an elog.Level.
func (c *Conf) LogLevel() elog.Level {
	lvl, _ := parseLevel(c.Log.Level)
	return lvl
}

func parseLevel(s string) (elog.Level, bool) {
	switch s {
	case "debug":
		return elog.Debug, true
	case "info":
		return elog.Info, true
	case "warn":
		return elog.Warn, true
	case "error":
		return elog.Error, true
	case "none":
		return elog.None, true
	default:
		return elog.Info, false
	}
}

func joinErrors(errs []error) error {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}

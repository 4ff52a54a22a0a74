// Package config loads the settings of a simulation run from defaults, a YAML
// file, a .env file, environment variables, and command line flags.
package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/desim/sim"
)

// Output formats of the run report.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Default values.
const (
	DefaultLogLevel = "info"
	DefaultOutput   = OutputTable
)

// RunConfig holds everything needed to run a model.
type RunConfig struct {
	Model       string  `koanf:"model"`
	Until       float64 `koanf:"until"`
	MaxEvents   uint64  `koanf:"max_events"`
	TraceDB     string  `koanf:"trace_db"`
	Monitor     bool    `koanf:"monitor"`
	MonitorPort int     `koanf:"monitor_port"`
	OpenBrowser bool    `koanf:"open_browser"`
	LogLevel    string  `koanf:"log_level"`
	LogEvents   bool    `koanf:"log_events"`
	Output      string  `koanf:"output"`

	// HasUntil is true when a horizon was given by any source.
	HasUntil bool `koanf:"-"`

	// Params are the model parameters, flattened with "." between levels.
	Params map[string]any `koanf:"-"`

	// Sweeps are the parameter sets of a sweep, each laid over Params. A
	// config without sweeps runs once.
	Sweeps []map[string]any `koanf:"-"`
}

// Limits converts the horizon and the event budget into run limits.
func (c *RunConfig) Limits() sim.RunLimits {
	limits := sim.NoLimits()

	if c.HasUntil {
		limits = limits.WithUntil(sim.VTimeInSec(c.Until))
	}

	if c.MaxEvents > 0 {
		limits = limits.WithMaxEvents(c.MaxEvents)
	}

	return limits
}

// Level returns the parsed log level.
func (c *RunConfig) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// Validate checks that the configuration can be used to run a model.
func (c *RunConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.HasUntil && c.Until < 0 {
		return fmt.Errorf("until must not be negative, got %g", c.Until)
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return fmt.Errorf("invalid monitor port %d", c.MonitorPort)
	}

	if !c.Monitor && c.OpenBrowser {
		return fmt.Errorf("open_browser requires monitor")
	}

	if c.Output != OutputTable && c.Output != OutputJSON {
		return fmt.Errorf("output must be %s or %s, got %q",
			OutputTable, OutputJSON, c.Output)
	}

	if len(c.Sweeps) > 0 && c.TraceDB != "" {
		return fmt.Errorf("trace_db cannot be used with a sweep")
	}

	if len(c.Sweeps) > 0 && c.Monitor {
		return fmt.Errorf("monitor cannot be used with a sweep")
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

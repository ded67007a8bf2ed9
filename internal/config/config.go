// Package config provides configuration management for procwarden.
package config

import (
	"fmt"
	"time"

	"github.com/procwarden/procwarden/internal/worker"
)

// WorkerConfig describes one managed worker as it appears in the config
// file. It is converted to a worker.Spec at startup.
type WorkerConfig struct {
	Name         string        `koanf:"name"`
	Path         string        `koanf:"path"`
	Args         []string      `koanf:"args"`
	RestartDelay time.Duration `koanf:"restart_delay"` // 0 = inherit global
	Privilege    string        `koanf:"privilege"`     // normal, elevated
	Mode         string        `koanf:"mode"`          // supervised, oneshot
}

// Config holds all configuration options for the supervisor.
type Config struct {
	// Workers
	Workers []WorkerConfig `koanf:"workers"`

	// Restart policy
	RestartPolicy   string        `koanf:"restart_policy"` // fixed, backoff
	RestartDelay    time.Duration `koanf:"restart_delay"`  // default per-worker delay
	MaxRestarts     int           `koanf:"max_restarts"`   // 0 = unlimited
	BackoffInitial  time.Duration `koanf:"backoff_initial"`
	BackoffMax      time.Duration `koanf:"backoff_max"`
	BackoffMultiply float64       `koanf:"backoff_multiply"`

	// Maintenance
	FlushInterval time.Duration `koanf:"flush_interval"` // 0 = scheduler disabled
	SpoolPath     string        `koanf:"spool_path"`
	UploadURL     string        `koanf:"upload_url"`

	// Launcher
	SudoPath        string        `koanf:"sudo_path"`
	CaptureStderr   bool          `koanf:"capture_stderr"`
	StderrTailLines int           `koanf:"stderr_tail_lines"`
	StopGrace       time.Duration `koanf:"stop_grace"`

	// Observability
	MetricsAddr string `koanf:"metrics_addr"` // "" = metrics server disabled
	Verbose     bool   `koanf:"verbose"`
	LogFormat   string `koanf:"log_format"` // json, text
	LogLevel    string `koanf:"log_level"`
	LogFile     string `koanf:"log_file"` // "" = console only

	// Dashboard
	TUIEnabled bool `koanf:"tui"`

	// Diagnostic modes
	PrintSpecs    bool `koanf:"print_specs"`
	SkipPreflight bool `koanf:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Restart policy
		RestartPolicy:   "fixed",
		RestartDelay:    5 * time.Second,
		MaxRestarts:     0, // Unlimited
		BackoffInitial:  250 * time.Millisecond,
		BackoffMax:      5 * time.Second,
		BackoffMultiply: 1.7,

		// Maintenance
		FlushInterval: 60 * time.Second,
		SpoolPath:     "spool.txt",

		// Launcher
		SudoPath:        "sudo",
		CaptureStderr:   true,
		StderrTailLines: worker.DefaultTailLines,
		StopGrace:       worker.DefaultStopGrace,

		// Observability
		MetricsAddr: "0.0.0.0:17091",
		Verbose:     false,
		LogFormat:   "json",
		LogLevel:    "info",

		// Dashboard
		TUIEnabled: false,
	}
}

// Specs converts the configured workers to worker.Specs, applying the
// global restart delay where a worker does not set its own.
func (c *Config) Specs() ([]worker.Spec, error) {
	specs := make([]worker.Spec, 0, len(c.Workers))
	for i, wc := range c.Workers {
		priv, err := worker.ParsePrivilege(wc.Privilege)
		if err != nil {
			return nil, fmt.Errorf("worker %d (%s): %w", i, wc.Path, err)
		}
		mode, err := worker.ParseRunMode(wc.Mode)
		if err != nil {
			return nil, fmt.Errorf("worker %d (%s): %w", i, wc.Path, err)
		}

		delay := wc.RestartDelay
		if delay == 0 {
			delay = c.RestartDelay
		}

		specs = append(specs, worker.Spec{
			Name:         wc.Name,
			Path:         wc.Path,
			Args:         wc.Args,
			RestartDelay: delay,
			Privilege:    priv,
			Mode:         mode,
		})
	}
	return specs, nil
}

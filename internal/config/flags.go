package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// workerList is a custom flag type for repeatable -worker flags. Each
// value is an executable path followed by its arguments, e.g.
// -worker "/usr/local/bin/agent --poll 5".
type workerList []WorkerConfig

func (w *workerList) String() string {
	paths := make([]string, len(*w))
	for i, wc := range *w {
		paths[i] = wc.Path
	}
	return strings.Join(paths, ", ")
}

func (w *workerList) Set(value string) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fmt.Errorf("empty worker definition")
	}
	*w = append(*w, WorkerConfig{
		Path: fields[0],
		Args: fields[1:],
	})
	return nil
}

// ParseFlags parses command-line flags and returns a Config. Precedence:
// defaults, then the config file, then PROCWARDEN_* environment
// variables, then explicitly set flags.
func ParseFlags() (*Config, error) {
	// Flags bind to an overlay so the config file cannot clobber values
	// the user set on the command line.
	overlay := DefaultConfig()
	var configPath string
	var workers workerList

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `procwarden - process supervisor with periodic spool flushing

Usage:
  procwarden [flags]
  procwarden -config procwarden.yaml

Workers:
`)
		printFlagCategory([]string{"config", "worker", "restart-delay", "restart-policy", "max-restarts"})

		fmt.Fprintf(os.Stderr, "\nBackoff Policy:\n")
		printFlagCategory([]string{"backoff-initial", "backoff-max", "backoff-multiply"})

		fmt.Fprintf(os.Stderr, "\nMaintenance:\n")
		printFlagCategory([]string{"flush-interval", "spool", "upload-url"})

		fmt.Fprintf(os.Stderr, "\nLauncher:\n")
		printFlagCategory([]string{"sudo-path", "capture-stderr", "stderr-tail", "stop-grace"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format", "log-level", "log-file", "tui"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"print-specs", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Supervise two daemons with a 5s restart delay
  procwarden -worker "/usr/local/bin/agent --poll 5" -worker /usr/sbin/collector

  # Full config from a file, flushing the spool hourly
  procwarden -config /etc/procwarden/procwarden.yaml

  # Environment override
  PROCWARDEN_METRICS_ADDR=:9000 procwarden -config procwarden.yaml

`)
	}

	// Workers
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.Var(&workers, "worker", "Add a worker: executable path plus arguments (can repeat)")
	flag.DurationVar(&overlay.RestartDelay, "restart-delay", overlay.RestartDelay, "Default wait between worker exit and relaunch")
	flag.StringVar(&overlay.RestartPolicy, "restart-policy", overlay.RestartPolicy, `Restart policy: "fixed" or "backoff"`)
	flag.IntVar(&overlay.MaxRestarts, "max-restarts", overlay.MaxRestarts, "Restart budget per worker (0 = unlimited)")

	// Backoff policy
	flag.DurationVar(&overlay.BackoffInitial, "backoff-initial", overlay.BackoffInitial, "Initial backoff delay")
	flag.DurationVar(&overlay.BackoffMax, "backoff-max", overlay.BackoffMax, "Maximum backoff delay")
	flag.Float64Var(&overlay.BackoffMultiply, "backoff-multiply", overlay.BackoffMultiply, "Backoff multiplier per attempt")

	// Maintenance
	flag.DurationVar(&overlay.FlushInterval, "flush-interval", overlay.FlushInterval, "Interval between spool flushes")
	flag.StringVar(&overlay.SpoolPath, "spool", overlay.SpoolPath, "Local spool file to flush")
	flag.StringVar(&overlay.UploadURL, "upload-url", overlay.UploadURL, "Endpoint to POST spool contents to (empty = flushing disabled)")

	// Launcher
	flag.StringVar(&overlay.SudoPath, "sudo-path", overlay.SudoPath, "Elevation binary for elevated workers")
	flag.BoolVar(&overlay.CaptureStderr, "capture-stderr", overlay.CaptureStderr, "Capture worker stderr for crash diagnostics")
	flag.IntVar(&overlay.StderrTailLines, "stderr-tail", overlay.StderrTailLines, "Stderr lines to keep per worker")
	flag.DurationVar(&overlay.StopGrace, "stop-grace", overlay.StopGrace, "Wait after SIGTERM before SIGKILL on shutdown")

	// Observability
	flag.StringVar(&overlay.MetricsAddr, "metrics", overlay.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	flag.BoolVar(&overlay.Verbose, "v", overlay.Verbose, "Verbose logging")
	flag.StringVar(&overlay.LogFormat, "log-format", overlay.LogFormat, `Log format: "json" or "text"`)
	flag.StringVar(&overlay.LogLevel, "log-level", overlay.LogLevel, "Minimum log level")
	flag.StringVar(&overlay.LogFile, "log-file", overlay.LogFile, "Also append logs to this file")
	flag.BoolVar(&overlay.TUIEnabled, "tui", overlay.TUIEnabled, "Enable live terminal dashboard")

	// Diagnostics
	flag.BoolVar(&overlay.PrintSpecs, "print-specs", overlay.PrintSpecs, "Print resolved worker specs and exit")
	flag.BoolVar(&overlay.SkipPreflight, "skip-preflight", overlay.SkipPreflight, "Skip preflight checks")

	flag.Parse()

	cfg := DefaultConfig()
	if err := Load(configPath, cfg); err != nil {
		return nil, err
	}

	applyFlagOverrides(cfg, overlay)
	cfg.Workers = append(cfg.Workers, workers...)

	return cfg, nil
}

// applyFlagOverrides copies explicitly set flag values from the overlay
// onto the loaded config.
func applyFlagOverrides(cfg, overlay *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "restart-delay":
			cfg.RestartDelay = overlay.RestartDelay
		case "restart-policy":
			cfg.RestartPolicy = overlay.RestartPolicy
		case "max-restarts":
			cfg.MaxRestarts = overlay.MaxRestarts
		case "backoff-initial":
			cfg.BackoffInitial = overlay.BackoffInitial
		case "backoff-max":
			cfg.BackoffMax = overlay.BackoffMax
		case "backoff-multiply":
			cfg.BackoffMultiply = overlay.BackoffMultiply
		case "flush-interval":
			cfg.FlushInterval = overlay.FlushInterval
		case "spool":
			cfg.SpoolPath = overlay.SpoolPath
		case "upload-url":
			cfg.UploadURL = overlay.UploadURL
		case "sudo-path":
			cfg.SudoPath = overlay.SudoPath
		case "capture-stderr":
			cfg.CaptureStderr = overlay.CaptureStderr
		case "stderr-tail":
			cfg.StderrTailLines = overlay.StderrTailLines
		case "stop-grace":
			cfg.StopGrace = overlay.StopGrace
		case "metrics":
			cfg.MetricsAddr = overlay.MetricsAddr
		case "v":
			cfg.Verbose = overlay.Verbose
		case "log-format":
			cfg.LogFormat = overlay.LogFormat
		case "log-level":
			cfg.LogLevel = overlay.LogLevel
		case "log-file":
			cfg.LogFile = overlay.LogFile
		case "tui":
			cfg.TUIEnabled = overlay.TUIEnabled
		case "print-specs":
			cfg.PrintSpecs = overlay.PrintSpecs
		case "skip-preflight":
			cfg.SkipPreflight = overlay.SkipPreflight
		}
	})
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if _, err := time.ParseDuration(f.DefValue); err == nil {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}

// Package main provides the procwarden CLI entry point.
//
// procwarden is a process supervisor that keeps a fleet of worker
// executables running, restarting them after every exit, and
// periodically flushes a local spool file to a remote collector.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/procwarden/procwarden/internal/config"
	"github.com/procwarden/procwarden/internal/logging"
	"github.com/procwarden/procwarden/internal/orchestrator"
	"github.com/procwarden/procwarden/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/procwarden
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("procwarden %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, the dashboard owns the terminal, so logs go to
	// a file only (defaulting the path if none was given).
	var logger *slog.Logger
	var logCloser io.Closer
	switch {
	case cfg.TUIEnabled:
		f, ferr := os.OpenFile(tuiLogPath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", ferr)
			return 1
		}
		logger = logging.NewLoggerWithWriter(f, cfg.LogFormat, cfg.LogLevel)
		logCloser = f
		defer logCloser.Close()
	case cfg.LogFile != "":
		logger, logCloser, err = logging.NewFileLogger(cfg.LogFile, cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return 1
		}
		defer logCloser.Close()
	default:
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle --print-specs mode
	if cfg.PrintSpecs {
		return printSpecs(cfg)
	}

	orchestrator.Version = version

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"workers", len(cfg.Workers),
		"restart_policy", cfg.RestartPolicy,
		"metrics_addr", cfg.MetricsAddr,
	)

	var prog *tea.Program
	if cfg.TUIEnabled {
		prog = tea.NewProgram(tui.New(tui.Config{
			MetricsAddr: cfg.MetricsAddr,
			Source:      orch.Manager(),
		}), tea.WithAltScreen())

		go func() {
			if _, err := prog.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
			// Quitting the dashboard shuts the supervisor down.
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}()
	} else {
		printBanner(cfg)
	}

	err = orch.Run(context.Background())
	tui.SendQuit(prog)
	if err != nil {
		logger.Error("supervisor_failed", "error", err)
		return 1
	}

	return 0
}

// tuiLogPath returns the log file used while the TUI owns the terminal.
func tuiLogPath(cfg *config.Config) string {
	if cfg.LogFile != "" {
		return cfg.LogFile
	}
	return "procwarden.log"
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                           procwarden                              ║")
	fmt.Println("║            Keep-Alive Process Supervision and Spool Flush         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Workers:     %d supervised\n", len(cfg.Workers))
	fmt.Printf("  Policy:      %s restarts\n", cfg.RestartPolicy)
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.UploadURL != "" {
		fmt.Printf("  Spool:       %s flushed to %s every %s\n",
			cfg.SpoolPath, cfg.UploadURL, cfg.FlushInterval)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printSpecs prints the resolved worker specs and exits.
func printSpecs(cfg *config.Config) int {
	specs, err := cfg.Specs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("# Workers that would be supervised:")
	fmt.Println()
	for _, spec := range specs {
		line := spec.Path
		for _, arg := range spec.Args {
			line += " " + arg
		}
		fmt.Printf("%-24s %s\n", spec.Label(), line)
		fmt.Printf("%-24s   restart_delay=%s privilege=%s mode=%s\n",
			"", spec.RestartDelay, spec.Privilege, spec.Mode)
	}

	return 0
}

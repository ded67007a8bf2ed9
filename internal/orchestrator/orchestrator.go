package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/procwarden/procwarden/internal/config"
	"github.com/procwarden/procwarden/internal/logging"
	"github.com/procwarden/procwarden/internal/maintenance"
	"github.com/procwarden/procwarden/internal/metrics"
	"github.com/procwarden/procwarden/internal/preflight"
	"github.com/procwarden/procwarden/internal/scheduler"
	"github.com/procwarden/procwarden/internal/stats"
	"github.com/procwarden/procwarden/internal/supervisor"
	"github.com/procwarden/procwarden/internal/worker"
)

// Version is stamped by the build; "dev" otherwise.
var Version = "dev"

// Orchestrator is the supervisor root. It owns the worker manager, the
// maintenance scheduler, and the metrics server, and it never exits on
// its own: a fault in the root wait is logged FATAL and the process
// idles until externally killed.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger

	specs         []worker.Spec
	manager       *Manager
	sched         *scheduler.Scheduler
	metrics       *metrics.Collector
	metricsServer *metrics.Server

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	specs, err := cfg.Specs()
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:           Version,
		ConfiguredWorkers: len(specs),
	})

	o := &Orchestrator{
		config:  cfg,
		logger:  logger,
		specs:   specs,
		metrics: collector,
	}

	launcher := &worker.Launcher{
		SudoPath:      cfg.SudoPath,
		CaptureStderr: cfg.CaptureStderr,
		TailLines:     cfg.StderrTailLines,
		StopGrace:     cfg.StopGrace,
	}

	o.manager = NewManager(ManagerConfig{
		Launcher:      launcher,
		Logger:        logger,
		PolicyFactory: policyFactory(cfg),
		MaxRestarts:   cfg.MaxRestarts,
		Callbacks: ManagerCallbacks{
			OnWorkerStateChange: o.onStateChange,
			OnWorkerLaunch:      o.onLaunch,
			OnWorkerExit:        o.onExit,
			OnWorkerRestart:     o.onRestart,
			OnWorkerGiveUp:      o.onGiveUp,
		},
	})

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, logger, func() any {
			return o.manager.Snapshot()
		})
	}

	if cfg.UploadURL != "" {
		flusher := maintenance.New(maintenance.Config{
			SpoolPath: cfg.SpoolPath,
			Uploader:  &maintenance.HTTPUploader{URL: cfg.UploadURL},
			Logger:    logger,
			OnFlush:   collector.RecordFlush,
		})
		o.sched = scheduler.New(scheduler.Config{
			Interval: cfg.FlushInterval,
			Logger:   logger,
			Action:   flusher.FlushAndReset,
			OnFire: func(count int, err error) {
				collector.SchedulerFired(err)
			},
		})
	}

	return o, nil
}

// policyFactory maps the configured restart policy onto per-worker
// policy instances.
func policyFactory(cfg *config.Config) PolicyFactory {
	if cfg.RestartPolicy == "backoff" {
		bc := supervisor.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiply,
			JitterPct:  0.4,
		}
		return func(spec worker.Spec, seed int64) supervisor.RestartPolicy {
			return supervisor.NewBackoff(seed, bc)
		}
	}

	return func(spec worker.Spec, seed int64) supervisor.RestartPolicy {
		return supervisor.NewFixedDelay(spec.RestartDelay)
	}
}

// Run starts every component and blocks until an external signal ends
// the process. It returns only after graceful shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.specs, o.preflightSpoolPath())
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	o.logger.Info("supervisor_starting",
		"workers", len(o.specs),
		"flush_enabled", o.sched != nil,
	)

	for _, spec := range o.specs {
		if err := o.manager.StartWorker(ctx, spec); err != nil {
			return err
		}
	}

	if o.sched != nil {
		go func() {
			if err := o.sched.Run(ctx); err != nil {
				o.logger.Debug("scheduler_ended", "error", err)
			}
		}()
	}

	o.blockUntilSignal(ctx, sigCh)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		o.config.StopGrace+5*time.Second)
	defer shutdownCancel()

	if err := o.manager.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	o.printExitSummary()

	return nil
}

// preflightSpoolPath returns the spool path to check at startup, or ""
// when flushing is disabled and the spool is never touched.
func (o *Orchestrator) preflightSpoolPath() string {
	if o.sched == nil {
		return ""
	}
	return o.config.SpoolPath
}

// blockUntilSignal is the root wait. A panic here is logged FATAL and
// the process drops into a permanent idle-retry loop: an exited
// supervisor means every worker loses supervision, so only an external
// kill may end it.
func (o *Orchestrator) blockUntilSignal(ctx context.Context, sigCh <-chan os.Signal) {
	defer func() {
		if r := recover(); r != nil {
			logging.Fatal(o.logger, "supervisor_root_fault", "panic", r)
			for {
				select {
				case sig := <-sigCh:
					o.logger.Info("received_signal", "signal", sig.String())
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()

	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	}
}

// Callback handlers

func (o *Orchestrator) onStateChange(name string, oldState, newState supervisor.State) {
	o.metrics.SetActiveWorkers(o.manager.ActiveCount())
	o.metrics.Tick()
}

func (o *Orchestrator) onLaunch(name string, pid int) {
	o.metrics.WorkerLaunched(name)

	if o.config.Verbose {
		o.logger.Debug("worker_process_started", "worker", name, "pid", pid)
	}
}

func (o *Orchestrator) onExit(name string, exitCode int, uptime time.Duration) {
	o.metrics.RecordExit(name, exitCode, uptime)
}

func (o *Orchestrator) onRestart(name string, attempt int, delay time.Duration) {
	o.metrics.WorkerRestarted(name)
}

func (o *Orchestrator) onGiveUp(name string) {
	o.metrics.WorkerGaveUp(name)
}

// printExitSummary prints a summary of the supervised run.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()

	workers := make([]stats.WorkerRow, 0, o.manager.WorkerCount())
	for _, ws := range o.manager.Snapshot() {
		workers = append(workers, stats.WorkerRow{
			Name:     ws.Name,
			State:    ws.State,
			Launches: ws.Launches,
			Restarts: ws.Restarts,
			LastExit: ws.LastExit,
		})
	}

	fmt.Print(stats.FormatExitSummary(summary, workers, stats.SummaryConfig{
		MetricsAddr: o.config.MetricsAddr,
	}))
}

// Manager returns the worker manager for external access.
func (o *Orchestrator) Manager() *Manager {
	return o.manager
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

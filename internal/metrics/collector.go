// Package metrics provides Prometheus metrics for procwarden.
package metrics

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Supervisor overview ---
var (
	pwInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "procwarden_info",
			Help: "Information about the supervisor (value always 1)",
		},
		[]string{"version"},
	)

	pwConfiguredWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_configured_workers",
			Help: "Number of workers in the configuration",
		},
	)

	pwActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_active_workers",
			Help: "Workers currently launching, running, or waiting to restart",
		},
	)

	pwGivenUpWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_given_up_workers",
			Help: "Workers abandoned because their executable was not found",
		},
	)

	pwUptimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_uptime_seconds",
			Help: "Seconds since the supervisor started",
		},
	)
)

// --- Worker lifecycle ---
var (
	pwLaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procwarden_worker_launches_total",
			Help: "Total worker process launches",
		},
		[]string{"worker"},
	)

	pwRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procwarden_worker_restarts_total",
			Help: "Total worker restarts",
		},
		[]string{"worker"},
	)

	pwExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procwarden_worker_exits_total",
			Help: "Total worker exits by category (success, error, signal)",
		},
		[]string{"worker", "category"},
	)

	pwGiveUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procwarden_worker_giveups_total",
			Help: "Total workers given up on (executable not found)",
		},
	)

	pwWorkerUptimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procwarden_worker_uptime_seconds",
			Help:    "Uptime per worker run",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
	)

	pwWorkerUptimeP50 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_worker_uptime_p50_seconds",
			Help: "Median uptime across all completed worker runs",
		},
	)

	pwWorkerUptimeP95 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_worker_uptime_p95_seconds",
			Help: "95th percentile uptime across all completed worker runs",
		},
	)

	pwWorkerUptimeP99 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procwarden_worker_uptime_p99_seconds",
			Help: "99th percentile uptime across all completed worker runs",
		},
	)
)

// --- Maintenance ---
var (
	pwSchedulerFiresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procwarden_scheduler_fires_total",
			Help: "Total maintenance action invocations",
		},
	)

	pwMaintenanceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procwarden_maintenance_failures_total",
			Help: "Total failed maintenance action invocations",
		},
	)

	pwFlushDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procwarden_flush_duration_seconds",
			Help:    "Duration of spool flush attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	pwFlushedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procwarden_flushed_bytes_total",
			Help: "Total spool bytes successfully uploaded",
		},
	)
)

// Collector manages all Prometheus metrics for the supervisor.
type Collector struct {
	configuredWorkers int
	startTime         time.Time

	mu sync.Mutex

	// For summary generation
	totalLaunches int64
	totalRestarts int64
	giveUps       int64
	exitCodes     map[int]int64
	uptimes       *tdigest.TDigest
	uptimeSamples int64
	maxUptime     time.Duration
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version           string
	ConfiguredWorkers int
}

// defaultRegisterOnce guards registration of the package-level metric
// vars on the default registry. Registering twice would panic.
var defaultRegisterOnce sync.Once

// NewCollector creates a new metrics collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	var c *Collector
	defaultRegisterOnce.Do(func() {
		c = NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
	})
	if c == nil {
		c = newCollector(cfg)
	}
	return c
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := newCollector(cfg)

	registry.MustRegister(
		// Supervisor overview
		pwInfo,
		pwConfiguredWorkers,
		pwActiveWorkers,
		pwGivenUpWorkers,
		pwUptimeSeconds,

		// Worker lifecycle
		pwLaunchesTotal,
		pwRestartsTotal,
		pwExitsTotal,
		pwGiveUpsTotal,
		pwWorkerUptimeSeconds,
		pwWorkerUptimeP50,
		pwWorkerUptimeP95,
		pwWorkerUptimeP99,

		// Maintenance
		pwSchedulerFiresTotal,
		pwMaintenanceFailuresTotal,
		pwFlushDurationSeconds,
		pwFlushedBytesTotal,
	)

	return c
}

func newCollector(cfg CollectorConfig) *Collector {
	c := &Collector{
		configuredWorkers: cfg.ConfiguredWorkers,
		startTime:         time.Now(),
		exitCodes:         make(map[int]int64),
		uptimes:           tdigest.New(),
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	pwInfo.WithLabelValues(version).Set(1)
	pwConfiguredWorkers.Set(float64(cfg.ConfiguredWorkers))

	return c
}

// WorkerLaunched records a worker process launch.
func (c *Collector) WorkerLaunched(name string) {
	pwLaunchesTotal.WithLabelValues(name).Inc()

	c.mu.Lock()
	c.totalLaunches++
	c.mu.Unlock()
}

// WorkerRestarted records a scheduled worker restart.
func (c *Collector) WorkerRestarted(name string) {
	pwRestartsTotal.WithLabelValues(name).Inc()

	c.mu.Lock()
	c.totalRestarts++
	c.mu.Unlock()
}

// WorkerGaveUp records a terminal give-up on a worker.
func (c *Collector) WorkerGaveUp(name string) {
	pwGiveUpsTotal.Inc()
	pwGivenUpWorkers.Inc()

	c.mu.Lock()
	c.giveUps++
	c.mu.Unlock()
}

// RecordExit records a worker exit event.
func (c *Collector) RecordExit(name string, exitCode int, uptime time.Duration) {
	category := "error"
	if exitCode == 0 {
		category = "success"
	} else if exitCode > 128 {
		category = "signal"
	}
	pwExitsTotal.WithLabelValues(name, category).Inc()
	pwWorkerUptimeSeconds.Observe(uptime.Seconds())

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.uptimes.Add(uptime.Seconds(), 1)
	c.uptimeSamples++
	if uptime > c.maxUptime {
		c.maxUptime = uptime
	}
	p50 := c.uptimes.Quantile(0.50)
	p95 := c.uptimes.Quantile(0.95)
	p99 := c.uptimes.Quantile(0.99)
	c.mu.Unlock()

	pwWorkerUptimeP50.Set(p50)
	pwWorkerUptimeP95.Set(p95)
	pwWorkerUptimeP99.Set(p99)
}

// SetActiveWorkers updates the active worker gauge.
func (c *Collector) SetActiveWorkers(count int) {
	pwActiveWorkers.Set(float64(count))
}

// Tick refreshes the supervisor uptime gauge.
func (c *Collector) Tick() {
	pwUptimeSeconds.Set(time.Since(c.startTime).Seconds())
}

// SchedulerFired records a maintenance fire and its outcome.
func (c *Collector) SchedulerFired(err error) {
	pwSchedulerFiresTotal.Inc()
	if err != nil {
		pwMaintenanceFailuresTotal.Inc()
	}
}

// RecordFlush records a completed spool flush.
func (c *Collector) RecordFlush(bytes int, duration time.Duration, err error) {
	pwFlushDurationSeconds.Observe(duration.Seconds())
	if err == nil {
		pwFlushedBytesTotal.Add(float64(bytes))
	}
}

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration          time.Duration
	ConfiguredWorkers int
	TotalLaunches     int64
	TotalRestarts     int64
	GiveUps           int64
	ExitCodes         map[int]int64
	UptimeP50         time.Duration
	UptimeP95         time.Duration
	UptimeP99         time.Duration
	UptimeMax         time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:          time.Since(c.startTime),
		ConfiguredWorkers: c.configuredWorkers,
		TotalLaunches:     c.totalLaunches,
		TotalRestarts:     c.totalRestarts,
		GiveUps:           c.giveUps,
		ExitCodes:         make(map[int]int64),
		UptimeMax:         c.maxUptime,
	}

	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	if c.uptimeSamples > 0 {
		s.UptimeP50 = secondsToDuration(c.uptimes.Quantile(0.50))
		s.UptimeP95 = secondsToDuration(c.uptimes.Quantile(0.95))
		s.UptimeP99 = secondsToDuration(c.uptimes.Quantile(0.99))
	}

	return s
}

// TotalLaunches returns the total number of worker launches.
func (c *Collector) TotalLaunches() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalLaunches
}

// TotalRestarts returns the total number of restarts.
func (c *Collector) TotalRestarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRestarts
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

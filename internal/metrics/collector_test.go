package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestCollector(workers int) *Collector {
	// A fresh registry per test avoids duplicate registration panics.
	return NewCollectorWithRegistry(
		CollectorConfig{Version: "test", ConfiguredWorkers: workers},
		prometheus.NewRegistry(),
	)
}

func TestCollector_LaunchAndRestartCounts(t *testing.T) {
	c := newTestCollector(2)

	c.WorkerLaunched("agent")
	c.WorkerLaunched("agent")
	c.WorkerLaunched("collector")
	c.WorkerRestarted("agent")

	if got := c.TotalLaunches(); got != 3 {
		t.Errorf("TotalLaunches() = %d, want 3", got)
	}
	if got := c.TotalRestarts(); got != 1 {
		t.Errorf("TotalRestarts() = %d, want 1", got)
	}
}

func TestCollector_RecordExit_Categories(t *testing.T) {
	c := newTestCollector(1)

	c.RecordExit("agent", 0, time.Minute)
	c.RecordExit("agent", 1, time.Second)
	c.RecordExit("agent", 137, time.Second)

	s := c.GenerateSummary()
	if s.ExitCodes[0] != 1 || s.ExitCodes[1] != 1 || s.ExitCodes[137] != 1 {
		t.Errorf("ExitCodes = %v, want one each of 0, 1, 137", s.ExitCodes)
	}
}

func TestCollector_GenerateSummary(t *testing.T) {
	c := newTestCollector(3)

	c.WorkerLaunched("a")
	c.WorkerLaunched("b")
	c.WorkerRestarted("a")
	c.WorkerGaveUp("c")
	c.RecordExit("a", 1, 10*time.Second)
	c.RecordExit("a", 1, 20*time.Second)
	c.RecordExit("b", 0, 30*time.Second)

	s := c.GenerateSummary()

	if s.ConfiguredWorkers != 3 {
		t.Errorf("ConfiguredWorkers = %d, want 3", s.ConfiguredWorkers)
	}
	if s.TotalLaunches != 2 {
		t.Errorf("TotalLaunches = %d, want 2", s.TotalLaunches)
	}
	if s.TotalRestarts != 1 {
		t.Errorf("TotalRestarts = %d, want 1", s.TotalRestarts)
	}
	if s.GiveUps != 1 {
		t.Errorf("GiveUps = %d, want 1", s.GiveUps)
	}
	if s.UptimeMax != 30*time.Second {
		t.Errorf("UptimeMax = %v, want 30s", s.UptimeMax)
	}

	// Percentiles must land inside the observed range.
	if s.UptimeP50 < 10*time.Second || s.UptimeP50 > 30*time.Second {
		t.Errorf("UptimeP50 = %v, want within [10s, 30s]", s.UptimeP50)
	}
	if s.UptimeP99 < s.UptimeP50 {
		t.Errorf("UptimeP99 = %v < UptimeP50 = %v", s.UptimeP99, s.UptimeP50)
	}
}

func TestCollector_SummaryWithoutExits(t *testing.T) {
	c := newTestCollector(1)

	s := c.GenerateSummary()
	if s.UptimeP50 != 0 || s.UptimeP95 != 0 || s.UptimeP99 != 0 {
		t.Errorf("percentiles = %v/%v/%v with no samples, want zeros",
			s.UptimeP50, s.UptimeP95, s.UptimeP99)
	}
	if len(s.ExitCodes) != 0 {
		t.Errorf("ExitCodes = %v, want empty", s.ExitCodes)
	}
}

func TestCollector_SchedulerFired(t *testing.T) {
	c := newTestCollector(1)

	// Should not panic with or without an error.
	c.SchedulerFired(nil)
	c.SchedulerFired(errTest)
	c.RecordFlush(1024, 50*time.Millisecond, nil)
	c.RecordFlush(0, 10*time.Millisecond, errTest)
	c.SetActiveWorkers(2)
	c.Tick()
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "test error" }

// Package orchestrator wires the keep-alive loops, the maintenance
// scheduler, and the observability surfaces into the supervisor root.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/procwarden/procwarden/internal/supervisor"
	"github.com/procwarden/procwarden/internal/worker"
)

// PolicyFactory builds a restart policy for one worker. Each keeper owns
// its policy instance.
type PolicyFactory func(spec worker.Spec, seed int64) supervisor.RestartPolicy

// ManagerCallbacks contains optional callbacks for manager events.
type ManagerCallbacks struct {
	// OnWorkerStateChange is called when any worker changes state.
	OnWorkerStateChange func(name string, oldState, newState supervisor.State)

	// OnWorkerLaunch is called when a worker process starts.
	OnWorkerLaunch func(name string, pid int)

	// OnWorkerExit is called when a worker process exits.
	OnWorkerExit func(name string, exitCode int, uptime time.Duration)

	// OnWorkerRestart is called when a worker is about to restart.
	OnWorkerRestart func(name string, attempt int, delay time.Duration)

	// OnWorkerGiveUp is called when a worker is abandoned permanently.
	OnWorkerGiveUp func(name string)
}

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	Launcher      *worker.Launcher
	Logger        *slog.Logger
	PolicyFactory PolicyFactory
	MaxRestarts   int
	Callbacks     ManagerCallbacks

	// Clock is passed to every keeper. Defaults to the real clock.
	Clock clockwork.Clock
}

// Manager owns one keeper per worker spec. Worker identity is the
// executable path: starting the same path twice is rejected so no
// executable ever has two keep-alive loops.
type Manager struct {
	launcher      *worker.Launcher
	logger        *slog.Logger
	clock         clockwork.Clock
	policyFactory PolicyFactory
	maxRestarts   int
	callbacks     ManagerCallbacks

	keepers map[string]*supervisor.Keeper
	mu      sync.RWMutex

	wg sync.WaitGroup

	activeCount  atomic.Int64
	givenUpCount atomic.Int64
	restartCount atomic.Int64
}

// NewManager creates a new Manager.
func NewManager(cfg ManagerConfig) *Manager {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	launcher := cfg.Launcher
	if launcher == nil {
		launcher = &worker.Launcher{}
	}

	return &Manager{
		launcher:      launcher,
		logger:        cfg.Logger,
		clock:         clock,
		policyFactory: cfg.PolicyFactory,
		maxRestarts:   cfg.MaxRestarts,
		callbacks:     cfg.Callbacks,
		keepers:       make(map[string]*supervisor.Keeper),
	}
}

// StartWorker creates and starts a keeper for the given spec. The keeper
// runs in its own goroutine until the context is cancelled or the worker
// is given up on.
func (m *Manager) StartWorker(ctx context.Context, spec worker.Spec) error {
	m.mu.Lock()
	if _, exists := m.keepers[spec.Path]; exists {
		m.mu.Unlock()
		return fmt.Errorf("worker %s is already supervised", spec.Path)
	}
	m.mu.Unlock()

	var policy supervisor.RestartPolicy
	if m.policyFactory != nil {
		policy = m.policyFactory(spec, m.clock.Now().UnixNano())
	}

	keeper := supervisor.New(supervisor.Config{
		Spec:        spec,
		Launcher:    m.launcher,
		Policy:      policy,
		Logger:      m.logger,
		Clock:       m.clock,
		MaxRestarts: m.maxRestarts,
		Callbacks: supervisor.Callbacks{
			OnStateChange: m.handleStateChange,
			OnLaunch:      m.handleLaunch,
			OnExit:        m.handleExit,
			OnRestart:     m.handleRestart,
			OnGiveUp:      m.handleGiveUp,
		},
	})

	m.mu.Lock()
	if _, exists := m.keepers[spec.Path]; exists {
		m.mu.Unlock()
		return fmt.Errorf("worker %s is already supervised", spec.Path)
	}
	m.keepers[spec.Path] = keeper
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := keeper.Run(ctx); err != nil {
			// Given up, cancelled, or restart budget exhausted. The
			// keeper has already logged the reason.
			m.logger.Debug("keeper_ended",
				"worker", spec.Label(),
				"error", err,
			)
		}
	}()

	return nil
}

// handleStateChange tracks active worker counts and forwards the event.
func (m *Manager) handleStateChange(name string, oldState, newState supervisor.State) {
	wasActive := oldState.IsActive()
	isActive := newState.IsActive()

	if !wasActive && isActive {
		m.activeCount.Add(1)
	} else if wasActive && !isActive {
		m.activeCount.Add(-1)
	}

	if m.callbacks.OnWorkerStateChange != nil {
		m.callbacks.OnWorkerStateChange(name, oldState, newState)
	}
}

func (m *Manager) handleLaunch(name string, pid int) {
	if m.callbacks.OnWorkerLaunch != nil {
		m.callbacks.OnWorkerLaunch(name, pid)
	}
}

func (m *Manager) handleExit(name string, exitCode int, uptime time.Duration) {
	if m.callbacks.OnWorkerExit != nil {
		m.callbacks.OnWorkerExit(name, exitCode, uptime)
	}
}

func (m *Manager) handleRestart(name string, attempt int, delay time.Duration) {
	m.restartCount.Add(1)

	if m.callbacks.OnWorkerRestart != nil {
		m.callbacks.OnWorkerRestart(name, attempt, delay)
	}
}

func (m *Manager) handleGiveUp(name string) {
	m.givenUpCount.Add(1)

	if m.callbacks.OnWorkerGiveUp != nil {
		m.callbacks.OnWorkerGiveUp(name)
	}
}

// Shutdown waits for all keepers to stop. The context passed to
// StartWorker must already be cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutdown_initiated", "active_workers", m.ActiveCount())

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("all_workers_stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown_timeout")
		return ctx.Err()
	}
}

// ActiveCount returns the number of workers currently launching, running,
// or waiting to restart.
func (m *Manager) ActiveCount() int {
	return int(m.activeCount.Load())
}

// GivenUpCount returns the number of workers abandoned permanently.
func (m *Manager) GivenUpCount() int {
	return int(m.givenUpCount.Load())
}

// RestartCount returns the total number of restart events.
func (m *Manager) RestartCount() int {
	return int(m.restartCount.Load())
}

// WorkerCount returns the number of supervised workers.
func (m *Manager) WorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keepers)
}

// Keeper returns the keeper for a specific worker path, or nil.
func (m *Manager) Keeper(path string) *supervisor.Keeper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keepers[path]
}

// WorkerStatus is a point-in-time snapshot of one worker, used by the
// status endpoint, the dashboard, and the exit summary.
type WorkerStatus struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	State    string        `json:"state"`
	PID      int           `json:"pid"`
	Launches int           `json:"launches"`
	Restarts int           `json:"restarts"`
	LastExit string        `json:"last_exit"`
	Uptime   time.Duration `json:"uptime_ns"`
}

// Snapshot returns the current status of every supervised worker,
// ordered by worker label.
func (m *Manager) Snapshot() []WorkerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]WorkerStatus, 0, len(m.keepers))
	for path, k := range m.keepers {
		lastExit := "-"
		if code, ok := k.LastExitCode(); ok {
			lastExit = fmt.Sprintf("%d", code)
		}
		statuses = append(statuses, WorkerStatus{
			Name:     k.Spec().Label(),
			Path:     path,
			State:    k.State().String(),
			PID:      k.PID(),
			Launches: k.Launches(),
			Restarts: k.Restarts(),
			LastExit: lastExit,
			Uptime:   k.Uptime(),
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/procwarden/procwarden/internal/supervisor"
	"github.com/procwarden/procwarden/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManager_RejectsDuplicatePath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(ManagerConfig{Logger: discardLogger()})

	spec := worker.Spec{Name: "sleeper", Path: "sleep", Args: []string{"30"}, RestartDelay: time.Second}
	if err := m.StartWorker(ctx, spec); err != nil {
		t.Fatalf("first StartWorker returned %v", err)
	}
	if err := m.StartWorker(ctx, spec); err == nil {
		t.Fatal("second StartWorker returned nil, want duplicate error")
	}
	if m.WorkerCount() != 1 {
		t.Errorf("WorkerCount() = %d, want 1", m.WorkerCount())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown returned %v", err)
	}
}

// One worker giving up must not disturb the rest of the fleet.
func TestManager_GiveUpIsIsolated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(ManagerConfig{Logger: discardLogger()})

	if err := m.StartWorker(ctx, worker.Spec{
		Name: "healthy", Path: "sleep", Args: []string{"30"}, RestartDelay: 10 * time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.StartWorker(ctx, worker.Spec{
		Name: "ghost", Path: "/no/such/binary", RestartDelay: 10 * time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "ghost to give up", func() bool { return m.GivenUpCount() == 1 })
	waitFor(t, "healthy to run", func() bool {
		k := m.Keeper("sleep")
		return k != nil && k.State() == supervisor.StateRunning
	})

	if m.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1 (ghost inactive, healthy active)", m.ActiveCount())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown returned %v", err)
	}
}

func TestManager_Snapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(ManagerConfig{Logger: discardLogger()})

	if err := m.StartWorker(ctx, worker.Spec{
		Name: "zeta", Path: "sleep", Args: []string{"30"}, RestartDelay: time.Second,
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.StartWorker(ctx, worker.Spec{
		Name: "alpha", Path: "/no/such/binary",
	}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "both workers to settle", func() bool {
		return m.GivenUpCount() == 1 && m.Keeper("sleep").State() == supervisor.StateRunning
	})

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() has %d entries, want 2", len(snap))
	}

	// Ordered by name.
	if snap[0].Name != "alpha" || snap[1].Name != "zeta" {
		t.Errorf("Snapshot order = [%s %s], want [alpha zeta]", snap[0].Name, snap[1].Name)
	}
	if snap[0].State != "given_up" {
		t.Errorf("alpha state = %q, want given_up", snap[0].State)
	}
	if snap[0].LastExit != "-" {
		t.Errorf("alpha LastExit = %q, want - (never launched)", snap[0].LastExit)
	}
	if snap[1].State != "running" {
		t.Errorf("zeta state = %q, want running", snap[1].State)
	}
	if snap[1].Launches != 1 {
		t.Errorf("zeta Launches = %d, want 1", snap[1].Launches)
	}
	if snap[1].Uptime <= 0 {
		t.Errorf("zeta Uptime = %v, want > 0", snap[1].Uptime)
	}
	if snap[1].PID <= 0 {
		t.Errorf("zeta PID = %d, want > 0", snap[1].PID)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	m.Shutdown(shutdownCtx)
}

func TestManager_Callbacks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	launched := make(chan string, 8)
	gaveUp := make(chan string, 1)

	m := NewManager(ManagerConfig{
		Logger: discardLogger(),
		Callbacks: ManagerCallbacks{
			OnWorkerLaunch: func(name string, pid int) { launched <- name },
			OnWorkerGiveUp: func(name string) { gaveUp <- name },
		},
	})

	if err := m.StartWorker(ctx, worker.Spec{
		Name: "echoer", Path: "echo", Args: []string{"hi"}, RestartDelay: 10 * time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.StartWorker(ctx, worker.Spec{Name: "ghost", Path: "/no/such/binary"}); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-launched:
		if name != "echoer" {
			t.Errorf("OnWorkerLaunch name = %q, want echoer", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnWorkerLaunch never fired")
	}

	select {
	case name := <-gaveUp:
		if name != "ghost" {
			t.Errorf("OnWorkerGiveUp name = %q, want ghost", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnWorkerGiveUp never fired")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	m.Shutdown(shutdownCtx)
}

func TestManager_PolicyFactory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var factoryCalls int
	m := NewManager(ManagerConfig{
		Logger: discardLogger(),
		PolicyFactory: func(spec worker.Spec, seed int64) supervisor.RestartPolicy {
			factoryCalls++
			return supervisor.NewFixedDelay(time.Second)
		},
	})

	if err := m.StartWorker(ctx, worker.Spec{Name: "a", Path: "sleep", Args: []string{"30"}}); err != nil {
		t.Fatal(err)
	}
	if err := m.StartWorker(ctx, worker.Spec{Name: "b", Path: "sleep", Args: []string{"31"}}); err == nil {
		// Same path rejected above; use a different path to exercise a
		// second factory call.
		t.Fatal("expected duplicate error for same path")
	}
	if err := m.StartWorker(ctx, worker.Spec{Name: "b", Path: "true"}); err != nil {
		t.Fatal(err)
	}

	if factoryCalls != 2 {
		t.Errorf("policy factory called %d times, want 2", factoryCalls)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	m.Shutdown(shutdownCtx)
}

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/procwarden/procwarden/internal/worker"
)

// Callbacks contains optional callback functions for keeper events.
type Callbacks struct {
	// OnStateChange is called when the keeper state changes.
	OnStateChange func(name string, oldState, newState State)

	// OnLaunch is called when a worker process starts.
	OnLaunch func(name string, pid int)

	// OnExit is called when a worker process exits.
	OnExit func(name string, exitCode int, uptime time.Duration)

	// OnRestart is called before a restart attempt.
	OnRestart func(name string, attempt int, delay time.Duration)

	// OnGiveUp is called once when the keeper gives up on the worker.
	OnGiveUp func(name string)
}

// Config holds configuration for creating a new Keeper.
type Config struct {
	Spec      worker.Spec
	Launcher  *worker.Launcher
	Policy    RestartPolicy
	Logger    *slog.Logger
	Callbacks Callbacks

	// Clock is used for restart waits and uptime measurement. Defaults to
	// the real clock; tests inject a fake.
	Clock clockwork.Clock

	// MaxRestarts bounds the total number of restarts (0 = unlimited).
	// The baseline supervisor restarts forever; this is the hook for
	// callers that want bounded retries.
	MaxRestarts int
}

// Keeper runs the keep-alive loop for a single worker: launch, wait for
// exit, apply the restart policy, relaunch. It gives up permanently only
// when the executable cannot be found, and otherwise never stops on its own.
type Keeper struct {
	spec      worker.Spec
	launcher  *worker.Launcher
	policy    RestartPolicy
	logger    *slog.Logger
	clock     clockwork.Clock
	callbacks Callbacks

	maxRestarts int

	state     State
	stateMu   sync.RWMutex
	startTime time.Time

	launches  atomic.Int64
	restarts  atomic.Int64
	failures  atomic.Int64 // consecutive failed cycles
	lastExit  atomic.Int64
	hasExited atomic.Bool
	lastPID   atomic.Int64
}

// ErrGivenUp is returned by Run when the worker's executable cannot be
// found and supervision ends permanently.
var ErrGivenUp = errors.New("given up on worker")

// New creates a new Keeper with the given configuration.
func New(cfg Config) *Keeper {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	policy := cfg.Policy
	if policy == nil {
		policy = NewFixedDelay(cfg.Spec.RestartDelay)
	}

	launcher := cfg.Launcher
	if launcher == nil {
		launcher = &worker.Launcher{}
	}

	return &Keeper{
		spec:        cfg.Spec,
		launcher:    launcher,
		policy:      policy,
		logger:      cfg.Logger,
		clock:       clock,
		callbacks:   cfg.Callbacks,
		maxRestarts: cfg.MaxRestarts,
		state:       StateCreated,
	}
}

// Run starts the keep-alive loop. It blocks until the context is cancelled,
// the worker is given up on, a oneshot worker completes, or the restart
// budget (if any) is exhausted.
func (k *Keeper) Run(ctx context.Context) error {
	name := k.spec.Label()
	k.logger.Debug("keeper_starting", "worker", name, "mode", k.spec.Mode.String())

	for {
		select {
		case <-ctx.Done():
			k.setState(StateStopped)
			k.logger.Debug("keeper_stopped", "worker", name, "reason", "context_cancelled")
			return ctx.Err()
		default:
		}

		exit, uptime, err := k.runOnce(ctx)

		if err != nil && errors.Is(err, worker.ErrExecutableNotFound) {
			// Terminal: logged once, never retried.
			k.setState(StateGivenUp)
			k.logger.Error("worker_given_up",
				"worker", name,
				"path", k.spec.Path,
				"error", err,
			)
			if k.callbacks.OnGiveUp != nil {
				k.callbacks.OnGiveUp(name)
			}
			return errors.Join(ErrGivenUp, err)
		}

		if ctx.Err() != nil {
			k.setState(StateStopped)
			return ctx.Err()
		}

		if k.spec.Mode == worker.ModeOneShot {
			k.setState(StateStopped)
			if err != nil {
				// The worker never ran, so there is no completion to
				// report. Transient launch errors surface to the caller.
				return err
			}
			k.logger.Info("oneshot_complete",
				"worker", name,
				"exit_code", exit.Code,
				"uptime", uptime.String(),
			)
			return nil
		}

		// Track consecutive failures for policy extensions. A cycle counts
		// as failed on any launch error or non-zero exit.
		if err != nil || exit.Code != 0 {
			k.failures.Add(1)
		} else {
			k.failures.Store(0)
		}

		if ShouldReset(uptime, exit.Code) {
			k.policy.Reset()
		}

		if k.maxRestarts > 0 && int(k.restarts.Load()) >= k.maxRestarts {
			k.setState(StateStopped)
			k.logger.Warn("max_restarts_reached",
				"worker", name,
				"restarts", k.restarts.Load(),
				"max", k.maxRestarts,
			)
			return errors.New("max restarts reached")
		}

		delay := k.policy.Next()
		attempt := int(k.restarts.Add(1))

		if k.callbacks.OnRestart != nil {
			k.callbacks.OnRestart(name, attempt, delay)
		}

		k.logger.Info("worker_restart_scheduled",
			"worker", name,
			"attempt", attempt,
			"delay", delay.String(),
		)

		k.setState(StateRestartWait)
		select {
		case <-ctx.Done():
			k.setState(StateStopped)
			return ctx.Err()
		case <-k.clock.After(delay):
		}
	}
}

// runOnce launches the worker once and waits for it to exit. Panics from
// anywhere in the cycle are recovered and treated as a failed exit so the
// keep-alive loop itself never dies.
func (k *Keeper) runOnce(ctx context.Context) (exit worker.Exit, uptime time.Duration, err error) {
	name := k.spec.Label()

	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("keeper_cycle_panic", "worker", name, "panic", r)
			exit = worker.Exit{Code: 1}
			err = nil
		}
	}()

	k.setState(StateLaunching)

	handle, launchErr := k.launcher.Launch(ctx, k.spec)
	if launchErr != nil {
		if !errors.Is(launchErr, worker.ErrExecutableNotFound) {
			// Transient: permissions, resource exhaustion. Retried like a
			// normal exit.
			k.logger.Error("worker_launch_failed",
				"worker", name,
				"error", launchErr,
			)
		}
		return worker.Exit{Code: 1}, 0, launchErr
	}

	k.launches.Add(1)
	pid := handle.PID()
	k.lastPID.Store(int64(pid))

	start := k.clock.Now()
	k.stateMu.Lock()
	k.startTime = start
	k.stateMu.Unlock()
	k.setState(StateRunning)

	k.logger.Info("worker_started",
		"worker", name,
		"pid", pid,
		"privilege", k.spec.Privilege.String(),
	)

	if k.callbacks.OnLaunch != nil {
		k.callbacks.OnLaunch(name, pid)
	}

	exit = handle.Wait()
	uptime = k.clock.Since(start)

	k.lastExit.Store(int64(exit.Code))
	k.hasExited.Store(true)

	if exit.Code != 0 {
		k.logger.Error("worker_exited",
			"worker", name,
			"pid", pid,
			"exit_code", exit.Code,
			"uptime", uptime.String(),
			"stderr", exit.Stderr,
		)
	} else {
		k.logger.Info("worker_exited",
			"worker", name,
			"pid", pid,
			"exit_code", 0,
			"uptime", uptime.String(),
		)
	}

	if k.callbacks.OnExit != nil {
		k.callbacks.OnExit(name, exit.Code, uptime)
	}

	return exit, uptime, nil
}

// State returns the current state of the keeper.
func (k *Keeper) State() State {
	k.stateMu.RLock()
	defer k.stateMu.RUnlock()
	return k.state
}

// setState updates the state and calls the callback if registered.
func (k *Keeper) setState(newState State) {
	k.stateMu.Lock()
	oldState := k.state
	k.state = newState
	k.stateMu.Unlock()

	if k.callbacks.OnStateChange != nil && oldState != newState {
		k.callbacks.OnStateChange(k.spec.Label(), oldState, newState)
	}
}

// Spec returns the worker spec supervised by this keeper.
func (k *Keeper) Spec() worker.Spec {
	return k.spec
}

// Launches returns the number of successful process launches.
func (k *Keeper) Launches() int {
	return int(k.launches.Load())
}

// Restarts returns the number of restarts that have been scheduled.
func (k *Keeper) Restarts() int {
	return int(k.restarts.Load())
}

// ConsecutiveFailures returns the current run of failed cycles.
func (k *Keeper) ConsecutiveFailures() int {
	return int(k.failures.Load())
}

// PID returns the most recently launched process ID, or 0 before the
// first launch.
func (k *Keeper) PID() int {
	return int(k.lastPID.Load())
}

// LastExitCode returns the most recent exit code, and false if the worker
// has not exited yet.
func (k *Keeper) LastExitCode() (int, bool) {
	if !k.hasExited.Load() {
		return 0, false
	}
	return int(k.lastExit.Load()), true
}

// Uptime returns the current uptime if running, or 0 if not.
func (k *Keeper) Uptime() time.Duration {
	k.stateMu.RLock()
	defer k.stateMu.RUnlock()
	if k.state != StateRunning {
		return 0
	}
	return k.clock.Since(k.startTime)
}

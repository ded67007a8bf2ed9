// Package scheduler implements a drift-corrected periodic trigger for
// maintenance actions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Action is the maintenance callback fired on each interval. It runs
// synchronously inside the scheduler loop; a slow action delays later
// fires but never shifts the schedule.
type Action func(ctx context.Context) error

// Config holds configuration for creating a new Scheduler.
type Config struct {
	Interval time.Duration
	Action   Action
	Logger   *slog.Logger

	// Clock is used for fire timing. Defaults to the real clock; tests
	// inject a fake.
	Clock clockwork.Clock

	// OnFire is called after every fire with the fire count and the
	// action's error (nil on success).
	OnFire func(count int, err error)
}

// Scheduler fires an Action at a fixed cadence. The next fire time always
// advances by exactly the interval from the previous scheduled time, never
// from the current time, so action runtime cannot accumulate as drift.
type Scheduler struct {
	interval time.Duration
	action   Action
	logger   *slog.Logger
	clock    clockwork.Clock
	onFire   func(count int, err error)

	fires    atomic.Int64
	failures atomic.Int64

	mu       sync.RWMutex
	nextFire time.Time
}

// New creates a new Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Scheduler{
		interval: cfg.Interval,
		action:   cfg.Action,
		logger:   cfg.Logger,
		clock:    clock,
		onFire:   cfg.OnFire,
	}
}

// Run fires the action every interval until the context is cancelled.
// Action errors and panics are logged and never stop the schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	next := s.clock.Now().Add(s.interval)
	s.setNextFire(next)

	s.logger.Debug("scheduler_starting",
		"interval", s.interval.String(),
		"first_fire", next,
	)

	for {
		wait := next.Sub(s.clock.Now())
		if wait > 0 {
			select {
			case <-ctx.Done():
				s.logger.Debug("scheduler_stopped", "fires", s.fires.Load())
				return ctx.Err()
			case <-s.clock.After(wait):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		s.fire(ctx)

		// Drift correction: advance from the scheduled time, not from now.
		// If the action overran the interval, the next fire happens
		// immediately and the schedule catches up instead of drifting.
		next = next.Add(s.interval)
		s.setNextFire(next)
	}
}

// fire invokes the action once, recovering panics and logging failures.
func (s *Scheduler) fire(ctx context.Context) {
	count := int(s.fires.Add(1))
	start := s.clock.Now()

	err := s.invoke(ctx)
	elapsed := s.clock.Since(start)

	if err != nil {
		s.failures.Add(1)
		s.logger.Error("maintenance_failed",
			"fire", count,
			"elapsed", elapsed.String(),
			"error", err,
		)
	} else {
		s.logger.Info("maintenance_complete",
			"fire", count,
			"elapsed", elapsed.String(),
		)
	}

	if s.onFire != nil {
		s.onFire(count, err)
	}
}

// invoke wraps the action call so a panic is converted to an error and the
// scheduler loop survives.
func (s *Scheduler) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return s.action(ctx)
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("maintenance action panicked: %v", p.value)
}

// Fires returns the number of times the action has been invoked.
func (s *Scheduler) Fires() int {
	return int(s.fires.Load())
}

// Failures returns the number of action invocations that returned an
// error or panicked.
func (s *Scheduler) Failures() int {
	return int(s.failures.Load())
}

// NextFire returns the next scheduled fire time.
func (s *Scheduler) NextFire() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextFire
}

func (s *Scheduler) setNextFire(t time.Time) {
	s.mu.Lock()
	s.nextFire = t
	s.mu.Unlock()
}

// Interval returns the configured fire interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

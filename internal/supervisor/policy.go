package supervisor

import (
	"math"
	"math/rand"
	"time"
)

// RestartPolicy decides how long a keeper waits before relaunching a worker.
// Implementations are owned by a single keeper and need not be safe for
// concurrent use.
type RestartPolicy interface {
	// Next returns the delay before the next launch attempt and advances
	// any internal attempt counter.
	Next() time.Duration

	// Reset clears the attempt counter after a stable run.
	Reset()
}

// FixedDelay is the baseline policy: the same delay after every exit.
type FixedDelay struct {
	delay time.Duration
}

// NewFixedDelay creates a fixed-delay restart policy.
func NewFixedDelay(d time.Duration) *FixedDelay {
	return &FixedDelay{delay: d}
}

// Next returns the configured delay.
func (f *FixedDelay) Next() time.Duration { return f.delay }

// Reset is a no-op for a fixed delay.
func (f *FixedDelay) Reset() {}

// BackoffConfig holds the configuration for exponential backoff.
type BackoffConfig struct {
	Initial    time.Duration // Initial backoff delay (default: 250ms)
	Max        time.Duration // Maximum backoff delay (default: 5s)
	Multiplier float64       // Multiplier for each attempt (default: 1.7)
	JitterPct  float64       // Jitter as a percentage of delay (default: 0.4 = ±20%)
}

// DefaultBackoffConfig returns sensible defaults for backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4, // ±20% jitter
	}
}

// Backoff is a RestartPolicy with exponential delays and jitter. Each
// instance carries its own seeded RNG so a worker keeps a deterministic
// jitter sequence across restarts.
type Backoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a Backoff policy seeded for a specific worker.
func NewBackoff(seed int64, cfg BackoffConfig) *Backoff {
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next backoff delay and increments the attempt counter.
func (b *Backoff) Next() time.Duration {
	delay := b.calculate()
	b.attempts++
	return delay
}

// calculate returns the current backoff delay without incrementing attempts.
func (b *Backoff) calculate() time.Duration {
	// Base delay: initial * multiplier^attempts, capped at Max
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))
	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	// Add jitter: ±(JitterPct/2) of the delay
	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Reset resets the attempt counter to zero.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the current attempt count.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// StableUptimeThreshold is the minimum uptime before the restart policy is
// reset. A worker that ran at least this long is considered to have started
// successfully, so its next failure starts from the initial delay again.
const StableUptimeThreshold = 30 * time.Second

// ShouldReset determines if the restart policy should be reset based on
// uptime and exit code.
func ShouldReset(uptime time.Duration, exitCode int) bool {
	if uptime >= StableUptimeThreshold {
		return true
	}

	// Clean exits also reset: a daemon that chose to exit is not crash-looping.
	if exitCode == 0 {
		return true
	}

	return false
}

// Package supervisor implements the per-worker keep-alive loop.
package supervisor

// State represents the current state of a supervised worker.
type State int

const (
	// StateCreated is the initial state before the keeper has started.
	StateCreated State = iota

	// StateLaunching indicates the worker process is being spawned.
	StateLaunching

	// StateRunning indicates the worker process is actively running.
	StateRunning

	// StateRestartWait indicates the keeper is waiting out the restart
	// delay before the next launch.
	StateRestartWait

	// StateGivenUp indicates the worker's executable could not be found.
	// Terminal: the worker receives no further supervision.
	StateGivenUp

	// StateStopped indicates the keeper ended for any other reason
	// (shutdown, oneshot completion, restart budget exhausted).
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateRestartWait:
		return "restart_wait"
	case StateGivenUp:
		return "given_up"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents a worker that is running
// or on its way to another launch.
func (s State) IsActive() bool {
	return s == StateLaunching || s == StateRunning || s == StateRestartWait
}

// IsTerminal returns true if the keeper has permanently ended.
func (s State) IsTerminal() bool {
	return s == StateGivenUp || s == StateStopped
}

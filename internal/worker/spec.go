// Package worker defines managed worker specifications and process launching.
package worker

import (
	"fmt"
	"time"
)

// Privilege controls how a worker process is invoked.
type Privilege int

const (
	// PrivilegeNormal runs the worker as the supervisor's own user.
	PrivilegeNormal Privilege = iota

	// PrivilegeElevated prefixes the invocation with sudo.
	PrivilegeElevated
)

// String returns a human-readable name for the privilege mode.
func (p Privilege) String() string {
	switch p {
	case PrivilegeNormal:
		return "normal"
	case PrivilegeElevated:
		return "elevated"
	default:
		return "unknown"
	}
}

// ParsePrivilege converts a config string to a Privilege.
func ParsePrivilege(s string) (Privilege, error) {
	switch s {
	case "", "normal":
		return PrivilegeNormal, nil
	case "elevated":
		return PrivilegeElevated, nil
	default:
		return PrivilegeNormal, fmt.Errorf("invalid privilege %q (want normal or elevated)", s)
	}
}

// RunMode controls the restart behaviour of a worker.
type RunMode int

const (
	// ModeSupervised workers are relaunched after every exit, regardless of
	// exit code. This is the default: the supervised programs are
	// long-running daemons, so any exit means something went wrong.
	ModeSupervised RunMode = iota

	// ModeOneShot workers run exactly once and are never relaunched.
	ModeOneShot
)

// String returns a human-readable name for the run mode.
func (m RunMode) String() string {
	switch m {
	case ModeSupervised:
		return "supervised"
	case ModeOneShot:
		return "oneshot"
	default:
		return "unknown"
	}
}

// ParseRunMode converts a config string to a RunMode.
func ParseRunMode(s string) (RunMode, error) {
	switch s {
	case "", "supervised":
		return ModeSupervised, nil
	case "oneshot":
		return ModeOneShot, nil
	default:
		return ModeSupervised, fmt.Errorf("invalid mode %q (want supervised or oneshot)", s)
	}
}

// Spec describes a single managed worker. Specs are immutable after
// supervisor startup; worker identity is the executable path.
type Spec struct {
	// Name is a short label used in logs and metrics. Defaults to the
	// basename of Path when empty.
	Name string

	// Path is the worker executable. Absolute paths are checked directly;
	// bare names are resolved against $PATH.
	Path string

	// Args are passed to the worker in order.
	Args []string

	// RestartDelay is the fixed wait between an exit and the next launch
	// under the baseline restart policy.
	RestartDelay time.Duration

	// Privilege selects normal or elevated invocation.
	Privilege Privilege

	// Mode selects supervised (restart forever) or oneshot (run once).
	Mode RunMode
}

// Label returns the name used for this spec in logs and metrics.
func (s Spec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// ErrExecutableNotFound reports that a spec's path does not resolve to a
// runnable file. Unlike a transient launch failure, this is not recoverable
// by retrying: the keep-alive loop gives up on the worker permanently.
var ErrExecutableNotFound = errors.New("executable not found")

// Launcher starts worker processes. The zero value is usable; stdout and
// stderr are discarded unless CaptureStderr is set, in which case a bounded
// tail of stderr is kept and attached to the exit result for diagnostics.
type Launcher struct {
	// SudoPath is the elevation binary used for PrivilegeElevated specs.
	// Defaults to "sudo".
	SudoPath string

	// CaptureStderr enables the diagnostic stderr tail.
	CaptureStderr bool

	// TailLines bounds the captured stderr tail. Defaults to DefaultTailLines.
	TailLines int

	// StopGrace is how long a worker gets between SIGTERM and SIGKILL when
	// its context is cancelled. Defaults to DefaultStopGrace.
	StopGrace time.Duration
}

// DefaultStopGrace is the default SIGTERM-to-SIGKILL escalation window.
const DefaultStopGrace = 10 * time.Second

// Launch resolves the spec's executable and starts it as a child process.
// Returns ErrExecutableNotFound (wrapped) when the path does not resolve;
// any other error is a transient launch failure.
func (l *Launcher) Launch(ctx context.Context, spec Spec) (*Handle, error) {
	resolved, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Path, ErrExecutableNotFound)
	}

	var cmd *exec.Cmd
	if spec.Privilege == PrivilegeElevated {
		sudo := l.SudoPath
		if sudo == "" {
			sudo = "sudo"
		}
		args := append([]string{"-n", resolved}, spec.Args...)
		cmd = exec.CommandContext(ctx, sudo, args...)
	} else {
		cmd = exec.CommandContext(ctx, resolved, spec.Args...)
	}

	var tail *Tail
	if l.CaptureStderr {
		n := l.TailLines
		if n <= 0 {
			n = DefaultTailLines
		}
		tail = NewTail(n)
		cmd.Stderr = tail
	}

	// Own process group so shutdown signals reach the worker's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// On context cancellation, SIGTERM the group and let WaitDelay escalate
	// to SIGKILL if the worker ignores it.
	grace := l.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	cmd.Cancel = func() error {
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			return syscall.Kill(-pgid, syscall.SIGTERM)
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	return &Handle{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		tail: tail,
	}, nil
}

// Exit is the termination result of a worker process.
type Exit struct {
	// Code is the process exit code. Signal deaths map to 128+signum.
	Code int

	// Stderr is the captured diagnostic tail, empty unless capture was
	// enabled on the launcher.
	Stderr string
}

// Handle tracks a launched worker process until it terminates.
type Handle struct {
	cmd  *exec.Cmd
	pid  int
	tail *Tail
}

// PID returns the child process ID.
func (h *Handle) PID() int {
	return h.pid
}

// Wait blocks until the process terminates and reaps it. It must be called
// exactly once per handle; the owning keep-alive loop is responsible for
// waiting before any relaunch so no zombies accumulate.
func (h *Handle) Wait() Exit {
	err := h.cmd.Wait()

	var stderr string
	if h.tail != nil {
		stderr = h.tail.String()
	}

	return Exit{
		Code:   extractExitCode(err),
		Stderr: stderr,
	}
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}

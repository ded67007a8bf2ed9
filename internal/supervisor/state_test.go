package supervisor

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateLaunching, "launching"},
		{StateRunning, "running"},
		{StateRestartWait, "restart_wait"},
		{StateGivenUp, "given_up"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
		{State(-1), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestState_IsActive(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateCreated, false},
		{StateLaunching, true},
		{StateRunning, true},
		{StateRestartWait, true},
		{StateGivenUp, false},
		{StateStopped, false},
		{State(99), false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsActive(); got != tt.want {
				t.Errorf("State(%d).IsActive() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateCreated, false},
		{StateLaunching, false},
		{StateRunning, false},
		{StateRestartWait, false},
		{StateGivenUp, true},
		{StateStopped, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("State(%d).IsTerminal() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/procwarden/procwarden/internal/orchestrator"
)

// fakeSource is a canned StatusSource for tests.
type fakeSource struct {
	workers  []orchestrator.WorkerStatus
	active   int
	givenUp  int
	restarts int
}

func (f *fakeSource) Snapshot() []orchestrator.WorkerStatus { return f.workers }
func (f *fakeSource) ActiveCount() int                      { return f.active }
func (f *fakeSource) GivenUpCount() int                     { return f.givenUp }
func (f *fakeSource) RestartCount() int                     { return f.restarts }
func (f *fakeSource) WorkerCount() int                      { return len(f.workers) }

func testSource() *fakeSource {
	return &fakeSource{
		workers: []orchestrator.WorkerStatus{
			{Name: "api", Path: "/usr/bin/api", State: "running", PID: 4242, Launches: 3, Restarts: 2, LastExit: "1", Uptime: 90 * time.Second},
			{Name: "ghost", Path: "/no/such/binary", State: "given_up", LastExit: "-"},
		},
		active:   1,
		givenUp:  1,
		restarts: 2,
	}
}

func TestNew_Defaults(t *testing.T) {
	m := New(Config{MetricsAddr: "0.0.0.0:17091"})

	if m.width != 80 || m.height != 24 {
		t.Errorf("default size = %dx%d, want 80x24", m.width, m.height)
	}
	if m.quitting {
		t.Error("new model should not be quitting")
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			m := New(Config{})

			var msg tea.KeyMsg
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}

			updated, cmd := m.Update(msg)
			if !updated.(Model).quitting {
				t.Errorf("key %q should set quitting", key)
			}
			if cmd == nil {
				t.Errorf("key %q should return tea.Quit", key)
			}
		})
	}
}

func TestUpdate_WindowSize(t *testing.T) {
	m := New(Config{})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := updated.(Model)
	if got.width != 120 || got.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", got.width, got.height)
	}
}

func TestUpdate_TickPullsFromSource(t *testing.T) {
	m := New(Config{Source: testSource()})

	updated, cmd := m.Update(TickMsg(time.Now()))
	got := updated.(Model)

	if len(got.workers) != 2 {
		t.Fatalf("workers = %d, want 2", len(got.workers))
	}
	if got.active != 1 || got.givenUp != 1 || got.restarts != 2 {
		t.Errorf("counters = (%d, %d, %d), want (1, 1, 2)",
			got.active, got.givenUp, got.restarts)
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestUpdate_TickWithoutSource(t *testing.T) {
	m := New(Config{})

	updated, _ := m.Update(TickMsg(time.Now()))
	if len(updated.(Model).workers) != 0 {
		t.Error("no source should mean no workers")
	}
}

func TestView_ShowsWorkers(t *testing.T) {
	m := New(Config{Source: testSource(), MetricsAddr: "0.0.0.0:17091"})
	updated, _ := m.Update(TickMsg(time.Now()))

	view := updated.(Model).View()
	for _, want := range []string{"procwarden", "api", "ghost", "running", "given_up", "4242", "0.0.0.0:17091"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestView_EmptyWhenQuitting(t *testing.T) {
	m := New(Config{})
	updated, _ := m.Update(QuitMsg{})

	if updated.(Model).View() != "" {
		t.Error("quitting view should be empty")
	}
}

func TestSupervisedFraction(t *testing.T) {
	m := New(Config{Source: testSource()})
	updated, _ := m.Update(TickMsg(time.Now()))
	got := updated.(Model)

	if f := got.SupervisedFraction(); f != 0.5 {
		t.Errorf("SupervisedFraction() = %v, want 0.5", f)
	}

	empty := New(Config{})
	if f := empty.SupervisedFraction(); f != 0 {
		t.Errorf("empty SupervisedFraction() = %v, want 0", f)
	}
}

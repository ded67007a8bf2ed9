package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/procwarden/procwarden/internal/orchestrator"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// StatusSource provides the current state of the worker fleet. The
// orchestrator's Manager satisfies this.
type StatusSource interface {
	Snapshot() []orchestrator.WorkerStatus
	ActiveCount() int
	GivenUpCount() int
	RestartCount() int
	WorkerCount() int
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	metricsAddr string

	// Current state
	workers    []orchestrator.WorkerStatus
	active     int
	givenUp    int
	restarts   int
	total      int
	startTime  time.Time
	lastUpdate time.Time

	// Display options
	width  int
	height int

	// Fleet source (for fetching updates)
	source StatusSource

	// Quit flag
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	MetricsAddr string
	Source      StatusSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// Note: tea.WithAltScreen() is passed when creating the program,
	// so we don't need tea.EnterAltScreen here.
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// refresh pulls the latest fleet state from the source.
func (m *Model) refresh() {
	if m.source == nil {
		return
	}
	m.workers = m.source.Snapshot()
	m.active = m.source.ActiveCount()
	m.givenUp = m.source.GivenUpCount()
	m.restarts = m.source.RestartCount()
	m.total = m.source.WorkerCount()
	m.lastUpdate = time.Now()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the supervisor started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// ActiveWorkers returns the current active worker count.
func (m Model) ActiveWorkers() int {
	return m.active
}

// SupervisedFraction returns the share of workers still supervised
// (0.0 to 1.0).
func (m Model) SupervisedFraction() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.active) / float64(m.total)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatUptime formats a worker uptime compactly.
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncate shortens a string to width runes, keeping the tail.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return "..." + string(runes[len(runes)-(width-3):])
}

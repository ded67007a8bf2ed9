package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the fleet dashboard.
func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderFleet())
	sections = append(sections, m.renderWorkerTable())
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	fleetLabel := GetFleetLabel(m.active, m.total, m.givenUp)

	header := fmt.Sprintf(
		" procwarden │ %s │ Workers: %d/%d │ Elapsed: %s ",
		fleetLabel,
		m.active,
		m.total,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Fleet Section
// =============================================================================

func (m Model) renderFleet() string {
	// Supervised fraction bar
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	bar := RenderProgressBar(m.SupervisedFraction(), barWidth)

	var status string
	switch {
	case m.total == 0:
		status = mutedStyle.Render("no workers configured")
	case m.givenUp > 0:
		status = statusWarning.Render(fmt.Sprintf("⚠ %d worker(s) given up (executable not found)", m.givenUp))
	case m.active == m.total:
		status = statusOK.Render("✓ All workers supervised")
	default:
		status = statusInfo.Render(fmt.Sprintf("Starting... %d/%d", m.active, m.total))
	}

	rows := []string{
		sectionHeaderStyle.Render("Fleet"),
		bar,
		status,
		RenderKeyValue("Total restarts", fmt.Sprintf("%d", m.restarts)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Worker Table
// =============================================================================

func (m Model) renderWorkerTable() string {
	header := tableHeaderStyle.Render(fmt.Sprintf(
		"%-22s %-14s %7s %9s %9s %10s %8s",
		"WORKER", "STATE", "PID", "LAUNCHES", "RESTARTS", "LAST EXIT", "UPTIME",
	))

	rows := []string{sectionHeaderStyle.Render("Workers"), header}

	if len(m.workers) == 0 {
		rows = append(rows, mutedStyle.Render("waiting for first snapshot..."))
	}

	for _, w := range m.workers {
		uptime := "-"
		pid := "-"
		if w.State == "running" {
			uptime = formatUptime(w.Uptime)
			pid = fmt.Sprintf("%d", w.PID)
		}
		row := fmt.Sprintf(
			"%-22s %s %7s %9d %9d %10s %8s",
			truncate(w.Name, 22),
			GetStateStyle(w.State).Width(14).Render(w.State),
			pid,
			w.Launches,
			w.Restarts,
			w.LastExit,
			uptime,
		)
		rows = append(rows, row)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	keys := "q: quit │ r: refresh"
	if m.metricsAddr != "" {
		keys += " │ metrics: http://" + m.metricsAddr + "/metrics"
	}
	keys += " │ updated " + m.lastUpdate.Format("15:04:05")

	return footerStyle.Render(" " + keys)
}

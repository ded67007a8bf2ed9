// Package stats formats the exit summary printed when the supervisor
// shuts down.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/procwarden/procwarden/internal/metrics"
)

// WorkerRow is one worker's line in the exit summary table.
type WorkerRow struct {
	Name     string
	State    string
	Launches int
	Restarts int
	LastExit string // "-" if the worker never exited
}

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// MetricsAddr is the Prometheus metrics endpoint address, if enabled.
	MetricsAddr string
}

const rule = "═══════════════════════════════════════════════════════════════════════════════\n"
const thinRule = "───────────────────────────────────────────────────────────────────────────────\n"

// FormatExitSummary formats the run summary for display at shutdown.
func FormatExitSummary(s *metrics.Summary, workers []WorkerRow, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("                           procwarden Exit Summary\n")
	b.WriteString(rule)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Configured Workers:     %d\n", s.ConfiguredWorkers)
	fmt.Fprintf(&b, "Total Launches:         %d\n", s.TotalLaunches)
	fmt.Fprintf(&b, "Total Restarts:         %d\n", s.TotalRestarts)
	if s.GiveUps > 0 {
		fmt.Fprintf(&b, "Given Up:               %d\n", s.GiveUps)
	}
	b.WriteString("\n")

	if len(workers) > 0 {
		b.WriteString(thinRule)
		b.WriteString("                                  Workers\n")
		b.WriteString(thinRule)
		b.WriteString("\n")

		fmt.Fprintf(&b, "  %-24s %-12s %9s %9s %10s\n",
			"Worker", "State", "Launches", "Restarts", "Last Exit")
		b.WriteString("  " + strings.Repeat("─", 68) + "\n")
		for _, w := range workers {
			fmt.Fprintf(&b, "  %-24s %-12s %9d %9d %10s\n",
				truncateName(w.Name, 24), w.State, w.Launches, w.Restarts, w.LastExit)
		}
		b.WriteString("\n")
	}

	if len(s.ExitCodes) > 0 {
		b.WriteString(thinRule)
		b.WriteString("                                Exit Codes\n")
		b.WriteString(thinRule)
		b.WriteString("\n")

		codes := make([]int, 0, len(s.ExitCodes))
		for code := range s.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), s.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if s.UptimeP50 > 0 || s.UptimeP95 > 0 {
		b.WriteString(thinRule)
		b.WriteString("                            Uptime Distribution\n")
		b.WriteString(thinRule)
		b.WriteString("\n")

		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatDuration(s.UptimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatDuration(s.UptimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatDuration(s.UptimeP99))
		fmt.Fprintf(&b, "  Max:                  %s\n", FormatDuration(s.UptimeMax))
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(rule)

	return b.String()
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 126:
		return "(not executable)"
	case 127:
		return "(not found)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// truncateName shortens long worker names for the table.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	return "..." + name[len(name)-max+3:]
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

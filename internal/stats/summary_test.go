package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/procwarden/procwarden/internal/metrics"
)

func sampleSummary() *metrics.Summary {
	return &metrics.Summary{
		Duration:          90 * time.Minute,
		ConfiguredWorkers: 3,
		TotalLaunches:     120,
		TotalRestarts:     117,
		GiveUps:           1,
		ExitCodes:         map[int]int64{0: 5, 1: 110, 143: 2},
		UptimeP50:         42 * time.Second,
		UptimeP95:         5 * time.Minute,
		UptimeP99:         10 * time.Minute,
		UptimeMax:         12 * time.Minute,
	}
}

func TestFormatExitSummary_Sections(t *testing.T) {
	workers := []WorkerRow{
		{Name: "agent", State: "running", Launches: 60, Restarts: 59, LastExit: "1"},
		{Name: "collector", State: "running", Launches: 60, Restarts: 58, LastExit: "0"},
		{Name: "ghost", State: "given_up", Launches: 0, Restarts: 0, LastExit: "-"},
	}

	out := FormatExitSummary(sampleSummary(), workers, SummaryConfig{MetricsAddr: "0.0.0.0:17091"})

	wants := []string{
		"procwarden Exit Summary",
		"Run Duration:           01:30:00",
		"Configured Workers:     3",
		"Total Launches:         120",
		"Total Restarts:         117",
		"Given Up:               1",
		"agent",
		"collector",
		"given_up",
		"Exit Codes",
		"(clean)",
		"(SIGTERM)",
		"Uptime Distribution",
		"P50 (median):         00:00:42",
		"Max:                  00:12:00",
		"http://0.0.0.0:17091/metrics",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestFormatExitSummary_OmitsEmptySections(t *testing.T) {
	s := &metrics.Summary{
		Duration:          time.Minute,
		ConfiguredWorkers: 1,
		ExitCodes:         map[int]int64{},
	}

	out := FormatExitSummary(s, nil, SummaryConfig{})

	if strings.Contains(out, "Exit Codes") {
		t.Error("summary should omit Exit Codes section when empty")
	}
	if strings.Contains(out, "Uptime Distribution") {
		t.Error("summary should omit Uptime Distribution with no samples")
	}
	if strings.Contains(out, "Given Up") {
		t.Error("summary should omit Given Up line when zero")
	}
	if strings.Contains(out, "Metrics endpoint") {
		t.Error("summary should omit metrics endpoint when disabled")
	}
}

func TestTruncateName(t *testing.T) {
	if got := truncateName("short", 24); got != "short" {
		t.Errorf("truncateName(short) = %q", got)
	}
	long := "/very/long/path/to/some/deeply/nested/binary"
	got := truncateName(long, 24)
	if len(got) != 24 {
		t.Errorf("truncated length = %d, want 24", len(got))
	}
	if !strings.HasPrefix(got, "...") {
		t.Errorf("truncated name = %q, want ... prefix", got)
	}
	if !strings.HasSuffix(long, got[3:]) {
		t.Errorf("truncated name %q should keep the path tail", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{61 * time.Second, "00:01:01"},
		{3*time.Hour + 25*time.Minute + 45*time.Second, "03:25:45"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{999, "999"},
		{1_500, "1.5K"},
		{2_000_000, "2.0M"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2_048, "2.05 KB"},
		{3_500_000, "3.50 MB"},
		{7_250_000_000, "7.25 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

package worker

import (
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single captured line before
	// truncation.
	MaxLineLength = 4096

	// DefaultTailLines is the default number of stderr lines kept per worker.
	DefaultTailLines = 50
)

// Tail is an io.Writer keeping a bounded circular buffer of the most recent
// lines written to it. It is attached to a worker's stderr when diagnostic
// capture is enabled, so crash logs can include the worker's final output.
type Tail struct {
	mu      sync.Mutex
	lines   []string
	idx     int
	filled  bool
	partial strings.Builder
}

// NewTail creates a tail keeping at most max lines.
func NewTail(max int) *Tail {
	if max <= 0 {
		max = DefaultTailLines
	}
	return &Tail{lines: make([]string, max)}
}

// Write implements io.Writer. Input is split on newlines; a trailing partial
// line is buffered until completed or flushed by String/Lines.
func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			t.appendLine(t.partial.String())
			t.partial.Reset()
			continue
		}
		if t.partial.Len() < MaxLineLength {
			t.partial.WriteByte(b)
		}
	}
	return len(p), nil
}

// appendLine stores a completed line in the circular buffer.
func (t *Tail) appendLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}
	t.lines[t.idx] = line
	t.idx = (t.idx + 1) % len(t.lines)
	if t.idx == 0 {
		t.filled = true
	}
}

// Lines returns the buffered lines in write order, including any pending
// partial line.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.lines)+1)
	if t.filled {
		for i := 0; i < len(t.lines); i++ {
			out = append(out, t.lines[(t.idx+i)%len(t.lines)])
		}
	} else {
		out = append(out, t.lines[:t.idx]...)
	}
	if t.partial.Len() > 0 {
		out = append(out, t.partial.String())
	}
	return out
}

// String returns the buffered lines joined with newlines.
func (t *Tail) String() string {
	return strings.Join(t.Lines(), "\n")
}

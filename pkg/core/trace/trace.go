// Package trace provides the append-only audit log that recognition
// operations return to their callers. It is data, not process logging:
// every pipeline stage appends human-readable lines describing what it
// decided, and the final slice is part of the recognition result.
package trace

import "fmt"

// Trace accumulates audit lines in the order stages emit them.
type Trace struct {
	lines []string
}

// New returns an empty trace.
func New() *Trace {
	return &Trace{}
}

// Log appends a single formatted line.
func (t *Trace) Log(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

// Section appends a named block of messages. An empty msgs slice still
// records the section header so callers can see the stage ran.
func (t *Trace) Section(name string, msgs []string) {
	t.lines = append(t.lines, fmt.Sprintf("[%s]", name))
	if len(msgs) == 0 {
		t.lines = append(t.lines, "  (no actions)")
		return
	}
	for _, m := range msgs {
		t.lines = append(t.lines, "  "+m)
	}
}

// Lines returns the accumulated lines. The returned slice is the
// trace's backing array; callers must not mutate it.
func (t *Trace) Lines() []string {
	if t == nil {
		return nil
	}
	return t.lines
}

// Len reports the number of recorded lines.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.lines)
}

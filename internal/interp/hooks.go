package interp

import (
	"fmt"
	"io"
	"strings"
	"tinyc/internal/util"
)

// StepKind says where in a run a step hook fired.
type StepKind int

const (
	StepLoop StepKind = iota
	StepIteration
	StepStatement
)

func (k StepKind) String() string {
	switch k {
	case StepLoop:
		return "loop"
	case StepIteration:
		return "iteration"
	case StepStatement:
		return "statement"
	default:
		return "unknown"
	}
}

// Step describes one step-hook call. Source is the text of the construct.
type Step struct {
	Kind   StepKind
	Offset int
	Source string
}

// StepHook is called at loop entry, before each iteration and after each
// expression statement. A host may block inside it to pause the run; a
// non-nil error stops the run.
type StepHook func(Step) error

// Liveness is called once per statement and once per loop iteration. A
// non-nil error stops the run.
type Liveness func() error

func (m *machine) tracing() bool {
	return (m.ip.animate || m.ip.stepping) && !m.ip.reportPos
}

func (m *machine) tracef(format string, args ...any) {
	fmt.Fprintf(m.ip.trace, format, args...)
}

func (m *machine) text(s, e int) string {
	return strings.TrimSpace(string(m.src[s:e]))
}

func (m *machine) step(kind StepKind, s, e int) error {
	if m.ip.stepHook == nil {
		return nil
	}
	if kind != StepStatement && m.ip.reportPos {
		return nil
	}
	if err := m.ip.stepHook(Step{Kind: kind, Offset: s, Source: m.text(s, e)}); err != nil {
		return stopped(s, err)
	}
	return nil
}

func (m *machine) alive(at int) error {
	if m.ip.liveness == nil {
		return nil
	}
	if err := m.ip.liveness(); err != nil {
		return stopped(at, err)
	}
	return nil
}

func stopped(at int, cause error) error {
	if e, ok := cause.(*Error); ok && e.Kind == KindStopped {
		return e
	}
	return &Error{Kind: KindStopped, Offset: at, Err: cause}
}

// writeError prints the console message for err, and for syntax errors the
// offending line with a caret under the offset.
func writeError(w io.Writer, src []byte, err error) {
	e, ok := err.(*Error)
	if !ok {
		fmt.Fprintln(w, "Internal error")
		return
	}
	if e.Msg != "" {
		fmt.Fprintf(w, "%s: %s\n", e.message(), e.Msg)
	} else {
		fmt.Fprintln(w, e.message())
	}
	if e.Kind != KindSyntax || e.Offset < 0 || e.Offset > len(src) {
		return
	}
	if e.Snippet != "" {
		fmt.Fprintf(w, "near %q\n", e.Snippet)
	}
	fmt.Fprintln(w, util.ContextLines(src, e.Offset))
}

package interp

import "fmt"

// Signal is the control value a statement run completes with.
type Signal int

const (
	Completed Signal = iota
	Break
	Continue
)

func (s Signal) String() string {
	switch s {
	case Completed:
		return "completed"
	case Break:
		return "break"
	case Continue:
		return "continue"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Kind classifies an *Error.
type Kind int

const (
	KindSyntax Kind = iota + 1
	KindDivideByZero
	KindInternal
	KindStopped
	KindDepth
	KindBusy
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindDivideByZero:
		return "divide by zero"
	case KindInternal:
		return "internal error"
	case KindStopped:
		return "stopped"
	case KindDepth:
		return "nesting too deep"
	case KindBusy:
		return "interpreter busy"
	case KindTooLarge:
		return "script too large"
	default:
		return "unknown error"
	}
}

// Error is returned by every interpreter entry point. Offset is relative to
// the start of the scanned source; Snippet is the source text around it.
type Error struct {
	Kind    Kind
	Msg     string
	Offset  int
	Snippet string
	Err     error
}

// Sentinels for errors.Is.
var (
	ErrSyntax       = &Error{Kind: KindSyntax}
	ErrDivideByZero = &Error{Kind: KindDivideByZero}
	ErrInternal     = &Error{Kind: KindInternal}
	ErrStopped      = &Error{Kind: KindStopped}
	ErrDepth        = &Error{Kind: KindDepth}
	ErrBusy         = &Error{Kind: KindBusy}
	ErrTooLarge     = &Error{Kind: KindTooLarge}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" at offset %d near %q", e.Offset, e.Snippet)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// message is the fixed console text printed when a run fails.
func (e *Error) message() string {
	switch e.Kind {
	case KindSyntax:
		return "Syntax error"
	case KindDivideByZero:
		return "Divided by 0"
	case KindStopped:
		return "Stopped"
	case KindDepth:
		return "Nesting too deep"
	case KindBusy:
		return "Busy"
	case KindTooLarge:
		return "Script too large"
	default:
		return "Internal error"
	}
}

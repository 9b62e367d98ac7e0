package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"tinyc/internal/interp"
)

var ErrQuit = errors.New("quit by user")

// Stepper is a step hook that prints each step and waits for a line of
// input. "q" stops the run, "c" continues without pausing.
type Stepper struct {
	in      *bufio.Reader
	out     io.Writer
	running bool
}

func NewStepper(in io.Reader, out io.Writer) *Stepper {
	return &Stepper{in: bufio.NewReader(in), out: out}
}

// Hook is passed to interp.WithStepHook.
func (s *Stepper) Hook(step interp.Step) error {
	if s.running {
		return nil
	}
	fmt.Fprintf(s.out, "[%s @%d] %s > ", step.Kind, step.Offset, step.Source)
	line, err := s.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.TrimSpace(line) {
	case "q", "quit":
		return ErrQuit
	case "c", "continue":
		s.running = true
	}
	if errors.Is(err, io.EOF) {
		// no more input, finish without pausing
		s.running = true
	}
	return nil
}

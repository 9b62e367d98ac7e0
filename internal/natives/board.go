// Package natives provides a simulated microcontroller board whose pins,
// clock and serial output are exposed to scripts as native functions.
package natives

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"tinyc/internal/interp"
)

const NumPins = 20

// Pin modes as passed to pinMode.
const (
	ModeInput int32 = iota
	ModeOutput
	ModeInputPullup
)

type Pin struct {
	Mode  int32
	Value int32
}

type Board struct {
	mu    sync.Mutex
	pins  [NumPins]Pin
	out   io.Writer
	start time.Time
	now   func() time.Time
	sleep func(time.Duration)
}

type Option func(*Board)

// WithClock replaces the wall clock used by millis and delay.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(b *Board) {
		b.now = now
		b.sleep = sleep
	}
}

// NewBoard creates a board whose print output goes to out.
func NewBoard(out io.Writer, opts ...Option) *Board {
	b := &Board{out: out, now: time.Now, sleep: time.Sleep}
	for _, opt := range opts {
		opt(b)
	}
	b.start = b.now()
	return b
}

// Register adds the board natives to ip.
func (b *Board) Register(ip *interp.Interpreter) error {
	ones := []struct {
		name string
		f    interp.Func1
	}{
		{"digitalRead", b.digitalRead},
		{"analogRead", b.analogRead},
		{"delay", b.delay},
		{"millis", b.millis},
		{"print", b.print},
		{"abs", abs},
	}
	twos := []struct {
		name string
		f    interp.Func2
	}{
		{"pinMode", b.pinMode},
		{"digitalWrite", b.digitalWrite},
		{"analogWrite", b.analogWrite},
		{"min", min32},
		{"max", max32},
	}

	for _, n := range ones {
		if err := ip.Register1(n.name, n.f); err != nil {
			return fmt.Errorf("register %s: %w", n.name, err)
		}
	}
	for _, n := range twos {
		if err := ip.Register2(n.name, n.f); err != nil {
			return fmt.Errorf("register %s: %w", n.name, err)
		}
	}
	if err := ip.Register3("constrain", constrain); err != nil {
		return fmt.Errorf("register constrain: %w", err)
	}
	return nil
}

// Pin returns the state of pin n.
func (b *Board) Pin(n int) (Pin, bool) {
	if n < 0 || n >= NumPins {
		return Pin{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[n], true
}

// SetInput drives an input pin from outside, as a sensor or button would.
func (b *Board) SetInput(n int, value int32) bool {
	if n < 0 || n >= NumPins {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pins[n].Value = value
	return true
}

func (b *Board) pin(n int32) *Pin {
	if n < 0 || n >= NumPins {
		slog.Warn("invalid pin", slog.Int("pin", int(n)))
		return nil
	}
	return &b.pins[n]
}

func (b *Board) pinMode(n, mode int32) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(n)
	if p == nil || mode < ModeInput || mode > ModeInputPullup {
		return -1
	}
	p.Mode = mode
	if mode == ModeInputPullup {
		p.Value = 1
	}
	return mode
}

func (b *Board) digitalWrite(n, v int32) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(n)
	if p == nil {
		return -1
	}
	if p.Mode != ModeOutput {
		slog.Debug("write to pin not in output mode", slog.Int("pin", int(n)))
	}
	if v != 0 {
		v = 1
	}
	p.Value = v
	return v
}

func (b *Board) digitalRead(n int32) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(n)
	if p == nil {
		return -1
	}
	if p.Value != 0 {
		return 1
	}
	return 0
}

// analogWrite sets a PWM duty cycle, clamped to 0..255.
func (b *Board) analogWrite(n, v int32) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(n)
	if p == nil {
		return -1
	}
	p.Value = constrain(v, 0, 255)
	return p.Value
}

// analogRead returns the pin level as a 10-bit reading.
func (b *Board) analogRead(n int32) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(n)
	if p == nil {
		return -1
	}
	return constrain(p.Value, 0, 1023)
}

func (b *Board) delay(ms int32) int32 {
	if ms > 0 {
		b.sleep(time.Duration(ms) * time.Millisecond)
	}
	return ms
}

// millis ignores its argument; scripts call it as millis().
func (b *Board) millis(int32) int32 {
	return int32(b.now().Sub(b.start).Milliseconds())
}

func (b *Board) print(v int32) int32 {
	fmt.Fprintln(b.out, v)
	return v
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func min32(a, b int32) int32 {
	return min(a, b)
}

func max32(a, b int32) int32 {
	return max(a, b)
}

func constrain(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}

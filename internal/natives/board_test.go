package natives

import (
	"bytes"
	"testing"
	"time"
	"tinyc/internal/interp"
)

type fakeClock struct {
	t     time.Time
	slept time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.slept += d
	c.t = c.t.Add(d)
}

func newTestBoard(t *testing.T) (*Board, *interp.Interpreter, *bytes.Buffer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var out bytes.Buffer
	b := NewBoard(&out, WithClock(clock.now, clock.sleep))
	ip := interp.New()
	if err := b.Register(ip); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return b, ip, &out, clock
}

func runScript(t *testing.T, ip *interp.Interpreter, script string) {
	t.Helper()
	if err := ip.Load([]byte(script)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := ip.Run(); err != nil {
		t.Fatalf("Run(%q): %v", script, err)
	}
}

func TestBlink(t *testing.T) {
	b, ip, _, clock := newTestBoard(t)
	runScript(t, ip, `
pinMode(13, 1);
for (i = 0; i < 3; i = i + 1) {
  digitalWrite(13, HIGH);
  delay(100);
  digitalWrite(13, LOW);
  delay(100);
}
t = millis();
`)
	if clock.slept != 600*time.Millisecond {
		t.Errorf("slept %v, want 600ms", clock.slept)
	}
	if v, _ := ip.Variable('t'); v != 600 {
		t.Errorf("millis() = %d, want 600", v)
	}
	p, _ := b.Pin(13)
	if p.Mode != ModeOutput || p.Value != 0 {
		t.Errorf("pin 13 = %+v", p)
	}
}

func TestNatives(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int32
	}{
		{"abs", "abs(-5)", 5},
		{"min", "min(3, -2)", -2},
		{"max", "max(3, -2)", 3},
		{"constrain low", "constrain(-4, 0, 10)", 0},
		{"constrain high", "constrain(40, 0, 10)", 10},
		{"constrain inside", "constrain(4, 0, 10)", 4},
		{"analog write clamps", "analogWrite(3, 300)", 255},
		{"digital write normalizes", "digitalWrite(2, 7)", 1},
		{"invalid pin", "digitalRead(99)", -1},
		{"invalid mode", "pinMode(2, 9)", -1},
		{"pullup reads high", "pinMode(4, 2) + digitalRead(4)", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ip, _, _ := newTestBoard(t)
			got, err := ip.Evaluate([]byte(tt.input))
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestInputsAndPrint(t *testing.T) {
	b, ip, out, _ := newTestBoard(t)
	b.SetInput(7, 1)
	b.SetInput(0, 2000)
	runScript(t, ip, "if (digitalRead(7)) print(analogRead(0)); else print(0); print(-3);")
	if got := out.String(); got != "1023\n-3\n" {
		t.Errorf("output = %q", got)
	}
	if b.SetInput(NumPins, 1) {
		t.Error("SetInput accepted an out of range pin")
	}
	if _, ok := b.Pin(-1); ok {
		t.Error("Pin(-1) reported ok")
	}
}

func TestRegisterTwice(t *testing.T) {
	b, ip, _, _ := newTestBoard(t)
	if err := b.Register(ip); err == nil {
		t.Error("second Register succeeded")
	}
}

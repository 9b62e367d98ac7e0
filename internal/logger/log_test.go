package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", TRACE},
		{"DEBUG", DEBUG},
		{" info ", INFO},
		{"warn", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"none", NONE},
		{"bogus", NONE},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test", WARN)
	l.SetOutput(&buf)

	l.Debugf("hidden %d", 1)
	l.Info("hidden")
	l.Warnf("shown %d", 2)
	l.Error("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below WARN were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] also shown") {
		t.Errorf("missing error line in %q", out)
	}
	if !strings.Contains(out, "[test] ") {
		t.Errorf("missing prefix in %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test", NONE)
	l.SetOutput(&buf)
	l.Error("dropped")
	if buf.Len() != 0 {
		t.Fatalf("NONE level wrote output: %q", buf.String())
	}
	l.SetLevel(TRACE)
	if l.Level() != TRACE {
		t.Fatalf("Level() = %s, want TRACE", l.Level())
	}
	l.Trace("kept")
	if !strings.Contains(buf.String(), "[TRACE] kept") {
		t.Errorf("trace line missing: %q", buf.String())
	}
}

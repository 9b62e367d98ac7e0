package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"tinyc/internal/host"
	"tinyc/internal/interp"
	"tinyc/internal/store"
)

func newSession(t *testing.T) (*Session, *interp.Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ip := interp.New(interp.WithTrace(&out))
	if err := ip.Register2("add", func(a, b int32) int32 { return a + b }); err != nil {
		t.Fatal(err)
	}
	return NewSession(ip, &out), ip, &out
}

func TestStart(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "expression prints value",
			input: "1+2*3\n",
			want:  []string{">> 7\n"},
		},
		{
			name:  "statements then vars",
			input: "for(i=0;i<3;i=i+1) n=n+add(i,1);\n:vars\n",
			want:  []string{"i = 3\n", "n = 6\n"},
		},
		{
			name:  "assignment expression",
			input: "b = 0x10\nb\n",
			want:  []string{"16\n>> 16\n"},
		},
		{
			name:  "reset",
			input: "a=1;\n:reset\n:vars\n",
			want:  []string{"(all zero)"},
		},
		{
			name:  "errors are reported",
			input: "1/0\nwhile(1 a=1;\n",
			want:  []string{"Divided by 0", "Syntax error"},
		},
		{
			name:  "break outside loop",
			input: "break;\n",
			want:  []string{"(break outside loop)"},
		},
		{
			name:  "unknown command",
			input: ":frobnicate\n",
			want:  []string{"unknown command :frobnicate"},
		},
		{
			name:  "natives",
			input: ":natives\n",
			want:  []string{"add/2"},
		},
		{
			name:  "quit stops reading",
			input: "a=1;\n:quit\na=2;\n",
			want:  []string{">> >> "},
		},
		{
			name:  "run without load",
			input: ":run\n",
			want:  []string{"nothing loaded"},
		},
		{
			name:  "save without store",
			input: ":save\n",
			want:  []string{"no store configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, out := newSession(t)
			Start(context.Background(), strings.NewReader(tt.input), out, s)
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output %q does not contain %q", out.String(), want)
				}
			}
		})
	}
}

func TestQuitSkipsRemainingInput(t *testing.T) {
	s, ip, out := newSession(t)
	Start(context.Background(), strings.NewReader("a=1;\n:quit\na=2;\n"), out, s)
	if a, _ := ip.Variable('a'); a != 1 {
		t.Errorf("a = %d, want 1", a)
	}
}

func TestLoadAndRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.c")
	if err := os.WriteFile(path, []byte("c=c+1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, ip, out := newSession(t)
	input := ":load " + path + "\n:run\n:run\nx=5;\n:run\n:load\n:load missing.c\n"
	Start(context.Background(), strings.NewReader(input), out, s)

	if c, _ := ip.Variable('c'); c != 3 {
		t.Errorf("c = %d, want 3", c)
	}
	for _, want := range []string{"loaded " + path + " (6 bytes)", "usage: :load <file>", "error: script file missing.c"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}
}

func TestSaveRestore(t *testing.T) {
	st, err := store.Open(context.Background(), "sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	s, ip, out := newSession(t)
	s.UseStore(st, "bench")
	Start(context.Background(), strings.NewReader(":restore\nq=42;\n:save\n:reset\n:restore\n"), out, s)

	if q, _ := ip.Variable('q'); q != 42 {
		t.Errorf("q = %d after restore, want 42", q)
	}
	for _, want := range []string{"no saved variables for bench", "saved variables for bench", "restored variables for bench"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	wd := host.NewWatchdog(0)
	ip := interp.New(interp.WithTrace(&out), interp.WithLiveness(wd.Feed))
	s := NewSession(ip, &out)
	s.UseWatchdog(wd, 0)

	if err := ip.Load([]byte("while(1);")); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(20*time.Millisecond, cancel)
	if err := s.run(ctx); !errors.Is(err, interp.ErrStopped) {
		t.Fatalf("run = %v, want %v", err, interp.ErrStopped)
	}

	// the stopped run does not end the session
	s.Execute(context.Background(), "a=5;")
	if a, _ := ip.Variable('a'); a != 5 {
		t.Errorf("a = %d after a stopped run, want 5", a)
	}
}

func TestRunTimeout(t *testing.T) {
	var out bytes.Buffer
	wd := host.NewWatchdog(0)
	ip := interp.New(interp.WithTrace(&out), interp.WithLiveness(wd.Feed))
	s := NewSession(ip, &out)
	s.UseWatchdog(wd, 10*time.Millisecond)

	Start(context.Background(), strings.NewReader("while(1);\nb=2;\n"), &out, s)
	if !strings.Contains(out.String(), "Stopped") {
		t.Errorf("output %q does not report the stopped run", out.String())
	}
	if b, _ := ip.Variable('b'); b != 2 {
		t.Errorf("b = %d, want 2", b)
	}
}

func TestComplete(t *testing.T) {
	s, _, _ := newSession(t)
	if err := s.ip.Register1("adc", func(v int32) int32 { return v }); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		line string
		want []string
	}{
		{":re", []string{":reset", ":restore"}},
		{"x = ad", []string{"x = adc(", "x = add("}},
		{"a=1; b=add(ad", []string{"a=1; b=add(adc(", "a=1; b=add(add("}},
		{"zz", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := s.complete(tt.line)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("complete(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsExpression(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"1+2", true},
		{"a = 3", true},
		{"add(1,2)", true},
		{"format(1)", true},
		{"iffy", true},
		{"a=1;", false},
		{"if (a) b=1", false},
		{"while(1)", false},
		{"for", false},
		{"{ a=1 }", false},
	}
	for _, tt := range tests {
		if got := isExpression(tt.line); got != tt.want {
			t.Errorf("isExpression(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

package interp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadCapacity(t *testing.T) {
	ip := New(WithCapacity(16))
	if ip.Capacity() != 16 {
		t.Fatalf("Capacity() = %d, want 16", ip.Capacity())
	}
	if err := ip.Load([]byte("a=1;")); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err := ip.Load([]byte(strings.Repeat("a=a+1;", 4)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized Load error = %v, want too large", err)
	}
	if got := string(ip.Script()); got != "a=1;" {
		t.Errorf("script after rejected load = %q, want previous script", got)
	}

	if _, err := ip.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a, _ := ip.Variable('a'); a != 1 {
		t.Errorf("a = %d, want 1", a)
	}
}

func TestLoadCopiesInput(t *testing.T) {
	ip := New()
	src := []byte("a=1;")
	if err := ip.Load(src); err != nil {
		t.Fatal(err)
	}
	src[2] = '9'
	if got := string(ip.Script()); got != "a=1;" {
		t.Errorf("script aliased caller buffer: %q", got)
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"blink.c":   {Data: []byte("for(i=0;i<3;i=i+1) n=n+2;")},
		"huge.c":    {Data: []byte(strings.Repeat(";", 64))},
		"dir/one.c": {Data: []byte("a=1;")},
	}

	ip := New(WithCapacity(32))
	if err := ip.LoadFS(fsys, "blink.c"); err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if _, err := ip.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, _ := ip.Variable('n'); n != 6 {
		t.Errorf("n = %d, want 6", n)
	}

	if err := ip.LoadFS(fsys, "huge.c"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("huge.c error = %v, want too large", err)
	}
	if err := ip.LoadFS(fsys, "missing.c"); err == nil {
		t.Error("missing file loaded")
	}
	if err := ip.LoadFS(fsys, "dir"); err == nil {
		t.Error("directory loaded")
	}
	if !strings.HasPrefix(string(ip.Script()), "for(") {
		t.Errorf("script replaced by failed loads: %q", ip.Script())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.c")
	if err := os.WriteFile(path, []byte("c=0; while(c<7) c=c+1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	ip := New()
	if err := ip.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := ip.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c, _ := ip.Variable('c'); c != 7 {
		t.Errorf("c = %d, want 7", c)
	}
}

func TestLoadFileErrorsNamePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	if err := os.MkdirAll(filepath.Join(dir, "sub.c"), 0o755); err != nil {
		t.Fatal(err)
	}
	big := filepath.Join(dir, "big.c")
	if err := os.WriteFile(big, []byte("a=1; b=2; c=3;"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ip   *Interpreter
		path string
	}{
		{"missing", New(), filepath.Join(dir, "loop.c")},
		{"directory", New(), filepath.Join(dir, "sub.c")},
		{"too large", New(WithCapacity(4)), big},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ip.LoadFile(tt.path)
			if err == nil {
				t.Fatalf("LoadFile(%q) succeeded", tt.path)
			}
			if !strings.Contains(err.Error(), tt.path) {
				t.Errorf("error %q does not name %q", err, tt.path)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	id := func(v int32) int32 { return v }
	tests := []struct {
		name    string
		native  string
		wantErr bool
	}{
		{"plain", "led", false},
		{"underscore", "_tick", false},
		{"digits", "pin13", false},
		{"single letter", "x", true},
		{"empty", "", true},
		{"leading digit", "9lives", true},
		{"dash", "bad-name", true},
		{"keyword", "while", true},
		{"keyword if", "if", true},
		{"constant", "HIGH", true},
		{"constant prefix", "HIGHEST", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := New()
			err := ip.Register1(tt.native, id)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register1(%q) error = %v, wantErr %v", tt.native, err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicatesAndNil(t *testing.T) {
	ip := New()
	must(t, ip.Register1("led", func(v int32) int32 { return v }))
	if err := ip.Register2("led", func(a, b int32) int32 { return a }); err == nil {
		t.Error("duplicate name accepted")
	}
	if err := ip.Register3("servo", nil); err == nil {
		t.Error("nil function accepted")
	}
	must(t, ip.Register2("ledOn", func(a, b int32) int32 { return a + b }))

	natives := ip.Natives()
	if len(natives) != 2 {
		t.Fatalf("Natives() = %d entries, want 2", len(natives))
	}
	if natives[0].Name != "led" || natives[0].Arity != 1 {
		t.Errorf("natives[0] = %s/%d", natives[0].Name, natives[0].Arity)
	}
	if natives[1].Name != "ledOn" || natives[1].Arity != 2 {
		t.Errorf("natives[1] = %s/%d", natives[1].Name, natives[1].Arity)
	}

	got, err := ip.Evaluate([]byte("ledOn(1,2) + led(5)"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != 8 {
		t.Errorf("ledOn(1,2) + led(5) = %d, want 8", got)
	}
}

func TestVariablesSnapshot(t *testing.T) {
	ip := New()
	if err := ip.SetVariable('q', 11); err != nil {
		t.Fatal(err)
	}
	if err := ip.SetVariable('7', 1); err == nil {
		t.Error("digit accepted as variable name")
	}
	snap := ip.Variables()
	if _, err := run(t, ip, "q=0; r=5;"); err != nil {
		t.Fatal(err)
	}
	ip.RestoreVariables(snap)
	if q, _ := ip.Variable('Q'); q != 11 {
		t.Errorf("q = %d after restore, want 11", q)
	}
	if r, _ := ip.Variable('r'); r != 0 {
		t.Errorf("r = %d after restore, want 0", r)
	}
	if _, ok := ip.Variable('$'); ok {
		t.Error("Variable('$') reported ok")
	}
	if SlotName(3) != 'd' {
		t.Errorf("SlotName(3) = %c", SlotName(3))
	}
}

func TestConstantsCopy(t *testing.T) {
	cs := Constants()
	if len(cs) != 4 {
		t.Fatalf("Constants() = %d entries, want 4", len(cs))
	}
	cs[0].Value = 99
	if Constants()[0].Value == 99 {
		t.Error("Constants() exposes the shared table")
	}
}

func TestErrorFormat(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindSyntax, Msg: "unexpected '#'", Offset: 3, Snippet: "#x"}, `syntax error: unexpected '#' at offset 3 near "#x"`},
		{&Error{Kind: KindDivideByZero}, "divide by zero"},
		{&Error{Kind: KindStopped, Err: cause}, "stopped: boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	if errors.Is(&Error{Kind: KindSyntax}, ErrDivideByZero) {
		t.Error("syntax error matched divide by zero")
	}
	if !errors.Is(tests[2].err, cause) {
		t.Error("stopped error does not unwrap to its cause")
	}
	if Break.String() != "break" || StepIteration.String() != "iteration" {
		t.Errorf("unexpected names %s %s", Break, StepIteration)
	}
}

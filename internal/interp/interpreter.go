// Package interp runs scripts written in a small C-like dialect directly
// from their source text. There is no tokenizer and no syntax tree: the
// statement executor scans for keywords and balanced delimiters and calls
// itself for nested bodies, and the expression evaluator scans for operator
// boundaries and calls itself for every operand.
//
// Operators bind in tiers: assignment, multiplicative, additive, relational
// and shift, bitwise, logical. Multiplicative operators fold left to right.
// The other binary tiers evaluate everything to their right up to the next
// lower-precedence operator as a single operand, so a-b-c is a-(b-c).
package interp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"tinyc/internal/logger"
)

const (
	DefaultCapacity = 1024
	DefaultMaxDepth = 128
)

var log = logger.NewLogger("interp", logger.SystemLogLevel())

// Interpreter owns one script buffer, the variable store and the native
// registry. It is not safe for concurrent use; a reentrant run is rejected
// with ErrBusy.
type Interpreter struct {
	script   []byte
	vars     Variables
	registry Registry

	trace    io.Writer
	stepHook StepHook
	liveness Liveness

	capacity    int
	maxDepth    int
	animate     bool
	stepping    bool
	reportPos   bool
	strictLoops bool

	running atomic.Bool
}

type Option func(*Interpreter)

// WithCapacity bounds the size of a loaded script in bytes.
func WithCapacity(n int) Option {
	return func(ip *Interpreter) {
		if n > 0 {
			ip.capacity = n
		}
	}
}

// WithMaxDepth bounds nesting of statements and expressions combined.
func WithMaxDepth(n int) Option {
	return func(ip *Interpreter) {
		if n > 0 {
			ip.maxDepth = n
		}
	}
}

// WithTrace sets the sink for trace output and error messages.
func WithTrace(w io.Writer) Option {
	return func(ip *Interpreter) {
		if w != nil {
			ip.trace = w
		}
	}
}

// WithAnimate echoes conditions and statements to the trace sink.
func WithAnimate(on bool) Option {
	return func(ip *Interpreter) { ip.animate = on }
}

// WithStepping traces like WithAnimate; hosts pair it with a pausing step hook.
func WithStepping(on bool) Option {
	return func(ip *Interpreter) { ip.stepping = on }
}

// WithReportPosition suppresses tracing and loop step hooks for hosts that
// report progress from statement offsets themselves.
func WithReportPosition(on bool) Option {
	return func(ip *Interpreter) { ip.reportPos = on }
}

// WithStrictLoops makes a break or continue that escapes every loop a
// syntax error instead of ending the run.
func WithStrictLoops(on bool) Option {
	return func(ip *Interpreter) { ip.strictLoops = on }
}

func WithStepHook(h StepHook) Option {
	return func(ip *Interpreter) { ip.stepHook = h }
}

func WithLiveness(l Liveness) Option {
	return func(ip *Interpreter) { ip.liveness = l }
}

func New(opts ...Option) *Interpreter {
	ip := &Interpreter{
		trace:    io.Discard,
		capacity: DefaultCapacity,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(ip)
	}
	return ip
}

func (ip *Interpreter) Capacity() int { return ip.capacity }

// Script returns a copy of the loaded script.
func (ip *Interpreter) Script() []byte {
	return append([]byte(nil), ip.script...)
}

// Register1 adds a one-argument native. Natives must be registered before
// the first run; lookup is by registration order.
func (ip *Interpreter) Register1(name string, f Func1) error {
	if f == nil {
		return fmt.Errorf("native %q: nil function", name)
	}
	return ip.register(&Native{Name: name, Arity: 1, f1: f})
}

func (ip *Interpreter) Register2(name string, f Func2) error {
	if f == nil {
		return fmt.Errorf("native %q: nil function", name)
	}
	return ip.register(&Native{Name: name, Arity: 2, f2: f})
}

func (ip *Interpreter) Register3(name string, f Func3) error {
	if f == nil {
		return fmt.Errorf("native %q: nil function", name)
	}
	return ip.register(&Native{Name: name, Arity: 3, f3: f})
}

func (ip *Interpreter) register(n *Native) error {
	if ip.running.Load() {
		return &Error{Kind: KindBusy, Msg: "cannot register natives during a run"}
	}
	if err := ip.registry.add(n); err != nil {
		return err
	}
	log.Debugf("registered native %s/%d", n.Name, n.Arity)
	return nil
}

// Natives lists registered natives in lookup order.
func (ip *Interpreter) Natives() []Native {
	return ip.registry.Natives()
}

// SetVariable assigns a letter-addressed slot; 'a' and 'A' are the same slot.
func (ip *Interpreter) SetVariable(name byte, value int32) error {
	if !ip.vars.Set(name, value) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	return nil
}

func (ip *Interpreter) Variable(name byte) (int32, bool) {
	return ip.vars.Get(name)
}

// Variables returns a snapshot of all slots.
func (ip *Interpreter) Variables() Variables {
	return ip.vars
}

// RestoreVariables replaces all slots, for example from a saved snapshot.
func (ip *Interpreter) RestoreVariables(v Variables) {
	ip.vars = v
}

// Load replaces the script. On error the previous script is kept.
func (ip *Interpreter) Load(src []byte) error {
	if ip.running.Load() {
		return &Error{Kind: KindBusy, Msg: "cannot load during a run"}
	}
	if len(src) > ip.capacity {
		log.Warnf("script exceeds max length of %d bytes", ip.capacity)
		return &Error{Kind: KindTooLarge, Msg: fmt.Sprintf("%d bytes, capacity is %d", len(src), ip.capacity)}
	}
	ip.script = append(make([]byte, 0, len(src)), src...)
	log.Debugf("loaded script (%d bytes)", len(src))
	return nil
}

// LoadFile loads a script from the host filesystem.
func (ip *Interpreter) LoadFile(path string) error {
	return ip.loadFS(os.DirFS(filepath.Dir(path)), filepath.Base(path), path)
}

// LoadFS loads the named script from fsys. The size is checked before the
// file is read.
func (ip *Interpreter) LoadFS(fsys fs.FS, name string) error {
	return ip.loadFS(fsys, name, name)
}

// loadFS reads name from fsys and reports errors against path.
func (ip *Interpreter) loadFS(fsys fs.FS, name, path string) error {
	fi, err := fs.Stat(fsys, name)
	if err != nil {
		log.Warnf("script file %s does not exist", path)
		return fmt.Errorf("script file %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("script file %s is a directory", path)
	}
	if fi.Size() > int64(ip.capacity) {
		log.Warnf("script exceeds max length of %d bytes", ip.capacity)
		return &Error{Kind: KindTooLarge, Msg: fmt.Sprintf("%s is %d bytes, capacity is %d", path, fi.Size(), ip.capacity)}
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}
	return ip.Load(data)
}

// Run executes the whole loaded script. A break or continue that escapes
// every loop ends the run early and is returned as the signal.
func (ip *Interpreter) Run() (Signal, error) {
	return ip.RunRange(0, len(ip.script))
}

// RunRange executes script[start:end] as a statement sequence.
func (ip *Interpreter) RunRange(start, end int) (Signal, error) {
	if !ip.running.CompareAndSwap(false, true) {
		return Completed, &Error{Kind: KindBusy, Msg: "run already in progress"}
	}
	defer ip.running.Store(false)

	if start < 0 || end > len(ip.script) || start > end {
		return Completed, &Error{Kind: KindInternal, Msg: fmt.Sprintf("range [%d,%d) outside script of %d bytes", start, end, len(ip.script))}
	}

	m := &machine{ip: ip, src: ip.script}
	sig, err := m.exec(start, end)
	if err == nil && sig != Completed && ip.strictLoops {
		err = &Error{Kind: KindSyntax, Msg: sig.String() + " outside loop", Offset: -1}
	}
	if err != nil {
		ip.fail(ip.script, err)
		return sig, err
	}
	if sig != Completed {
		log.Debugf("run halted by %s outside loop", sig)
	}
	return sig, nil
}

// Evaluate resolves expr as a single expression against the current
// variables and natives. The loaded script is not touched.
func (ip *Interpreter) Evaluate(expr []byte) (int32, error) {
	if !ip.running.CompareAndSwap(false, true) {
		return 0, &Error{Kind: KindBusy, Msg: "run already in progress"}
	}
	defer ip.running.Store(false)

	m := &machine{ip: ip, src: expr}
	v, err := m.eval(0, len(expr))
	if err != nil {
		ip.fail(expr, err)
		return 0, err
	}
	return v, nil
}

func (ip *Interpreter) fail(src []byte, err error) {
	var ie *Error
	if errors.As(err, &ie) {
		log.Debugf("run failed: %v", ie)
	}
	writeError(ip.trace, src, err)
}

// machine is the state of one run: the source being scanned and the
// current nesting depth.
type machine struct {
	ip    *Interpreter
	src   []byte
	depth int
}

func (m *machine) enter(at int) error {
	if m.depth >= m.ip.maxDepth {
		return &Error{Kind: KindDepth, Msg: fmt.Sprintf("limit is %d", m.ip.maxDepth), Offset: at, Snippet: m.snippet(at)}
	}
	m.depth++
	return nil
}

func (m *machine) leave() {
	m.depth--
}

// snippet returns up to 20 bytes of source starting at at, cut at a newline.
func (m *machine) snippet(at int) string {
	if at < 0 || at >= len(m.src) {
		return ""
	}
	end := at + 20
	if end > len(m.src) {
		end = len(m.src)
	}
	for i := at; i < end; i++ {
		if m.src[i] == '\n' {
			end = i
			break
		}
	}
	return string(m.src[at:end])
}

func (m *machine) errorf(kind Kind, at int, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Offset: at, Snippet: m.snippet(at)}
}

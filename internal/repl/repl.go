package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"
	"tinyc/internal/host"
	"tinyc/internal/interp"
	"tinyc/internal/store"

	"github.com/peterh/liner"
)

const PROMPT = ">> "

var commands = []string{":help", ":vars", ":reset", ":load", ":run", ":save", ":restore", ":natives", ":quit"}

// Session executes REPL input against one interpreter. Run errors are
// reported by the interpreter on its trace sink; the session reports
// everything else on out.
type Session struct {
	ip      *interp.Interpreter
	out     io.Writer
	program []byte
	store   *store.Store
	device  string
	wd      *host.Watchdog
	timeout time.Duration
}

func NewSession(ip *interp.Interpreter, out io.Writer) *Session {
	return &Session{ip: ip, out: out}
}

// UseStore enables :save and :restore for device.
func (s *Session) UseStore(st *store.Store, device string) {
	s.store = st
	s.device = device
}

// UseWatchdog arms wd for every run so that an interrupt or a positive
// timeout stops the run. wd must be the interpreter's liveness callback.
func (s *Session) UseWatchdog(wd *host.Watchdog, timeout time.Duration) {
	s.wd = wd
	s.timeout = timeout
}

// Execute handles one line of input. It returns false when the session
// should end.
func (s *Session) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, ":") {
		return s.command(ctx, line)
	}

	if isExpression(line) {
		v, err := s.ip.Evaluate([]byte(line))
		if err == nil {
			fmt.Fprintln(s.out, v)
		}
		return true
	}
	if err := s.ip.Load([]byte(line)); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return true
	}
	_ = s.run(ctx)
	return true
}

func (s *Session) command(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case ":quit", ":q":
		return false
	case ":help":
		fmt.Fprintln(s.out, "commands: "+strings.Join(commands, " "))
		fmt.Fprintln(s.out, "statements run immediately; a bare expression prints its value")
	case ":vars":
		s.printVars()
	case ":reset":
		s.ip.RestoreVariables(interp.Variables{})
	case ":natives":
		for _, n := range s.ip.Natives() {
			fmt.Fprintf(s.out, "%s/%d\n", n.Name, n.Arity)
		}
	case ":load":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: :load <file>")
			break
		}
		if err := s.ip.LoadFile(arg); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			break
		}
		s.program = s.ip.Script()
		fmt.Fprintf(s.out, "loaded %s (%d bytes)\n", arg, len(s.program))
	case ":run":
		if s.program == nil {
			fmt.Fprintln(s.out, "nothing loaded")
			break
		}
		if err := s.ip.Load(s.program); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			break
		}
		_ = s.run(ctx)
	case ":save", ":restore":
		s.persist(ctx, cmd == ":save")
	default:
		fmt.Fprintf(s.out, "unknown command %s. Type :help for a list.\n", cmd)
	}
	return true
}

// run executes the loaded script. An interrupt during the run stops only
// this run; the session keeps reading afterwards.
func (s *Session) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := host.RunWithTimeout(ctx, s.ip, s.wd, s.timeout)
	if err != nil {
		slog.Debug("repl run failed", slog.Any("error", err))
		var ie *interp.Error
		if !errors.As(err, &ie) {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		return err
	}
	if res.Signal != interp.Completed {
		fmt.Fprintf(s.out, "(%s outside loop)\n", res.Signal)
	}
	return nil
}

func (s *Session) persist(ctx context.Context, save bool) {
	if s.store == nil {
		fmt.Fprintln(s.out, "no store configured")
		return
	}
	if save {
		if err := s.store.SaveVariables(ctx, s.device, s.ip.Variables()); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return
		}
		fmt.Fprintf(s.out, "saved variables for %s\n", s.device)
		return
	}
	vars, ok, err := s.store.LoadVariables(ctx, s.device)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	if !ok {
		fmt.Fprintf(s.out, "no saved variables for %s\n", s.device)
		return
	}
	s.ip.RestoreVariables(vars)
	fmt.Fprintf(s.out, "restored variables for %s\n", s.device)
}

func (s *Session) printVars() {
	vars := s.ip.Variables()
	shown := false
	for i, v := range vars {
		if v != 0 {
			fmt.Fprintf(s.out, "%c = %d\n", interp.SlotName(i), v)
			shown = true
		}
	}
	if !shown {
		fmt.Fprintln(s.out, "(all zero)")
	}
}

// complete offers commands and native names for the word being typed.
func (s *Session) complete(line string) []string {
	start := strings.LastIndexAny(line, " \t;(),=+-*/%<>!&|^~{}") + 1
	prefix, word := line[:start], line[start:]
	if word == "" {
		return nil
	}
	var out []string
	if start == 0 && strings.HasPrefix(word, ":") {
		for _, c := range commands {
			if strings.HasPrefix(c, word) {
				out = append(out, c)
			}
		}
		return out
	}
	for _, n := range s.ip.Natives() {
		if strings.HasPrefix(n.Name, word) {
			out = append(out, prefix+n.Name+"(")
		}
	}
	sort.Strings(out)
	return out
}

// isExpression reports whether line is a single expression rather than a
// statement list.
func isExpression(line string) bool {
	if strings.ContainsAny(line, ";{}") {
		return false
	}
	for _, kw := range []string{"if", "while", "for", "break", "continue"} {
		if rest, ok := strings.CutPrefix(line, kw); ok && (rest == "" || !isIdentChar(rest[0])) {
			return false
		}
	}
	return true
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c|0x20 >= 'a' && c|0x20 <= 'z')
}

// Start runs a session over plain reader and writer, as used for pipes.
func Start(ctx context.Context, in io.Reader, out io.Writer, s *Session) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			return
		}
		if !s.Execute(ctx, scanner.Text()) {
			return
		}
	}
}

// StartInteractive runs a session on the terminal with line editing and
// history kept in historyPath.
func StartInteractive(ctx context.Context, s *Session, historyPath string) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(s.complete)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(historyPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Fprintln(s.out, "tinyc REPL. Type :help for commands, :quit to exit.")
	for {
		line, err := ln.Prompt(PROMPT)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if !s.Execute(ctx, line) {
			return nil
		}
	}
}

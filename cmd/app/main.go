package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"
	"tinyc/internal/host"
	"tinyc/internal/interp"
	"tinyc/internal/natives"
	"tinyc/internal/repl"
	"tinyc/internal/store"
	"tinyc/internal/util"
)

const (
	DefaultDevice = "default"
	HistoryFile   = ".tinyc_history"
)

var (
	// Version is set at build time with -ldflags.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// logging
	logLevel string
	logFile  string
	// config vars
	configPath  string
	capacity    int
	maxDepth    int
	animate     bool
	step        bool
	reportPos   bool
	strictLoops bool
	timeout     time.Duration
	assigns     assignments
	dbDriver    string
	dbDSN       string
	device      string
)

// assignments collects repeated -set flags.
type assignments []string

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(v string) error {
	if _, _, err := util.ParseVariable(v); err != nil {
		return err
	}
	*a = append(*a, v)
	return nil
}

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.StringVar(&configPath, "config", "", "Read settings from a TOML or YAML file")
	// interpreter config
	flag.IntVar(&capacity, "capacity", interp.DefaultCapacity, "Maximum script size in bytes")
	flag.IntVar(&maxDepth, "max-depth", interp.DefaultMaxDepth, "Maximum nesting depth")
	flag.BoolVar(&animate, "animate", false, "Trace conditions and statements as they run")
	flag.BoolVar(&step, "step", false, "Pause before every step and wait for enter")
	flag.BoolVar(&reportPos, "report-pos", false, "Suppress tracing and loop step hooks")
	flag.BoolVar(&strictLoops, "strict", false, "Treat break or continue outside a loop as a syntax error")
	flag.DurationVar(&timeout, "timeout", 0, "Stop the script after this long (0 for no limit)")
	flag.Var(&assigns, "set", "Set a variable before the run, e.g. -set a=1 (repeatable)")
	// store config
	flag.StringVar(&dbDriver, "db-driver", "", "Store driver: sqlite3, mysql or postgres")
	flag.StringVar(&dbDSN, "db-dsn", "", "Store data source name")
	flag.StringVar(&device, "device", DefaultDevice, "Device name for saved variables and run history")
	// log config
	flag.StringVar(&logLevel, "log-level", "NONE", "Log level: debug, info, warn, error, none")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {

	flag.Parse()

	if version {
		printVersion()
		return
	}

	if help {
		printHelp()
		return
	}

	config, err := configure()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if config.LogLevel != "" {
		logLevel = config.LogLevel
	}
	logFile = config.LogFile

	// Creates a new Logger that uses a JSONHandler to write to standard error
	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(logLevel),
	}
	logWriter := configureLogWriter()
	defaultLogger := slog.New(slog.NewJSONHandler(logWriter, loggerOptions))
	slog.SetDefault(defaultLogger)

	os.Exit(run(config))
}

// configure loads the config file, if any, and applies the flags that were
// set on the command line over it.
func configure() (util.Configuration, error) {
	var config util.Configuration
	if configPath != "" {
		var err error
		if config, err = util.LoadConfiguration(configPath); err != nil {
			return config, err
		}
	}
	config.Version = Version
	config.BuildDate = BuildDate
	config.Commit = Commit

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "capacity":
			config.Capacity = capacity
		case "max-depth":
			config.MaxDepth = maxDepth
		case "animate":
			config.Animate = animate
		case "step":
			config.Step = step
		case "report-pos":
			config.ReportPosition = reportPos
		case "strict":
			config.StrictLoops = strictLoops
		case "timeout":
			config.Timeout = timeout.String()
		case "db-driver":
			config.Store.Driver = dbDriver
		case "db-dsn":
			config.Store.DSN = dbDSN
		case "device":
			config.Store.Device = device
		case "log-level":
			config.LogLevel = logLevel
		case "log-file":
			config.LogFile = logFile
		}
	})
	if config.Store.Device == "" {
		config.Store.Device = DefaultDevice
	}
	if flag.NArg() > 0 {
		config.Script = flag.Arg(0)
	}
	if len(assigns) > 0 && config.Variables == nil {
		config.Variables = map[string]int32{}
	}
	for _, a := range assigns {
		name, value, _ := util.ParseVariable(a)
		// a flag replaces the file's value in either case
		delete(config.Variables, strings.ToLower(string(name)))
		delete(config.Variables, strings.ToUpper(string(name)))
		config.Variables[string(name)] = value
	}
	return config, config.Validate()
}

func run(config util.Configuration) int {
	ctx := context.Background()
	if err := checkStepInput(config, stdinPiped()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	wd := host.NewWatchdog(0)
	opts := append(host.InterpreterOptions(config, os.Stdout), interp.WithLiveness(wd.Feed))
	if config.Step {
		stepper := host.NewStepper(os.Stdin, os.Stderr)
		opts = append(opts, interp.WithStepHook(stepper.Hook))
	}
	ip := interp.New(opts...)

	board := natives.NewBoard(os.Stdout)
	if err := board.Register(ip); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var st *store.Store
	if config.Store.Driver != "" {
		var err error
		if st, err = store.Open(ctx, config.Store.Driver, config.Store.DSN); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer st.Close()
		vars, ok, err := st.LoadVariables(ctx, config.Store.Device)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if ok {
			ip.RestoreVariables(vars)
			slog.Info("restored variables", slog.String("device", config.Store.Device))
		}
	}
	if err := host.ApplyVariables(ip, config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if config.Script == "" {
		return startRepl(ctx, ip, wd, st, config)
	}
	// the REPL takes interrupts per run; a script run ends on the first one
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return runScript(ctx, ip, wd, st, config)
}

// checkStepInput rejects stepping through REPL input read from a pipe, where
// the stepper and the session would read the same lines.
func checkStepInput(config util.Configuration, piped bool) error {
	if config.Step && config.Script == "" && piped {
		return errors.New("-step needs a script when input is not a terminal")
	}
	return nil
}

func stdinPiped() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice == 0
}

func runScript(ctx context.Context, ip *interp.Interpreter, wd *host.Watchdog, st *store.Store, config util.Configuration) int {
	if err := ip.LoadFile(config.Script); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	limit, _ := config.TimeoutDuration()
	started := time.Now()
	res, err := host.RunWithTimeout(ctx, ip, wd, limit)
	slog.Info("script finished",
		slog.String("script", config.Script),
		slog.String("outcome", store.Outcome(res.Signal, err)),
		slog.Int64("feeds", res.Feeds),
		slog.Duration("elapsed", res.Elapsed))

	if st != nil {
		// record the run even when it was interrupted
		ctx := context.WithoutCancel(ctx)
		message := ""
		if err != nil {
			message = err.Error()
		}
		_, rerr := st.RecordRun(ctx, store.Run{
			Device:    config.Store.Device,
			Script:    config.Script,
			Outcome:   store.Outcome(res.Signal, err),
			Message:   message,
			Feeds:     res.Feeds,
			StartedAt: started,
			Elapsed:   res.Elapsed,
		})
		if rerr != nil {
			slog.Error("failed to record run", slog.Any("error", rerr))
		}
		if serr := st.SaveVariables(ctx, config.Store.Device, ip.Variables()); serr != nil {
			slog.Error("failed to save variables", slog.Any("error", serr))
		}
	}

	if err != nil {
		if !errors.Is(err, interp.ErrStopped) {
			return 1
		}
		// stopped from outside the script
		return 3
	}
	return 0
}

func startRepl(ctx context.Context, ip *interp.Interpreter, wd *host.Watchdog, st *store.Store, config util.Configuration) int {
	session := repl.NewSession(ip, os.Stdout)
	limit, _ := config.TimeoutDuration()
	session.UseWatchdog(wd, limit)
	if st != nil {
		session.UseStore(st, config.Store.Device)
	}
	if stdinPiped() {
		repl.Start(ctx, os.Stdin, os.Stdout, session)
		return 0
	}
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, HistoryFile)
	}
	if err := repl.StartInteractive(ctx, session, history); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func configureLogWriter() *os.File {
	var logWriter *os.File
	var err error
	if logFile != "" {
		// Create parent directories if they don't exist
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
			return os.Stderr
		}
		logWriter, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
			logWriter = os.Stderr
		}
	} else {
		logWriter = os.Stderr
	}
	return logWriter
}

func printVersion() {

	fmt.Printf("tinyc version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: tinyc [options] [script]

Options:
  -config <path>      Read settings from a TOML or YAML file. Flags override it.
  -capacity <bytes>   Maximum script size. Default is %d.
  -max-depth <n>      Maximum nesting depth. Default is %d.
  -animate            Trace conditions and statements as they run.
  -step               Pause before every step; enter continues, c runs on, q stops.
  -report-pos         Suppress tracing and loop step hooks.
  -strict             Treat break or continue outside a loop as a syntax error.
  -timeout <dur>      Stop the script after this long, e.g. 5s.
  -set <a=1>          Set a variable before the run. Repeatable.
  -db-driver <name>   Store variables and run history: sqlite3, mysql or postgres.
  -db-dsn <dsn>       Data source name for the store.
  -device <name>      Device name used in the store. Default is '%s'.
  -help               Display this help information and exit.
  -version            Display version information and exit.
  -log-level <level>  Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>    Specify a log file to write logs. Default is stderr.

Details:
Runs a script in a small C-like dialect on a simulated board. Without a
script an interactive session starts.

Examples:
  tinyc blink.c                          Run a script
  tinyc -animate -set a=3 count.c        Trace a run with a preset variable
  tinyc -db-driver sqlite3 -db-dsn runs.db -device bench blink.c

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, interp.DefaultCapacity, interp.DefaultMaxDepth, DefaultDevice, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

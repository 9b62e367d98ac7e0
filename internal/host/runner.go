package host

import (
	"context"
	"io"
	"log/slog"
	"time"
	"tinyc/internal/interp"
	"tinyc/internal/util"
	"tinyc/internal/util/future"
)

type Result struct {
	Signal  interp.Signal
	Feeds   int64
	Elapsed time.Duration
}

// InterpreterOptions maps the configuration onto interpreter options.
// Hooks are left to the caller.
func InterpreterOptions(cfg util.Configuration, trace io.Writer) []interp.Option {
	return []interp.Option{
		interp.WithCapacity(cfg.Capacity),
		interp.WithMaxDepth(cfg.MaxDepth),
		interp.WithTrace(trace),
		interp.WithAnimate(cfg.Animate),
		interp.WithStepping(cfg.Step),
		interp.WithReportPosition(cfg.ReportPosition),
		interp.WithStrictLoops(cfg.StrictLoops),
	}
}

// ApplyVariables seeds ip with the configured initial variables.
func ApplyVariables(ip *interp.Interpreter, cfg util.Configuration) error {
	for name, v := range cfg.Variables {
		if err := ip.SetVariable(name[0], v); err != nil {
			return err
		}
	}
	return nil
}

// RunAsync arms wd with ctx and runs the loaded script on its own goroutine.
// wd must be the interpreter's liveness callback for ctx to stop the run.
func RunAsync(ctx context.Context, ip *interp.Interpreter, wd *Watchdog) *future.Future[Result] {
	if err := ctx.Err(); err != nil {
		return future.FromError[Result](err)
	}
	if wd != nil {
		wd.Arm(ctx)
	}
	start := time.Now()
	return future.New(func() (Result, error) {
		sig, err := ip.Run()
		res := Result{Signal: sig, Elapsed: time.Since(start)}
		if wd != nil {
			res.Feeds = wd.Feeds()
		}
		slog.Debug("run finished",
			slog.String("signal", sig.String()),
			slog.Int64("feeds", res.Feeds),
			slog.Duration("elapsed", res.Elapsed),
			slog.Any("error", err))
		return res, err
	})
}

// RunWithTimeout runs the loaded script and waits for it. A positive timeout
// bounds the run; the watchdog stops it at the next statement or iteration.
func RunWithTimeout(ctx context.Context, ip *interp.Interpreter, wd *Watchdog, timeout time.Duration) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return RunAsync(ctx, ip, wd).Await()
}

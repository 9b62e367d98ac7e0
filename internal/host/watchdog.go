// Package host wires an interpreter to the outside world: cancellation and
// time limits, interactive stepping, asynchronous runs and configuration.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrFeedLimit = errors.New("feed limit reached")

// Watchdog is a liveness callback. It fails once its context ends or once it
// has been fed more than its limit.
type Watchdog struct {
	mu    sync.Mutex
	ctx   context.Context
	limit int64
	feeds atomic.Int64
}

// NewWatchdog creates a watchdog. A limit of zero means unlimited.
func NewWatchdog(limit int64) *Watchdog {
	return &Watchdog{ctx: context.Background(), limit: limit}
}

// Arm binds the watchdog to ctx and resets the feed count.
func (w *Watchdog) Arm(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	w.feeds.Store(0)
}

// Feed is passed to interp.WithLiveness.
func (w *Watchdog) Feed() error {
	n := w.feeds.Add(1)
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.limit > 0 && n > w.limit {
		return fmt.Errorf("%w (%d)", ErrFeedLimit, w.limit)
	}
	return nil
}

// Feeds returns the number of feeds since the last Arm.
func (w *Watchdog) Feeds() int64 {
	return w.feeds.Load()
}

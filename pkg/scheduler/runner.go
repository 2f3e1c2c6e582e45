// Package scheduler runs the periodic release and reminder ticks.
//
// A failed cycle never stops the loop: it is logged and retried after a bounded exponential
// backoff. A successful cycle resets the wait to the normal interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

const (
	DefaultInterval   = 15 * time.Minute
	DefaultRetryBase  = 30 * time.Second
	DefaultMaxBackoff = 5 * time.Minute
)

// Tick is one unit of periodic work, given the cycle's wall-clock time
type Tick func(ctx context.Context, now time.Time) error

type namedTick struct {
	name string
	run  Tick
}

// Options controls the runner's timing. Zero values fall back to the defaults.
type Options struct {
	Interval   time.Duration
	RetryBase  time.Duration
	MaxBackoff time.Duration
	// Lock is optional; when set a cycle only runs while it is held
	Lock Locker
	// CycleTimeout cancels a locked cycle before its lease expires. Zero means no limit.
	CycleTimeout time.Duration
}

type Runner struct {
	opts   Options
	clock  Clock
	logger *zap.Logger
	ticks  []namedTick
}

func NewRunner(opts Options, clock Clock, logger *zap.Logger) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Runner{opts: opts, clock: clock, logger: logger}
}

// Add registers a tick. Ticks run in registration order within a cycle.
func (r *Runner) Add(name string, tick Tick) {
	r.ticks = append(r.ticks, namedTick{name: name, run: tick})
}

// Run executes a cycle immediately and then keeps cycling until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Scheduler started",
		zap.Duration("interval", r.opts.Interval),
		zap.Duration("max_backoff", r.opts.MaxBackoff),
		zap.Bool("locked", r.opts.Lock != nil))

	failures := 0
	for {
		err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			r.logger.Info("Scheduler stopped")
			return nil
		}

		wait := r.opts.Interval
		if err != nil {
			failures++
			wait = r.Backoff(failures)
			r.logger.Error("Scheduler cycle failed",
				zap.Error(err),
				zap.Int("consecutive_failures", failures),
				zap.Duration("retry_in", wait))
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Scheduler stopped")
			return nil
		case <-r.clock.After(wait):
		}
	}
}

// Backoff returns the wait after the given number of consecutive failures
func (r *Runner) Backoff(failures int) time.Duration {
	if failures < 1 {
		return r.opts.Interval
	}
	wait := r.opts.RetryBase
	for i := 1; i < failures && wait < r.opts.MaxBackoff; i++ {
		wait *= 2
	}
	return min(wait, r.opts.MaxBackoff)
}

// RunOnce runs every tick once. Any failure, including a panic, is returned as a
// scheduler transient error after the remaining ticks have run.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r.opts.Lock != nil {
		held, err := r.opts.Lock.Acquire(ctx)
		if err != nil {
			return model.Wrap(model.KindSchedulerTransient, err, "scheduler lock unavailable")
		}
		if !held {
			r.logger.Debug("Scheduler lock held elsewhere, skipping cycle")
			return nil
		}
		defer func() {
			if err := r.opts.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("Failed to release scheduler lock", zap.Error(err))
			}
		}()

		if r.opts.CycleTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.opts.CycleTimeout)
			defer cancel()
		}
	}

	now := r.clock.Now()
	var errs []error
	for _, t := range r.ticks {
		if err := r.runTick(ctx, t, now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}

	if len(errs) > 0 {
		return model.Wrap(model.KindSchedulerTransient, errors.Join(errs...), "scheduler cycle failed")
	}
	return nil
}

func (r *Runner) runTick(ctx context.Context, t namedTick, now time.Time) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	r.logger.Debug("Running tick", zap.String("tick", t.name), zap.Time("now", now))
	return t.run(ctx, now)
}

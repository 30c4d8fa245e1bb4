package dpatterns

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/docstream"
)

const (
	defaultInterval     = time.Minute
	defaultErrorBackoff = time.Minute
)

type runOptions struct {
	interval     time.Duration
	errorBackoff time.Duration
}

// RunOption configures RunForever.
type RunOption func(*runOptions)

// WithInterval sets the delay between successful runs. It defaults to
// one minute.
func WithInterval(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.interval = d
	}
}

// WithErrorBackoff sets the delay after a failed run. It defaults to
// one minute.
func WithErrorBackoff(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.errorBackoff = d
	}
}

// RunForever continuously calls docstream.Run, waiting the interval
// between runs and backing off and logging on unexpected errors.
// Failed runs are already alerted by docstream.Run. It returns once the
// context returned by getCtx is done.
func RunForever(getCtx func() context.Context, s docstream.Spec, opts ...RunOption) {
	o := runOptions{
		interval:     defaultInterval,
		errorBackoff: defaultErrorBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}

	for {
		ctx := getCtx()
		if ctx.Err() != nil {
			return
		}
		ctx = log.ContextWith(ctx, j.KS("spec", s.Name()))

		delay := o.interval
		res, err := docstream.Run(ctx, s)
		if IsExpected(err) {
			// Just retry on expected errors.
			delay = time.Millisecond * 100 // Don't spin
		} else if err != nil {
			log.Error(ctx, errors.Wrap(err, "run forever error"))
			delay = o.errorBackoff
		} else if res.Outcome == docstream.OutcomeProcessed {
			log.Info(ctx, res.Detail(), j.KV("code", res.Code()))
		}

		if !sleep(ctx, delay) {
			return
		}
	}
}

// newTimer is aliased for testing.
var newTimer = time.NewTimer

// sleep waits for d and returns false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := newTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// IsExpected returns true if the error is expected during normal
// streaming operation.
func IsExpected(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

package docstream

import (
	"time"
)

const (
	defaultMaxEvents       = 1000
	defaultSyncEvery       = 100
	defaultBootstrapPolls  = 20
	defaultBootstrapBackof = 250 * time.Millisecond
)

type options struct {
	maxEvents        int
	syncEvery        int
	bootstrapPolls   int
	bootstrapBackoff time.Duration
	canary           CanaryWriter
	alerter          Alerter
}

func defaultOptions() options {
	return options{
		maxEvents:        defaultMaxEvents,
		syncEvery:        defaultSyncEvery,
		bootstrapPolls:   defaultBootstrapPolls,
		bootstrapBackoff: defaultBootstrapBackof,
		alerter:          logAlerter{},
	}
}

// Option defines a functional option that configures a Spec.
type Option func(*options)

// WithMaxEvents provides an option to cap the number of events read from
// the feed per Run. It defaults to 1000.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithSyncEvery provides an option to set how many dispatched events are
// processed between checkpoint writes. Up to n-1 events may be redelivered
// after a crash. It defaults to 100.
func WithSyncEvery(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.syncEvery = n
		}
	}
}

// WithCanary provides the canary writer used to bootstrap a position when
// no checkpoint exists. Without it, Run fails with ErrBootstrapIncomplete
// when no checkpoint exists.
func WithCanary(c CanaryWriter) Option {
	return func(o *options) {
		o.canary = c
	}
}

// WithAlerter provides the alerter notified of failed runs.
// It defaults to logging.
func WithAlerter(a Alerter) Option {
	return func(o *options) {
		o.alerter = a
	}
}

// WithBootstrapPolls provides an option to bound the number of empty polls
// (and the backoff between them) while waiting for the canary delete event.
func WithBootstrapPolls(n int, backoff time.Duration) Option {
	return func(o *options) {
		o.bootstrapPolls = n
		o.bootstrapBackoff = backoff
	}
}

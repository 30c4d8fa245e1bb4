package docstream

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/docstream/internal/metrics"
)

// Dispatcher fans each event out to sinks in the order they were declared.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher returns a dispatcher for the sinks. Only enabled sinks
// should be provided.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Sinks returns the sink names in dispatch order.
func (d *Dispatcher) Sinks() []string {
	var names []string
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Dispatch synchronously puts the envelope to each sink. It stops at the
// first failure and returns a *SinkError; sinks before the failed one
// are not rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, e Envelope) error {
	for _, s := range d.sinks {
		t0 := time.Now()
		err := s.Put(ctx, e)
		metrics.SinkLatency.WithLabelValues(s.Name()).Observe(time.Since(t0).Seconds())
		if err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			return errors.Wrap(&SinkError{Sink: s.Name(), Err: err}, "",
				j.MKS{"sink": s.Name(), "doc_id": e.Payload.ID})
		}
	}
	return nil
}

// Stop stops all sinks implementing Stopper. All sinks are stopped even
// if some fail; the first error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	var first error
	for _, s := range d.sinks {
		st, ok := s.(Stopper)
		if !ok {
			continue
		}
		if err := st.Stop(); err != nil {
			log.Error(ctx, errors.Wrap(err, "stop sink", j.KS("sink", s.Name())))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

package docstream

import (
	"context"
	"strconv"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/luno/docstream/internal/metrics"
)

// AlertSubject is the subject of alerts sent for failed runs.
const AlertSubject = "Document DB Replication Alarm"

// Run executes one bounded invocation of the Spec. It bootstraps a position
// if no checkpoint exists, then reads at most the configured number of
// events from the stored position, dispatching each to all sinks and
// syncing the checkpoint periodically and at the end.
//
// Any error aborts the run without advancing the checkpoint past the last
// sync; the next run resumes from there. Every failed run is alerted once
// unless it failed because ctx was canceled or timed out.
func Run(in context.Context, s Spec) (res Result, err error) {
	ctx, span := otel.Tracer("docstream").Start(in, "docstream.Run")
	defer span.End()

	ctx = log.ContextWith(ctx, j.KS("scope", s.scope.String()))
	labels := metrics.Labels(s.scope.String())

	defer func() {
		if stopErr := s.dispatcher.Stop(ctx); stopErr != nil && err == nil {
			err = errors.Wrap(stopErr, "stop sinks")
		}

		if err != nil {
			metrics.RunErrors.With(labels).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if !errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
				alert(ctx, s.opts.alerter, err)
			}
			return
		}

		metrics.RunResults.WithLabelValues(s.scope.String(), strconv.Itoa(res.Code())).Inc()
		span.SetAttributes(attribute.Int("docstream.result", res.Code()),
			attribute.Int("docstream.count", res.Count))
	}()

	pos, err := s.cstore.GetPosition(ctx, s.scope)
	if err != nil {
		return Result{}, errors.Wrap(err, "get position")
	}

	cur, err := s.feed.Open(ctx, s.scope, pos)
	if IsPositionUnresolvable(err) {
		return Result{}, resetPosition(ctx, s, err)
	} else if err != nil {
		return Result{}, errors.Wrap(err, "open feed", j.KS("position", string(pos)))
	}
	defer func() {
		if err := cur.Close(ctx); err != nil {
			log.Error(ctx, errors.Wrap(err, "close cursor"))
		}
	}()

	var (
		bootstrapped bool
		reads        int
	)
	if pos == "" {
		_, reads, err = bootstrap(ctx, s, cur)
		if err != nil {
			return Result{}, err
		}
		bootstrapped = true
	}

	d := drainer{spec: s, labels: labels}

	n, err := d.drain(ctx, cur, s.opts.maxEvents-reads)
	if err != nil {
		return Result{}, err
	}

	if n > 0 {
		return Result{Outcome: OutcomeProcessed, Count: n}, nil
	} else if bootstrapped {
		return Result{Outcome: OutcomeCanaryApplied}, nil
	}
	return Result{Outcome: OutcomeNoEvents}, nil
}

// drainer reads, normalizes and dispatches events, syncing the checkpoint
// every syncEvery events.
type drainer struct {
	spec   Spec
	labels prometheus.Labels

	last    Position // Last fully dispatched position.
	pending int      // Events read since the last sync.
}

// drain returns the number of events dispatched.
func (d *drainer) drain(ctx context.Context, cur Cursor, budget int) (int, error) {
	var dispatched int
	for i := 0; i < budget; i++ {
		e, ok, err := cur.TryNext(ctx)
		if IsPositionUnresolvable(err) {
			return dispatched, resetPosition(ctx, d.spec, err)
		} else if err != nil {
			return dispatched, errors.Wrap(err, "read feed", j.KS("position", string(d.last)))
		} else if !ok {
			// Caught up.
			break
		}

		if e.DocumentGone() {
			log.Info(ctx, "skipping change of deleted document",
				j.MKS{"op": string(e.Op), "position": string(e.Position)})
		} else if e.Op.IsData() {
			if err := d.dispatch(ctx, e); err != nil {
				return dispatched, err
			}
			dispatched++
		}

		d.last = e.Position
		d.pending++

		if d.pending >= d.spec.opts.syncEvery {
			if err := d.sync(ctx); err != nil {
				return dispatched, err
			}
		}
	}

	if d.pending > 0 {
		if err := d.sync(ctx); err != nil {
			return dispatched, err
		}
	}

	return dispatched, nil
}

func (d *drainer) dispatch(ctx context.Context, e *ChangeEvent) error {
	p, err := Normalize(e)
	if err != nil {
		return errors.Wrap(err, "normalize", j.KS("position", string(e.Position)))
	}

	ctx = log.ContextWith(ctx, j.MKS{
		"doc_id":   p.ID,
		"op":       string(e.Op),
		"position": string(e.Position),
	})

	if err := d.spec.dispatcher.Dispatch(ctx, Envelope{Event: e, Payload: p}); err != nil {
		return err
	}

	metrics.EventsProcessed.With(d.labels).Inc()
	if !e.Timestamp.IsZero() {
		metrics.Lag.With(d.labels).Set(time.Since(e.Timestamp).Seconds())
	}

	return nil
}

func (d *drainer) sync(ctx context.Context) error {
	if err := d.spec.cstore.SetPosition(ctx, d.spec.scope, d.last); err != nil {
		return errors.Wrap(err, "set position", j.KS("position", string(d.last)))
	}
	metrics.CheckpointSyncs.With(d.labels).Inc()
	d.pending = 0
	return nil
}

// resetPosition clears the stored position after the feed reported that
// it can no longer resume from it, so that the next run bootstraps again.
// It always returns an error wrapping cause.
func resetPosition(ctx context.Context, s Spec, cause error) error {
	if err := s.cstore.ResetPosition(ctx, s.scope); err != nil {
		log.Error(ctx, errors.Wrap(err, "reset position"))
	}
	metrics.PositionResets.With(metrics.Labels(s.scope.String())).Inc()
	return errors.Wrap(cause, "position reset, replicated data may have a gap")
}

func alert(ctx context.Context, a Alerter, cause error) {
	if a == nil {
		return
	}
	if err := a.Alert(ctx, AlertSubject, cause); err != nil {
		log.Error(ctx, errors.Wrap(err, "send alert"))
	}
}

type logAlerter struct{}

func (logAlerter) Alert(ctx context.Context, subject string, err error) error {
	log.Error(ctx, errors.Wrap(err, subject))
	return nil
}

package docstream

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
)

// bootstrap establishes an initial position on a cursor opened at the head
// of the feed. It inserts and deletes a canary document, then discards
// events until the canary delete is read and stores its position. No event
// read here is dispatched. It returns the position and the number of
// events read.
func bootstrap(ctx context.Context, s Spec, cur Cursor) (Position, int, error) {
	if s.opts.canary == nil {
		return "", 0, errors.Wrap(ErrBootstrapIncomplete, "no canary writer")
	}

	id, err := s.opts.canary.InsertCanary(ctx, s.scope)
	if err != nil {
		return "", 0, errors.Wrap(err, "insert canary")
	}

	if err := s.opts.canary.DeleteCanary(ctx, s.scope, id); err != nil {
		return "", 0, errors.Wrap(err, "delete canary", j.KS("canary_id", id))
	}

	var reads, empty int
	for reads < s.opts.maxEvents {
		e, ok, err := cur.TryNext(ctx)
		if err != nil {
			return "", reads, errors.Wrap(err, "bootstrap read")
		}

		if !ok {
			empty++
			if empty > s.opts.bootstrapPolls {
				break
			}
			if err := wait(ctx, s.opts.bootstrapBackoff); err != nil {
				return "", reads, err
			}
			continue
		}

		reads++
		if !isCanaryDelete(e, id) {
			continue
		}

		if err := s.cstore.SetPosition(ctx, s.scope, e.Position); err != nil {
			return "", reads, errors.Wrap(err, "set bootstrap position")
		}

		log.Info(ctx, "canary applied", j.MKS{
			"canary_id": id,
			"position":  string(e.Position),
		})

		return e.Position, reads, nil
	}

	return "", reads, errors.Wrap(ErrBootstrapIncomplete, "",
		j.MKV{"canary_id": id, "reads": reads, "empty_polls": empty})
}

func isCanaryDelete(e *ChangeEvent, id string) bool {
	if e.Op != OpDelete {
		return false
	}
	docID, err := documentID(e.DocumentKey)
	if err != nil {
		return false
	}
	return docID == id
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := newTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// newTimer is aliased for testing.
var newTimer = time.NewTimer

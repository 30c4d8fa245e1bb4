package sink

import (
	"context"
	"path"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"gocloud.dev/blob"

	"github.com/luno/docstream"
)

// NewBlob returns a sink writing every payload to its own object keyed
// "[prefix/]<db>/<coll>/YYYY/MM/DD/<position>" where the date is the
// event cluster time in UTC, or now if unknown. Redelivery overwrites the
// same object.
func NewBlob(bucket *blob.Bucket, prefix string) *Blob {
	return &Blob{bucket: bucket, prefix: prefix}
}

// Blob is a docstream.Sink writing to a gocloud bucket, usually s3.
type Blob struct {
	bucket *blob.Bucket
	prefix string
}

func (b *Blob) Name() string {
	return "s3"
}

// Key returns the object key of the envelope.
func (b *Blob) Key(e docstream.Envelope) string {
	ns := e.Event.Namespace
	ts := e.Event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return path.Join(b.prefix, ns.Database, ns.Collection,
		ts.UTC().Format("2006/01/02"), string(e.Event.Position))
}

func (b *Blob) Put(ctx context.Context, e docstream.Envelope) error {
	body, err := e.Payload.JSON()
	if err != nil {
		return err
	}

	key := b.Key(e)
	err = b.bucket.WriteAll(ctx, key, body, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return errors.Wrap(err, "write object", j.KS("key", key))
	}
	return nil
}

var _ docstream.Sink = (*Blob)(nil)

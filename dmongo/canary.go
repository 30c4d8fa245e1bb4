package dmongo

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/luno/docstream"
)

// DefaultCanaryCollection is where canaries are written for database
// level scopes.
const DefaultCanaryCollection = "canary-collection"

// CanaryOption configures a CanaryWriter.
type CanaryOption func(*CanaryWriter)

// WithCanaryCollection provides an option to set the collection canaries
// are written to for database level scopes. It defaults to
// "canary-collection".
func WithCanaryCollection(name string) CanaryOption {
	return func(w *CanaryWriter) {
		w.collection = name
	}
}

// NewCanaryWriter returns a docstream.CanaryWriter writing to the watched
// collection or, for database level scopes, to the canary collection.
func NewCanaryWriter(c Connector, opts ...CanaryOption) *CanaryWriter {
	w := &CanaryWriter{conn: c, collection: DefaultCanaryCollection}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CanaryWriter inserts and deletes {_id, op_canary: "canary"} documents.
type CanaryWriter struct {
	conn       Connector
	collection string
}

func (w *CanaryWriter) target(scope docstream.Scope) string {
	if scope.IsDatabase() {
		return w.collection
	}
	return scope.Collection
}

func (w *CanaryWriter) InsertCanary(ctx context.Context, scope docstream.Scope) (string, error) {
	client, err := w.conn.Connect(ctx)
	if err != nil {
		return "", err
	}

	id := primitive.NewObjectID()
	coll := client.Database(scope.Database).Collection(w.target(scope))
	_, err = coll.InsertOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "op_canary", Value: "canary"},
	})
	if err != nil {
		return "", errors.Wrap(err, "insert canary", j.KS("collection", coll.Name()))
	}

	return id.Hex(), nil
}

func (w *CanaryWriter) DeleteCanary(ctx context.Context, scope docstream.Scope, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Wrap(err, "invalid canary id", j.KS("canary_id", id))
	}

	client, err := w.conn.Connect(ctx)
	if err != nil {
		return err
	}

	coll := client.Database(scope.Database).Collection(w.target(scope))
	_, err = coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return errors.Wrap(err, "delete canary", j.KS("collection", coll.Name()))
	}

	return nil
}

var _ docstream.CanaryWriter = (*CanaryWriter)(nil)

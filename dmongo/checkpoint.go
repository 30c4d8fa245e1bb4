package dmongo

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luno/docstream"
)

// NewCheckpointStore returns a docstream.CheckpointStore keeping one state
// document per scope in the database and collection.
func NewCheckpointStore(c Connector, database, collection string) *CheckpointStore {
	return &CheckpointStore{conn: c, database: database, collection: collection}
}

// CheckpointStore stores positions in state documents of the shape
// {dbWatched, collectionWatched, db_level, currentState, lastProcessed}.
// lastProcessed holds the resume token {_data: position} or null.
type CheckpointStore struct {
	conn       Connector
	database   string
	collection string
}

type stateDoc struct {
	LastProcessed bson.RawValue `bson:"lastProcessed"`
}

func stateFilter(scope docstream.Scope) bson.D {
	if scope.IsDatabase() {
		return bson.D{
			{Key: "dbWatched", Value: scope.Database},
			{Key: "db_level", Value: true},
			{Key: "currentState", Value: true},
		}
	}
	return bson.D{
		{Key: "dbWatched", Value: scope.Database},
		{Key: "collectionWatched", Value: scope.Collection},
		{Key: "db_level", Value: false},
		{Key: "currentState", Value: true},
	}
}

func (s *CheckpointStore) coll(ctx context.Context) (*mongo.Collection, error) {
	client, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(s.database).Collection(s.collection), nil
}

func (s *CheckpointStore) GetPosition(ctx context.Context, scope docstream.Scope) (docstream.Position, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return "", err
	}

	var doc stateDoc
	err = coll.FindOne(ctx, stateFilter(scope)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Placeholder with a null position, same as a reset.
		return "", s.ResetPosition(ctx, scope)
	} else if err != nil {
		return "", errors.Wrap(err, "find state", j.KS("scope", scope.String()))
	}

	return positionValue(doc.LastProcessed), nil
}

// positionValue accepts both a resume token document and a plain string.
func positionValue(v bson.RawValue) docstream.Position {
	if s, ok := v.StringValueOK(); ok {
		return docstream.Position(s)
	}
	if doc, ok := v.DocumentOK(); ok {
		return tokenPosition(doc)
	}
	return ""
}

func (s *CheckpointStore) SetPosition(ctx context.Context, scope docstream.Scope, pos docstream.Position) error {
	return s.update(ctx, scope, bson.D{{Key: resumeTokenField, Value: string(pos)}})
}

func (s *CheckpointStore) ResetPosition(ctx context.Context, scope docstream.Scope) error {
	return s.update(ctx, scope, nil)
}

func (s *CheckpointStore) update(ctx context.Context, scope docstream.Scope, token interface{}) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}

	_, err = coll.UpdateOne(ctx, stateFilter(scope),
		bson.D{{Key: "$set", Value: bson.D{{Key: "lastProcessed", Value: token}}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "update state", j.KS("scope", scope.String()))
	}

	return nil
}

var _ docstream.CheckpointStore = (*CheckpointStore)(nil)

package dmongo

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luno/docstream"
)

// Server error codes returned when a resume token is no longer in the
// change stream history.
const (
	codeDocumentDBTokenDeleted  = 136
	codeChangeStreamFatalError  = 280
	codeChangeStreamHistoryLost = 286
)

const resumeTokenField = "_data"

// NewFeed returns a docstream.Feed over change streams of the client.
func NewFeed(c Connector) *Feed {
	return &Feed{conn: c}
}

// Feed implements docstream.Feed with DocumentDB or MongoDB change streams.
// Update events carry the current full document.
type Feed struct {
	conn Connector
}

// Open opens a change stream on the watched collection or database.
func (f *Feed) Open(ctx context.Context, scope docstream.Scope, after docstream.Position) (docstream.Cursor, error) {
	client, err := f.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if after != "" {
		opts.SetResumeAfter(bson.D{{Key: resumeTokenField, Value: string(after)}})
	}

	db := client.Database(scope.Database)

	var cs *mongo.ChangeStream
	if scope.IsDatabase() {
		cs, err = db.Watch(ctx, mongo.Pipeline{}, opts)
	} else {
		cs, err = db.Collection(scope.Collection).Watch(ctx, mongo.Pipeline{}, opts)
	}
	if err != nil {
		return nil, wrapStreamErr(err, "watch", after)
	}

	return &cursor{cs: cs}, nil
}

type cursor struct {
	cs *mongo.ChangeStream
}

func (c *cursor) TryNext(ctx context.Context) (*docstream.ChangeEvent, bool, error) {
	if !c.cs.TryNext(ctx) {
		if err := c.cs.Err(); err != nil {
			return nil, false, wrapStreamErr(err, "try next", "")
		}
		return nil, false, nil
	}

	e, err := decodeEvent(c.cs.Current)
	if err != nil {
		return nil, false, err
	}

	if e.Position == "" {
		e.Position = tokenPosition(c.cs.ResumeToken())
	}

	return e, true, nil
}

func (c *cursor) Close(ctx context.Context) error {
	return c.cs.Close(ctx)
}

// changeEvent is the change stream document.
type changeEvent struct {
	ID            bson.Raw            `bson:"_id"`
	OperationType string              `bson:"operationType"`
	NS            namespace           `bson:"ns"`
	DocumentKey   bson.Raw            `bson:"documentKey"`
	FullDocument  bson.Raw            `bson:"fullDocument"`
	ClusterTime   primitive.Timestamp `bson:"clusterTime"`
	WallTime      time.Time           `bson:"wallTime"`
}

type namespace struct {
	DB   string `bson:"db"`
	Coll string `bson:"coll"`
}

func decodeEvent(raw bson.Raw) (*docstream.ChangeEvent, error) {
	var ce changeEvent
	if err := bson.Unmarshal(raw, &ce); err != nil {
		return nil, errors.Wrap(docstream.ErrInvalidEvent, "decode change event",
			j.KS("cause", err.Error()))
	}

	ts := ce.WallTime
	if ts.IsZero() && ce.ClusterTime.T > 0 {
		ts = time.Unix(int64(ce.ClusterTime.T), 0)
	}

	return &docstream.ChangeEvent{
		Op:           docstream.OperationType(ce.OperationType),
		Namespace:    docstream.Namespace{Database: ce.NS.DB, Collection: ce.NS.Coll},
		DocumentKey:  ce.DocumentKey,
		FullDocument: ce.FullDocument,
		Position:     tokenPosition(ce.ID),
		Timestamp:    ts.UTC(),
	}, nil
}

// tokenPosition returns the _data field of a resume token.
func tokenPosition(token bson.Raw) docstream.Position {
	if len(token) == 0 {
		return ""
	}
	v, err := token.LookupErr(resumeTokenField)
	if err != nil {
		return ""
	}
	s, ok := v.StringValueOK()
	if !ok {
		return ""
	}
	return docstream.Position(s)
}

func wrapStreamErr(err error, msg string, pos docstream.Position) error {
	if isHistoryLost(err) {
		return errors.Wrap(docstream.ErrPositionUnresolvable, msg, j.MKS{
			"position": string(pos),
			"cause":    err.Error(),
		})
	}
	return errors.Wrap(err, msg, j.KS("position", string(pos)))
}

func isHistoryLost(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeDocumentDBTokenDeleted) ||
		se.HasErrorCode(codeChangeStreamHistoryLost) ||
		se.HasErrorCode(codeChangeStreamFatalError)
}

var _ docstream.Feed = (*Feed)(nil)

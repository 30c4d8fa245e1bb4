package testmock

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/luno/docstream"
)

// DefaultCanaryCollection is where canaries are written for database
// level scopes.
const DefaultCanaryCollection = "canary-collection"

// NewFeed returns an in-memory change feed. Events appended to it are
// assigned increasing positions formatted as zero padded integers so that
// positions also sort lexically.
func NewFeed(t *testing.T) *Feed {
	t.Helper()
	return &Feed{t: t}
}

// Feed is an in-memory append only change feed implementing
// docstream.Feed and docstream.CanaryWriter.
type Feed struct {
	t *testing.T

	mu      sync.Mutex
	log     []docstream.ChangeEvent
	expired int
	open    int
	readErr error

	// HideCanaryDelete drops canary delete events instead of appending
	// them to the log.
	HideCanaryDelete bool

	// CanaryErr is returned by InsertCanary if set.
	CanaryErr error
}

// FormatPosition returns the position of the nth appended event (1-based).
func FormatPosition(n int) docstream.Position {
	return docstream.Position(fmt.Sprintf("%016d", n))
}

func parsePosition(p docstream.Position) (int, error) {
	n, err := strconv.ParseInt(string(p), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "invalid position", j.KS("position", string(p)))
	}
	return int(n), nil
}

// Append adds the event to the log and returns its position.
func (f *Feed) Append(e docstream.ChangeEvent) docstream.Position {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.Position = FormatPosition(len(f.log) + 1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	f.log = append(f.log, e)
	return e.Position
}

// Insert appends an insert event of the document which must include an _id.
func (f *Feed) Insert(ns docstream.Namespace, doc bson.D) docstream.Position {
	return f.Append(f.docEvent(docstream.OpInsert, ns, doc))
}

// Update appends an update event with the post image of the document.
func (f *Feed) Update(ns docstream.Namespace, doc bson.D) docstream.Position {
	return f.Append(f.docEvent(docstream.OpUpdate, ns, doc))
}

// UpdateGone appends an update event of the document with the id that has
// no post image, as when the document was deleted before the lookup.
func (f *Feed) UpdateGone(ns docstream.Namespace, id interface{}) docstream.Position {
	return f.Append(docstream.ChangeEvent{
		Op:          docstream.OpUpdate,
		Namespace:   ns,
		DocumentKey: f.marshal(bson.D{{Key: "_id", Value: id}}),
	})
}

// Delete appends a delete event of the document with the id.
func (f *Feed) Delete(ns docstream.Namespace, id interface{}) docstream.Position {
	return f.Append(docstream.ChangeEvent{
		Op:          docstream.OpDelete,
		Namespace:   ns,
		DocumentKey: f.marshal(bson.D{{Key: "_id", Value: id}}),
	})
}

// Drop appends a collection drop event.
func (f *Feed) Drop(ns docstream.Namespace) docstream.Position {
	return f.Append(docstream.ChangeEvent{Op: docstream.OpDrop, Namespace: ns})
}

func (f *Feed) docEvent(op docstream.OperationType, ns docstream.Namespace, doc bson.D) docstream.ChangeEvent {
	var id interface{}
	for _, e := range doc {
		if e.Key == "_id" {
			id = e.Value
		}
	}
	return docstream.ChangeEvent{
		Op:           op,
		Namespace:    ns,
		DocumentKey:  f.marshal(bson.D{{Key: "_id", Value: id}}),
		FullDocument: f.marshal(doc),
	}
}

func (f *Feed) marshal(doc bson.D) bson.Raw {
	b, err := bson.Marshal(doc)
	if err != nil {
		f.t.Fatalf("marshal document: %v", err)
	}
	return b
}

// Expire drops the n oldest events from the log as if they aged out of
// the retention window. Positions before the oldest retained event
// become unresolvable.
func (f *Feed) Expire(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired += n
	if f.expired > len(f.log) {
		f.expired = len(f.log)
	}
}

// FailNextRead makes the next cursor read return the error.
func (f *Feed) FailNextRead(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// Len returns the number of events ever appended.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.log)
}

// OpenCursors returns the number of cursors not yet closed.
func (f *Feed) OpenCursors() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Open implements docstream.Feed. An empty position opens the cursor at
// the current head.
func (f *Feed) Open(_ context.Context, scope docstream.Scope, after docstream.Position) (docstream.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	offset := len(f.log)
	if after != "" {
		n, err := parsePosition(after)
		if err != nil {
			return nil, err
		}
		if n < f.expired {
			return nil, errors.Wrap(docstream.ErrPositionUnresolvable, "",
				j.KS("position", string(after)))
		}
		offset = n
	}

	f.open++
	return &cursor{feed: f, scope: scope, offset: offset}, nil
}

type cursor struct {
	feed   *Feed
	scope  docstream.Scope
	offset int
	closed bool
}

func (c *cursor) TryNext(context.Context) (*docstream.ChangeEvent, bool, error) {
	f := c.feed
	f.mu.Lock()
	defer f.mu.Unlock()

	if c.closed {
		return nil, false, errors.New("cursor closed")
	}

	if f.readErr != nil {
		err := f.readErr
		f.readErr = nil
		return nil, false, err
	}

	for ; c.offset < len(f.log); c.offset++ {
		if c.offset < f.expired {
			return nil, false, errors.Wrap(docstream.ErrPositionUnresolvable, "",
				j.KV("offset", c.offset))
		}

		e := f.log[c.offset]
		if !matches(c.scope, e.Namespace) {
			continue
		}

		c.offset++
		return &e, true, nil
	}

	return nil, false, nil
}

func (c *cursor) Close(context.Context) error {
	f := c.feed
	f.mu.Lock()
	defer f.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	f.open--
	return nil
}

func matches(scope docstream.Scope, ns docstream.Namespace) bool {
	if scope.Database != ns.Database {
		return false
	}
	return scope.IsDatabase() || scope.Collection == ns.Collection
}

func canaryNamespace(scope docstream.Scope) docstream.Namespace {
	if scope.IsDatabase() {
		return docstream.Namespace{Database: scope.Database, Collection: DefaultCanaryCollection}
	}
	return docstream.Namespace{Database: scope.Database, Collection: scope.Collection}
}

// InsertCanary implements docstream.CanaryWriter.
func (f *Feed) InsertCanary(_ context.Context, scope docstream.Scope) (string, error) {
	if f.CanaryErr != nil {
		return "", f.CanaryErr
	}
	id := primitive.NewObjectID()
	f.Insert(canaryNamespace(scope), bson.D{
		{Key: "_id", Value: id},
		{Key: "op_canary", Value: "canary"},
	})
	return id.Hex(), nil
}

// DeleteCanary implements docstream.CanaryWriter.
func (f *Feed) DeleteCanary(_ context.Context, scope docstream.Scope, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Wrap(err, "invalid canary id")
	}
	if f.HideCanaryDelete {
		return nil
	}
	f.Delete(canaryNamespace(scope), oid)
	return nil
}

var (
	_ docstream.Feed         = (*Feed)(nil)
	_ docstream.CanaryWriter = (*Feed)(nil)
)

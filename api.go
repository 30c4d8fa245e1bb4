package docstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Position is an opaque resume token issued by the source change feed.
// Positions are totally ordered by the feed, but they only support
// "resume from here"; they are not comparable with arithmetic.
// The empty position means no position is known.
type Position string

// Scope identifies a watched database or a watched collection.
// An empty Collection means the whole database is watched.
type Scope struct {
	Database   string
	Collection string
}

// IsDatabase returns true if the scope watches a whole database.
func (s Scope) IsDatabase() bool {
	return s.Collection == ""
}

// String returns "db" or "db.coll".
func (s Scope) String() string {
	if s.IsDatabase() {
		return s.Database
	}
	return s.Database + "." + s.Collection
}

// Namespace is the database and collection a change event applies to.
type Namespace struct {
	Database   string
	Collection string
}

// Key returns the "<database>-<collection>" routing key used by sinks
// to group events, ex. kafka topics, search indices and FIFO message groups.
func (n Namespace) Key() string {
	return n.Database + "-" + n.Collection
}

// OperationType is the type of change reported by the feed.
type OperationType string

const (
	OpInsert       OperationType = "insert"
	OpUpdate       OperationType = "update"
	OpReplace      OperationType = "replace"
	OpDelete       OperationType = "delete"
	OpDrop         OperationType = "drop"
	OpRename       OperationType = "rename"
	OpDropDatabase OperationType = "dropDatabase"
	OpInvalidate   OperationType = "invalidate"
)

// HasDocument returns true if events of this type carry a full document.
func (o OperationType) HasDocument() bool {
	return o == OpInsert || o == OpUpdate || o == OpReplace
}

// IsData returns true if events of this type change a single document and
// should be dispatched to sinks. Other events (drop, rename, invalidate)
// only advance the position.
func (o OperationType) IsData() bool {
	return o.HasDocument() || o == OpDelete
}

// ChangeEvent is a single change read from the feed. It only lives for one
// read-dispatch cycle.
type ChangeEvent struct {
	Op        OperationType
	Namespace Namespace

	// DocumentKey holds the key of the changed document, ex. {_id: ...}.
	DocumentKey bson.Raw

	// FullDocument is present for insert, update and replace events.
	FullDocument bson.Raw

	Position  Position
	Timestamp time.Time
}

// DocumentGone returns true for an update or replace whose document was
// deleted before the full document lookup ran. A later delete event
// carries the removal.
func (e *ChangeEvent) DocumentGone() bool {
	return (e.Op == OpUpdate || e.Op == OpReplace) && len(e.FullDocument) == 0
}

// Envelope is what sinks receive: the normalized payload along with the
// event it was derived from.
type Envelope struct {
	Event   *ChangeEvent
	Payload Payload
}

// RoutingKey returns the key sinks use to route or group events.
func (e Envelope) RoutingKey() string {
	return e.Event.Namespace.Key()
}

// maxDedupLen is the longest deduplication id accepted by SQS and SNS.
const maxDedupLen = 128

// DedupKey returns the key sinks use to deduplicate redelivered events.
// It is derived from the event position and hashed if too long.
func (e Envelope) DedupKey() string {
	p := string(e.Event.Position)
	if len(p) <= maxDedupLen {
		return p
	}
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:])
}

// Feed opens cursors over the source change feed.
type Feed interface {
	// Open returns a cursor positioned after the provided position or at
	// the current head of the feed if the position is empty. It returns
	// ErrPositionUnresolvable if the position is no longer available.
	Open(ctx context.Context, scope Scope, after Position) (Cursor, error)
}

// Cursor is an open change feed.
type Cursor interface {
	// TryNext returns the next event or false if no event is currently
	// available, ie. the cursor caught up with the feed.
	TryNext(ctx context.Context) (*ChangeEvent, bool, error)

	// Close releases the cursor.
	Close(ctx context.Context) error
}

// CheckpointStore persists the last fully dispatched position per scope.
type CheckpointStore interface {
	// GetPosition returns the stored position or an empty position if
	// none is stored. It creates an empty record for unknown scopes.
	GetPosition(ctx context.Context, scope Scope) (Position, error)

	// SetPosition stores the position. Only call it once every event up
	// to and including the position was dispatched to all sinks.
	SetPosition(ctx context.Context, scope Scope, pos Position) error

	// ResetPosition clears the stored position so that the next run
	// bootstraps again.
	ResetPosition(ctx context.Context, scope Scope) error
}

// CanaryWriter inserts and deletes the marker document used to bootstrap
// a position on an otherwise idle feed.
type CanaryWriter interface {
	// InsertCanary inserts a canary document and returns its id.
	InsertCanary(ctx context.Context, scope Scope) (string, error)

	// DeleteCanary deletes the canary document with the id.
	DeleteCanary(ctx context.Context, scope Scope, id string) error
}

// Sink receives normalized events. Sinks must tolerate redelivery of the
// same event since delivery is at-least-once.
type Sink interface {
	Name() string
	Put(ctx context.Context, e Envelope) error
}

// Stopper is an optional interface that a sink can implement indicating
// that it has clean up work to do at the end of each Run.
type Stopper interface {
	Stop() error
}

// Alerter sends out-of-band notifications of failed runs.
type Alerter interface {
	Alert(ctx context.Context, subject string, err error) error
}

// Spec specifies all the elements required to replicate a scope.
// As long as the elements do not change, every change in the scope is
// delivered at-least-once to every sink.
type Spec struct {
	scope      Scope
	feed       Feed
	cstore     CheckpointStore
	dispatcher *Dispatcher
	opts       options
}

// Name returns the name of the Spec which is the scope it watches.
func (s Spec) Name() string {
	return s.scope.String()
}

// Scope returns the watched scope.
func (s Spec) Scope() Scope {
	return s.scope
}

// NewSpec returns a new Spec.
func NewSpec(scope Scope, feed Feed, cstore CheckpointStore,
	dispatcher *Dispatcher, opts ...Option,
) Spec {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return Spec{
		scope:      scope,
		feed:       feed,
		cstore:     cstore,
		dispatcher: dispatcher,
		opts:       o,
	}
}

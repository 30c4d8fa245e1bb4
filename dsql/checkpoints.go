package dsql

import (
	"context"
	"database/sql"
	"time"

	"github.com/luno/docstream"
	"github.com/luno/docstream/internal/metrics"
)

const (
	defaultScopeField    = "scope"
	defaultPositionField = "position"
	defaultTimeField     = "updated_at"
)

// CheckpointsTable provides an interface to a checkpoints db table. It holds
// one row per watched scope with a nullable position.
type CheckpointsTable interface {
	GetPosition(ctx context.Context, dbc *sql.DB, scope docstream.Scope) (docstream.Position, error)
	SetPosition(ctx context.Context, dbc *sql.DB, scope docstream.Scope, pos docstream.Position) error
	ResetPosition(ctx context.Context, dbc *sql.DB, scope docstream.Scope) error
	ToStore(dbc *sql.DB) docstream.CheckpointStore
}

// NewCheckpointsTable returns a new CheckpointsTable implementation.
func NewCheckpointsTable(name string, options ...CheckpointsOption) CheckpointsTable {
	table := &ctable{
		schema: ctableSchema{
			name:          name,
			scopeField:    defaultScopeField,
			positionField: defaultPositionField,
			timeField:     defaultTimeField,
		},
		now:        time.Now,
		setCounter: metrics.CheckpointSets.WithLabelValues(name).Inc,
	}
	for _, o := range options {
		o(table)
	}

	return table
}

// CheckpointsOption are the configurations for the checkpoints table.
type CheckpointsOption func(*ctable)

// WithScopeField provides an option to configure the scope field.
// It defaults to 'scope'.
func WithScopeField(field string) CheckpointsOption {
	return func(table *ctable) {
		table.schema.scopeField = field
	}
}

// WithPositionField provides an option to configure the position field.
// It defaults to 'position'.
func WithPositionField(field string) CheckpointsOption {
	return func(table *ctable) {
		table.schema.positionField = field
	}
}

// WithTimeField provides an option to configure the time field.
// It defaults to 'updated_at'.
func WithTimeField(field string) CheckpointsOption {
	return func(table *ctable) {
		table.schema.timeField = field
	}
}

// WithSetCounter provides an option to set the set position metric.
// It defaults to prometheus metrics.
func WithSetCounter(f func()) CheckpointsOption {
	return func(table *ctable) {
		table.setCounter = f
	}
}

// WithNow replaces the clock used for the time field.
func WithNow(f func() time.Time) CheckpointsOption {
	return func(table *ctable) {
		table.now = f
	}
}

var _ CheckpointsTable = (*ctable)(nil)

type ctable struct {
	schema     ctableSchema
	now        func() time.Time
	setCounter func()
}

// ctableSchema defines the schema of a checkpoints table.
type ctableSchema struct {
	name          string
	scopeField    string
	positionField string
	timeField     string
}

func (t *ctable) GetPosition(ctx context.Context, dbc *sql.DB, scope docstream.Scope) (docstream.Position, error) {
	return getPosition(ctx, dbc, t.schema, t.now(), scope.String())
}

func (t *ctable) SetPosition(ctx context.Context, dbc *sql.DB, scope docstream.Scope, pos docstream.Position) error {
	t.setCounter()
	return setPosition(ctx, dbc, t.schema, t.now(), scope.String(), pos)
}

func (t *ctable) ResetPosition(ctx context.Context, dbc *sql.DB, scope docstream.Scope) error {
	return resetPosition(ctx, dbc, t.schema, t.now(), scope.String())
}

func (t *ctable) ToStore(dbc *sql.DB) docstream.CheckpointStore {
	return &checkpointStore{t: t, dbc: dbc}
}

type checkpointStore struct {
	t   *ctable
	dbc *sql.DB
}

func (cs *checkpointStore) GetPosition(ctx context.Context, scope docstream.Scope) (docstream.Position, error) {
	return cs.t.GetPosition(ctx, cs.dbc, scope)
}

func (cs *checkpointStore) SetPosition(ctx context.Context, scope docstream.Scope, pos docstream.Position) error {
	return cs.t.SetPosition(ctx, cs.dbc, scope, pos)
}

func (cs *checkpointStore) ResetPosition(ctx context.Context, scope docstream.Scope) error {
	return cs.t.ResetPosition(ctx, cs.dbc, scope)
}

// Package dpebble provides a docstream checkpoint store on an embedded
// pebble database for single host deployments.
package dpebble

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/docstream"
)

const keyPrefix = "checkpoint/"

type options struct {
	fs     vfs.FS
	noSync bool
}

// Option configures the store.
type Option func(*options)

// WithFS provides an option to replace the filesystem, ex. vfs.NewMem()
// for testing.
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithNoSync provides an option to not fsync the WAL on every write.
func WithNoSync() Option {
	return func(o *options) {
		o.noSync = true
	}
}

// Store is a docstream.CheckpointStore backed by pebble. Every scope is a
// single key; an empty value is the null position.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

// Open creates or opens the pebble database in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	po := &pebble.Options{}
	if o.fs != nil {
		po.FS = o.fs
	}

	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrap(err, "open pebble", j.KS("dir", dir))
	}

	writeOpts := pebble.Sync
	if o.noSync {
		writeOpts = pebble.NoSync
	}

	return &Store{db: db, writeOpts: writeOpts}, nil
}

// Close closes the pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(scope docstream.Scope) []byte {
	return []byte(keyPrefix + scope.String())
}

func (s *Store) GetPosition(_ context.Context, scope docstream.Scope) (docstream.Position, error) {
	val, closer, err := s.db.Get(key(scope))
	if errors.Is(err, pebble.ErrNotFound) {
		// Placeholder so that the scope is listed.
		return "", s.set(scope, "")
	} else if err != nil {
		return "", errors.Wrap(err, "get position", j.KS("scope", scope.String()))
	}
	defer closer.Close()

	return docstream.Position(val), nil
}

func (s *Store) SetPosition(_ context.Context, scope docstream.Scope, pos docstream.Position) error {
	return s.set(scope, pos)
}

func (s *Store) ResetPosition(_ context.Context, scope docstream.Scope) error {
	return s.set(scope, "")
}

func (s *Store) set(scope docstream.Scope, pos docstream.Position) error {
	if err := s.db.Set(key(scope), []byte(pos), s.writeOpts); err != nil {
		return errors.Wrap(err, "set position", j.MKS{
			"scope":    scope.String(),
			"position": string(pos),
		})
	}
	return nil
}

// Scopes returns the string form of every scope with a record.
func (s *Store) Scopes() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "\xff"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	var res []string
	for iter.First(); iter.Valid(); iter.Next() {
		res = append(res, string(iter.Key()[len(keyPrefix):]))
	}
	return res, iter.Error()
}

var _ docstream.CheckpointStore = (*Store)(nil)

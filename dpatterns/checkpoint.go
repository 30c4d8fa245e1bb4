package dpatterns

import (
	"context"
	"sync"

	"github.com/luno/docstream"
)

// ReadThroughCheckpointStore provides a checkpoint store that queries the
// fallback store if the position is not found in the primary. Positions
// found in the fallback are copied to the primary. It always writes to the
// primary and resets both.
//
// Use cases:
//   - Migrating checkpoint stores: Use the new store as the primary
//     and the old store as the fallback. Revert to just the new
//     store after the migration.
//   - Programmatic seeding of a position: Use a MemCheckpointStore with the
//     position seeded by WithMemPosition as the fallback and the target
//     store as the primary. Revert to just the target store afterwards.
func ReadThroughCheckpointStore(primary, fallback docstream.CheckpointStore) docstream.CheckpointStore {
	return &readThroughStore{CheckpointStore: primary, fallback: fallback}
}

type readThroughStore struct {
	docstream.CheckpointStore // Primary
	fallback                  docstream.CheckpointStore
}

func (c *readThroughStore) GetPosition(ctx context.Context, scope docstream.Scope,
) (docstream.Position, error) {
	pos, err := c.CheckpointStore.GetPosition(ctx, scope)
	if err != nil {
		return "", err
	}

	if pos != "" {
		return pos, nil
	}

	pos, err = c.fallback.GetPosition(ctx, scope)
	if err != nil {
		return "", err
	} else if pos == "" {
		return "", nil
	}

	if err := c.CheckpointStore.SetPosition(ctx, scope, pos); err != nil {
		return "", err
	}

	return pos, nil
}

func (c *readThroughStore) ResetPosition(ctx context.Context, scope docstream.Scope) error {
	if err := c.CheckpointStore.ResetPosition(ctx, scope); err != nil {
		return err
	}
	return c.fallback.ResetPosition(ctx, scope)
}

// MemCheckpointStore returns an in-memory checkpoint store. Note that it
// obviously does not provide any persistence guarantees.
//
// Use cases:
//   - Testing
//   - Programmatic seeding of a position: See ReadThroughCheckpointStore above.
func MemCheckpointStore(opts ...memOpt) docstream.CheckpointStore {
	res := &memStore{positions: make(map[docstream.Scope]docstream.Position)}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

type memStore struct {
	mu        sync.Mutex
	positions map[docstream.Scope]docstream.Position
}

func (m *memStore) GetPosition(_ context.Context, scope docstream.Scope) (docstream.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[scope], nil
}

func (m *memStore) SetPosition(_ context.Context, scope docstream.Scope, pos docstream.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[scope] = pos
	return nil
}

func (m *memStore) ResetPosition(_ context.Context, scope docstream.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, scope)
	return nil
}

type memOpt func(*memStore)

// WithMemPosition returns a option that stores the position in the
// MemCheckpointStore.
func WithMemPosition(scope docstream.Scope, pos docstream.Position) memOpt {
	return func(m *memStore) {
		m.positions[scope] = pos
	}
}

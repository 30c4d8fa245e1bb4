package testmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/luno/docstream"
)

// CheckpointStore is a mock docstream.CheckpointStore.
type CheckpointStore struct {
	mock.Mock
}

func (m *CheckpointStore) GetPosition(ctx context.Context, scope docstream.Scope) (docstream.Position, error) {
	ret := m.Called(ctx, scope)
	return ret.Get(0).(docstream.Position), ret.Error(1)
}

func (m *CheckpointStore) SetPosition(ctx context.Context, scope docstream.Scope, pos docstream.Position) error {
	ret := m.Called(ctx, scope, pos)
	return ret.Error(0)
}

func (m *CheckpointStore) ResetPosition(ctx context.Context, scope docstream.Scope) error {
	ret := m.Called(ctx, scope)
	return ret.Error(0)
}

var _ docstream.CheckpointStore = (*CheckpointStore)(nil)

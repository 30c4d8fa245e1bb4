package docstream

import (
	"context"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIsCanaryDelete(t *testing.T) {
	oid := primitive.NewObjectID()
	key := marshal(t, bson.D{{Key: "_id", Value: oid}})

	require.True(t, isCanaryDelete(&ChangeEvent{Op: OpDelete, DocumentKey: key}, oid.Hex()))
	require.False(t, isCanaryDelete(&ChangeEvent{Op: OpInsert, DocumentKey: key}, oid.Hex()))
	require.False(t, isCanaryDelete(&ChangeEvent{Op: OpDelete, DocumentKey: key}, primitive.NewObjectID().Hex()))
	require.False(t, isCanaryDelete(&ChangeEvent{Op: OpDelete}, oid.Hex()))
}

func TestWait(t *testing.T) {
	var sleeps []time.Duration
	newTimer = func(d time.Duration) *time.Timer {
		sleeps = append(sleeps, d)
		return time.NewTimer(0)
	}
	t.Cleanup(func() { newTimer = time.NewTimer })

	ctx := context.Background()
	jtest.RequireNil(t, wait(ctx, time.Second))
	jtest.RequireNil(t, wait(ctx, 0))
	require.Equal(t, []time.Duration{time.Second}, sleeps)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	jtest.Require(t, context.Canceled, wait(cctx, 0))
}

package testmock

import (
	"context"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"

	"github.com/luno/docstream"
)

// AwaitPosition blocks until the stored position of the scope reaches pos.
// It relies on positions of this package's Feed sorting lexically.
func AwaitPosition(t *testing.T, cs docstream.CheckpointStore, scope docstream.Scope, pos docstream.Position) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	for ctx.Err() == nil {
		val, err := cs.GetPosition(ctx, scope)
		jtest.RequireNil(t, err)

		if val != "" && val >= pos {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timeout waiting for position %s", pos)
}

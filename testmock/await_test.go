package testmock_test

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/luno/docstream"
	"github.com/luno/docstream/dpatterns"
	"github.com/luno/docstream/testmock"
)

func TestAwait(t *testing.T) {
	scope := docstream.Scope{Database: "app", Collection: "users"}
	f := testmock.NewFeed(t)
	cstore := dpatterns.MemCheckpointStore()
	sink := testmock.NewSink("mem")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	spec := docstream.NewSpec(scope, f, cstore, docstream.NewDispatcher(sink),
		docstream.WithCanary(f))

	// Bootstrap first so that the insert below is after the stored position.
	_, err := docstream.Run(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}

	pos := f.Insert(users, bson.D{{Key: "_id", Value: "u1"}})

	go dpatterns.RunForever(func() context.Context { return ctx }, spec,
		dpatterns.WithInterval(time.Millisecond))

	testmock.AwaitPosition(t, cstore, scope, pos)
}

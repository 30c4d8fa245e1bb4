package sink_test

import (
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/luno/docstream"
)

var (
	orders    = docstream.Namespace{Database: "shop", Collection: "Orders"}
	clusterTs = time.Date(2024, 2, 29, 23, 59, 58, 0, time.UTC)
)

func insertEnvelope(t *testing.T, pos docstream.Position, doc bson.D) docstream.Envelope {
	t.Helper()

	full, err := bson.Marshal(doc)
	jtest.RequireNil(t, err)
	key, err := bson.Marshal(bson.D{doc[0]})
	jtest.RequireNil(t, err)

	return envelope(t, &docstream.ChangeEvent{
		Op:           docstream.OpInsert,
		Namespace:    orders,
		DocumentKey:  key,
		FullDocument: full,
		Position:     pos,
		Timestamp:    clusterTs,
	})
}

func deleteEnvelope(t *testing.T, pos docstream.Position, id interface{}) docstream.Envelope {
	t.Helper()

	key, err := bson.Marshal(bson.D{{Key: "_id", Value: id}})
	jtest.RequireNil(t, err)

	return envelope(t, &docstream.ChangeEvent{
		Op:          docstream.OpDelete,
		Namespace:   orders,
		DocumentKey: key,
		Position:    pos,
		Timestamp:   clusterTs,
	})
}

func envelope(t *testing.T, e *docstream.ChangeEvent) docstream.Envelope {
	t.Helper()
	p, err := docstream.Normalize(e)
	jtest.RequireNil(t, err)
	return docstream.Envelope{Event: e, Payload: p}
}

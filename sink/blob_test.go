package sink_test

import (
	"context"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"gocloud.dev/blob/memblob"

	"github.com/luno/docstream/sink"
)

func TestBlobPut(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		prefix string
		key    string
	}{
		{
			name: "no prefix",
			key:  "shop/Orders/2024/02/29/82a1",
		},
		{
			name:   "prefix",
			prefix: "replica/raw",
			key:    "replica/raw/shop/Orders/2024/02/29/82a1",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bucket := memblob.OpenBucket(nil)
			t.Cleanup(func() { _ = bucket.Close() })

			s := sink.NewBlob(bucket, test.prefix)

			e := insertEnvelope(t, "82a1", bson.D{{Key: "_id", Value: "o1"}, {Key: "n", Value: "x"}})
			require.Equal(t, test.key, s.Key(e))

			jtest.RequireNil(t, s.Put(ctx, e))
			// Redelivery overwrites.
			jtest.RequireNil(t, s.Put(ctx, e))

			b, err := bucket.ReadAll(ctx, test.key)
			jtest.RequireNil(t, err)
			require.JSONEq(t, `{"_id":"o1","n":"x"}`, string(b))

			attrs, err := bucket.Attributes(ctx, test.key)
			jtest.RequireNil(t, err)
			require.Equal(t, "application/json", attrs.ContentType)
		})
	}
}

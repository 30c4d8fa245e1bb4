package docstream

import (
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func marshal(t *testing.T, doc bson.D) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(doc)
	jtest.RequireNil(t, err)
	return b
}

func TestNormalize(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("65f0c0ffee00000000000001")
	jtest.RequireNil(t, err)

	tests := []struct {
		name     string
		op       OperationType
		key      bson.D
		doc      bson.D
		expID    string
		expJSON  string
		expBody  string
		expField []string
	}{
		{
			name:     "insert object id",
			op:       OpInsert,
			key:      bson.D{{Key: "_id", Value: oid}},
			doc:      bson.D{{Key: "Name", Value: "bob"}, {Key: "_id", Value: oid}, {Key: "age", Value: 42}},
			expID:    "65f0c0ffee00000000000001",
			expJSON:  `{"_id":"65f0c0ffee00000000000001","Name":"bob","age":42}`,
			expBody:  `{"Name":"bob","age":42}`,
			expField: []string{"Name", "age"},
		},
		{
			name:     "update int id",
			op:       OpUpdate,
			key:      bson.D{{Key: "_id", Value: int32(7)}},
			doc:      bson.D{{Key: "_id", Value: int32(7)}, {Key: "b", Value: true}, {Key: "a", Value: "x"}},
			expID:    "7",
			expJSON:  `{"_id":"7","b":true,"a":"x"}`,
			expBody:  `{"b":true,"a":"x"}`,
			expField: []string{"b", "a"},
		},
		{
			name:     "replace int64 id",
			op:       OpReplace,
			key:      bson.D{{Key: "_id", Value: int64(1) << 40}},
			doc:      bson.D{{Key: "_id", Value: int64(1) << 40}},
			expID:    "1099511627776",
			expJSON:  `{"_id":"1099511627776"}`,
			expBody:  `{}`,
			expField: []string{},
		},
		{
			name:    "delete",
			op:      OpDelete,
			key:     bson.D{{Key: "_id", Value: "o1"}},
			expID:   "o1",
			expJSON: `{"_id":"o1"}`,
			expBody: `{}`,
		},
		{
			name:    "composite id",
			op:      OpDelete,
			key:     bson.D{{Key: "_id", Value: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: "x"}}}},
			expID:   `{"a":1,"b":"x"}`,
			expJSON: `{"_id":"{\"a\":1,\"b\":\"x\"}"}`,
			expBody: `{}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := &ChangeEvent{
				Op:          test.op,
				DocumentKey: marshal(t, test.key),
			}
			if test.doc != nil {
				e.FullDocument = marshal(t, test.doc)
			}

			p, err := Normalize(e)
			jtest.RequireNil(t, err)
			require.Equal(t, test.expID, p.ID)
			require.Equal(t, test.op, p.Op)

			var fields []string
			for _, f := range p.Fields {
				fields = append(fields, f.Key)
			}
			if test.expField == nil {
				require.Empty(t, fields)
			} else if len(test.expField) > 0 {
				require.Equal(t, test.expField, fields)
			}

			b, err := p.JSON()
			jtest.RequireNil(t, err)
			require.JSONEq(t, test.expJSON, string(b))

			b, err = p.BodyJSON()
			jtest.RequireNil(t, err)
			require.JSONEq(t, test.expBody, string(b))
		})
	}
}

func TestNormalizeFieldOrder(t *testing.T) {
	doc := bson.D{{Key: "_id", Value: "x"}, {Key: "z", Value: 1}, {Key: "A", Value: 2}, {Key: "m", Value: 3}}
	p, err := Normalize(&ChangeEvent{Op: OpInsert, FullDocument: marshal(t, doc)})
	jtest.RequireNil(t, err)

	b, err := p.JSON()
	jtest.RequireNil(t, err)
	require.Equal(t, `{"_id":"x","z":1,"A":2,"m":3}`, string(b))
}

func TestNormalizeInvalid(t *testing.T) {
	tests := []struct {
		name string
		e    *ChangeEvent
	}{
		{
			name: "not data",
			e:    &ChangeEvent{Op: OpDrop},
		},
		{
			name: "insert without document",
			e:    &ChangeEvent{Op: OpInsert, DocumentKey: marshal(t, bson.D{{Key: "_id", Value: "x"}})},
		},
		{
			name: "document without id",
			e:    &ChangeEvent{Op: OpInsert, FullDocument: marshal(t, bson.D{{Key: "a", Value: 1}})},
		},
		{
			name: "delete without key",
			e:    &ChangeEvent{Op: OpDelete},
		},
		{
			name: "key without id",
			e:    &ChangeEvent{Op: OpDelete, DocumentKey: marshal(t, bson.D{{Key: "a", Value: 1}})},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Normalize(test.e)
			jtest.Require(t, ErrInvalidEvent, err)
		})
	}
}

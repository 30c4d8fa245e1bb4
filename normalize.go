package docstream

import (
	"strconv"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const idField = "_id"

// Payload is the normalized, wire-stable shape of a change event.
type Payload struct {
	// ID is the stringified document id. Sinks use it as a partition or
	// dedup key so it is always a string regardless of the source id type.
	ID string

	Op OperationType

	// Fields are the document fields except _id, in source order.
	// It is empty for deletes.
	Fields bson.D
}

// JSON returns {"_id": "<id>", ...fields} as relaxed extended JSON.
func (p Payload) JSON() ([]byte, error) {
	doc := make(bson.D, 0, len(p.Fields)+1)
	doc = append(doc, bson.E{Key: idField, Value: p.ID})
	doc = append(doc, p.Fields...)
	return marshalJSON(doc)
}

// BodyJSON returns the fields without the id as relaxed extended JSON.
func (p Payload) BodyJSON() ([]byte, error) {
	if p.Fields == nil {
		return marshalJSON(bson.D{})
	}
	return marshalJSON(p.Fields)
}

func marshalJSON(doc bson.D) ([]byte, error) {
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	return b, nil
}

// Normalize maps a change event to its payload. It has no side effects.
// Field names, case and order are preserved from the source document.
func Normalize(e *ChangeEvent) (Payload, error) {
	if !e.Op.IsData() {
		return Payload{}, errors.Wrap(ErrInvalidEvent, "not a data event",
			j.KV("op", string(e.Op)))
	}

	if e.Op == OpDelete {
		id, err := documentID(e.DocumentKey)
		if err != nil {
			return Payload{}, err
		}
		return Payload{ID: id, Op: e.Op}, nil
	}

	if len(e.FullDocument) == 0 {
		return Payload{}, errors.Wrap(ErrInvalidEvent, "missing full document",
			j.KV("op", string(e.Op)))
	}

	elems, err := e.FullDocument.Elements()
	if err != nil {
		return Payload{}, errors.Wrap(ErrInvalidEvent, "malformed document")
	}

	var (
		id     string
		found  bool
		fields = make(bson.D, 0, len(elems))
	)
	for _, elem := range elems {
		if elem.Key() == idField {
			id, err = stringifyID(elem.Value())
			if err != nil {
				return Payload{}, err
			}
			found = true
			continue
		}
		fields = append(fields, bson.E{Key: elem.Key(), Value: elem.Value()})
	}
	if !found {
		return Payload{}, errors.Wrap(ErrInvalidEvent, "document without id")
	}

	return Payload{ID: id, Op: e.Op, Fields: fields}, nil
}

func documentID(key bson.Raw) (string, error) {
	if len(key) == 0 {
		return "", errors.Wrap(ErrInvalidEvent, "missing document key")
	}
	v, err := key.LookupErr(idField)
	if err != nil {
		return "", errors.Wrap(ErrInvalidEvent, "document key without id")
	}
	return stringifyID(v)
}

// stringifyID converts a native document id to a stable string.
func stringifyID(v bson.RawValue) (string, error) {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex(), nil
	case bsontype.String:
		return v.StringValue(), nil
	case bsontype.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10), nil
	case bsontype.Int64:
		return strconv.FormatInt(v.Int64(), 10), nil
	}

	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return "", errors.Wrap(ErrInvalidEvent, "unsupported id type",
			j.KV("type", v.Type.String()))
	}
	// Strip the {"v": ... } wrapper.
	return string(b[len(`{"v":`) : len(b)-1]), nil
}

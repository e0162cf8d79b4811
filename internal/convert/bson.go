// Package convert maps MongoDB driver values to the document model and back.
package convert

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/model"
)

// --- driver -> model ---

// FromBSON converts a decoded driver document into a model document.
func FromBSON(d bson.D) (model.Doc, error) {
	return fromDoc(d, nil)
}

// FromBSONAll converts a batch of driver documents.
func FromBSONAll(in []bson.D) ([]model.Doc, error) {
	out := make([]model.Doc, 0, len(in))
	for i, d := range in {
		doc, err := FromBSON(d)
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func fromDoc(d bson.D, path model.FieldPath) (model.Doc, error) {
	out := make(model.Doc, 0, len(d))
	for _, e := range d {
		v, err := fromValue(e.Value, path.Child(e.Key))
		if err != nil {
			return nil, err
		}
		out = append(out, model.Field{Name: e.Key, Value: v})
	}
	return out, nil
}

func fromValue(v any, path model.FieldPath) (model.Value, error) {
	switch tv := v.(type) {
	case nil, primitive.Null:
		return model.Null{}, nil
	case primitive.Undefined:
		return model.Elided{}, nil
	case bool:
		return model.Bool(tv), nil
	case int32:
		return model.Int(tv), nil
	case int64:
		return model.Int(tv), nil
	case int:
		return model.Int(tv), nil
	case float64:
		return model.Float(tv), nil
	case string:
		return model.Text(tv), nil
	case primitive.ObjectID:
		return model.RefID(tv), nil
	case primitive.DateTime:
		return model.NewTemporal(tv.Time().UTC()), nil
	case time.Time:
		return model.NewTemporal(tv.UTC()), nil
	case bson.D:
		return fromDoc(tv, path)
	case bson.M:
		return fromMap(tv, path)
	case bson.A:
		return fromSlice(tv, path)
	case []any:
		return fromSlice(tv, path)
	default:
		return nil, fmt.Errorf("%w: %T at %q", errs.ErrUnsupportedType, v, path.String())
	}
}

func fromMap(m bson.M, path model.FieldPath) (model.Doc, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(model.Doc, 0, len(m))
	for _, k := range keys {
		v, err := fromValue(m[k], path.Child(k))
		if err != nil {
			return nil, err
		}
		out = append(out, model.Field{Name: k, Value: v})
	}
	return out, nil
}

func fromSlice(a []any, path model.FieldPath) (model.Seq, error) {
	out := make(model.Seq, 0, len(a))
	for i, item := range a {
		v, err := fromValue(item, path.Index(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// --- model -> driver ---

// ToBSON converts a model document into a driver document ready for insert.
func ToBSON(d model.Doc) (bson.D, error) {
	return toDoc(d, nil)
}

// ToBSONAll converts a batch of model documents into insertable values.
func ToBSONAll(in []model.Doc) ([]any, error) {
	out := make([]any, 0, len(in))
	for i, d := range in {
		doc, err := ToBSON(d)
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func toDoc(d model.Doc, path model.FieldPath) (bson.D, error) {
	out := make(bson.D, 0, len(d))
	for _, f := range d {
		v, err := toValue(f.Value, path.Child(f.Name))
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: f.Name, Value: v})
	}
	return out, nil
}

func toValue(v model.Value, path model.FieldPath) (any, error) {
	switch tv := v.(type) {
	case nil, model.Null:
		return nil, nil
	case model.Elided:
		return primitive.Undefined{}, nil
	case model.Bool:
		return bool(tv), nil
	case model.Int:
		// int32 when it fits, matching what the server hands back for small integers.
		if tv >= math.MinInt32 && tv <= math.MaxInt32 {
			return int32(tv), nil
		}
		return int64(tv), nil
	case model.Float:
		return float64(tv), nil
	case model.Text:
		return string(tv), nil
	case model.RefID:
		return primitive.ObjectID(tv), nil
	case model.Temporal:
		return primitive.NewDateTimeFromTime(tv.Time), nil
	case model.Seq:
		out := make(bson.A, 0, len(tv))
		for i, item := range tv {
			iv, err := toValue(item, path.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, iv)
		}
		return out, nil
	case model.Doc:
		return toDoc(tv, path)
	default:
		return nil, fmt.Errorf("%w: %T at %q", errs.ErrUnsupportedType, v, path.String())
	}
}

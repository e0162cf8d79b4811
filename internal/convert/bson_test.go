package convert

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/model"
)

func mustOID(t *testing.T, s string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		t.Fatalf("bad object id %q: %v", s, err)
	}
	return id
}

func TestFromBSON_Scalars(t *testing.T) {
	t.Parallel()

	oid := mustOID(t, "65a1b2c3d4e5f60718293a4b")
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	in := bson.D{
		{Key: "_id", Value: oid},
		{Key: "n32", Value: int32(7)},
		{Key: "n64", Value: int64(1) << 40},
		{Key: "f", Value: 1.5},
		{Key: "s", Value: "x"},
		{Key: "b", Value: true},
		{Key: "null", Value: nil},
		{Key: "undef", Value: primitive.Undefined{}},
		{Key: "at", Value: primitive.NewDateTimeFromTime(at)},
	}

	got, err := FromBSON(in)
	if err != nil {
		t.Fatalf("FromBSON: %v", err)
	}
	want := model.Doc{
		{Name: "_id", Value: model.RefID(oid)},
		{Name: "n32", Value: model.Int(7)},
		{Name: "n64", Value: model.Int(1 << 40)},
		{Name: "f", Value: model.Float(1.5)},
		{Name: "s", Value: model.Text("x")},
		{Name: "b", Value: model.Bool(true)},
		{Name: "null", Value: model.Null{}},
		{Name: "undef", Value: model.Elided{}},
		{Name: "at", Value: model.NewTemporal(at)},
	}
	if !model.Equal(want, got) {
		t.Fatalf("mismatch:\nwant %#v\ngot  %#v", want, got)
	}
}

func TestFromBSON_NestedAndMapOrder(t *testing.T) {
	t.Parallel()

	in := bson.D{
		{Key: "m", Value: bson.M{"z": int32(1), "a": int32(2)}},
		{Key: "list", Value: bson.A{bson.D{{Key: "k", Value: "v"}}, bson.A{int32(1)}}},
	}
	got, err := FromBSON(in)
	if err != nil {
		t.Fatalf("FromBSON: %v", err)
	}
	want := model.Doc{
		{Name: "m", Value: model.Doc{{Name: "a", Value: model.Int(2)}, {Name: "z", Value: model.Int(1)}}},
		{Name: "list", Value: model.Seq{
			model.Doc{{Name: "k", Value: model.Text("v")}},
			model.Seq{model.Int(1)},
		}},
	}
	if !model.Equal(want, got) {
		t.Fatalf("mismatch:\nwant %#v\ngot  %#v", want, got)
	}
}

func TestFromBSON_Unsupported(t *testing.T) {
	t.Parallel()

	in := bson.D{{Key: "outer", Value: bson.A{"ok", primitive.Binary{Data: []byte{1}}}}}
	_, err := FromBSON(in)
	if !errors.Is(err, errs.ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
	if want := `"outer.1"`; err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("error %v must name path %s", err, want)
	}

	_, err = FromBSONAll([]bson.D{{}, {{Key: "d", Value: primitive.NewDecimal128(1, 2)}}})
	if !errors.Is(err, errs.ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
}

type foreignValue struct{}

func (foreignValue) Kind() model.Kind { return model.Kind(250) }

func TestToBSON_UnknownValue(t *testing.T) {
	t.Parallel()

	_, err := ToBSONAll([]model.Doc{
		{{Name: "ok", Value: model.Int(1)}},
		{{Name: "list", Value: model.Seq{model.Bool(true), foreignValue{}}}},
	})
	if !errors.Is(err, errs.ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
	if !strings.Contains(err.Error(), `document[1]`) || !strings.Contains(err.Error(), `"list.1"`) {
		t.Fatalf("error lacks location: %v", err)
	}
}

func TestToBSON_IntWidth(t *testing.T) {
	t.Parallel()

	out, err := ToBSON(model.Doc{
		{Name: "small", Value: model.Int(math.MaxInt32)},
		{Name: "big", Value: model.Int(math.MaxInt32 + 1)},
		{Name: "neg", Value: model.Int(math.MinInt32 - 1)},
	})
	if err != nil {
		t.Fatalf("ToBSON: %v", err)
	}
	if _, ok := out[0].Value.(int32); !ok {
		t.Fatalf("small: want int32, got %T", out[0].Value)
	}
	if _, ok := out[1].Value.(int64); !ok {
		t.Fatalf("big: want int64, got %T", out[1].Value)
	}
	if _, ok := out[2].Value.(int64); !ok {
		t.Fatalf("neg: want int64, got %T", out[2].Value)
	}
}

func TestRoundTrip_ModelThroughBSON(t *testing.T) {
	t.Parallel()

	id, err := model.ParseRefID("65a1b2c3d4e5f60718293a4b")
	if err != nil {
		t.Fatal(err)
	}
	doc := model.Doc{
		{Name: "_id", Value: id},
		{Name: "at", Value: model.NewTemporal(time.Date(2024, 6, 1, 10, 0, 0, 123_000_000, time.UTC))},
		{Name: "gone", Value: model.Elided{}},
		{Name: "nil", Value: model.Null{}},
		{Name: "nested", Value: model.Doc{
			{Name: "tags", Value: model.Seq{model.Text("a"), model.Int(-3), model.Float(0.25), model.Bool(false)}},
		}},
	}

	// through the wire encoding, as the driver would do on insert and find
	out, err := ToBSON(doc)
	if err != nil {
		t.Fatalf("ToBSON: %v", err)
	}
	raw, err := bson.Marshal(out)
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	var decoded bson.D
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("bson.Unmarshal: %v", err)
	}
	back, err := FromBSON(decoded)
	if err != nil {
		t.Fatalf("FromBSON: %v", err)
	}
	if !model.Equal(doc, back) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", doc, back)
	}
}

// Package model defines the document value tree shared by the codec, the snapshot
// files and the database backends, plus the run journal entity.
package model

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Kind identifies the concrete type behind a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindElided
	KindBool
	KindInt
	KindFloat
	KindText
	KindRefID
	KindTemporal
	KindSeq
	KindDoc
)

var kindNames = [...]string{
	KindNull:     "null",
	KindElided:   "elided",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindText:     "text",
	KindRefID:    "refid",
	KindTemporal: "temporal",
	KindSeq:      "seq",
	KindDoc:      "doc",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is any field value of a schema-less document.
type Value interface {
	Kind() Kind
}

// Null is an explicit null.
type Null struct{}

// Elided is a field that is present but carries no value. It is distinct
// from Null and from the field being absent.
type Elided struct{}

// Bool is a boolean scalar.
type Bool bool

// Int is an integral number.
type Int int64

// Float is a floating point number.
type Float float64

// Text is a string scalar.
type Text string

// RefID is the database's native 12-byte reference identifier.
type RefID [12]byte

// Temporal is an absolute point in time.
type Temporal struct{ time.Time }

// Seq is an ordered array of values.
type Seq []Value

// Field is a single named entry of a Doc.
type Field struct {
	Name  string
	Value Value
}

// Doc is an ordered mapping of field name to value.
type Doc []Field

func (Null) Kind() Kind     { return KindNull }
func (Elided) Kind() Kind   { return KindElided }
func (Bool) Kind() Kind     { return KindBool }
func (Int) Kind() Kind      { return KindInt }
func (Float) Kind() Kind    { return KindFloat }
func (Text) Kind() Kind     { return KindText }
func (RefID) Kind() Kind    { return KindRefID }
func (Temporal) Kind() Kind { return KindTemporal }
func (Seq) Kind() Kind      { return KindSeq }
func (Doc) Kind() Kind      { return KindDoc }

// IDField is the name of the identity field assigned by the database.
const IDField = "_id"

// Get returns the value of the named field.
func (d Doc) Get(name string) (Value, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Index returns the position of the named field or -1.
func (d Doc) Index(name string) int {
	for i, f := range d {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Without returns a copy of d without the named field.
func (d Doc) Without(name string) Doc {
	out := make(Doc, 0, len(d))
	for _, f := range d {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}

// ID returns the document identity, if present.
func (d Doc) ID() (Value, bool) { return d.Get(IDField) }

// RefIDLen is the length of a RefID in its canonical hex form.
const RefIDLen = 24

// String returns the canonical 24-character lowercase hex form.
func (r RefID) String() string { return hex.EncodeToString(r[:]) }

// IsRefIDHex reports whether s has the canonical RefID text shape.
func IsRefIDHex(s string) bool {
	if len(s) != RefIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ParseRefID parses the 24-character hex form of a RefID.
func ParseRefID(s string) (RefID, error) {
	var r RefID
	if !IsRefIDHex(s) {
		return r, fmt.Errorf("invalid reference id %q", s)
	}
	if _, err := hex.Decode(r[:], []byte(s)); err != nil {
		return r, fmt.Errorf("invalid reference id %q: %w", s, err)
	}
	return r, nil
}

const (
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// NewTemporal wraps t.
func NewTemporal(t time.Time) Temporal { return Temporal{Time: t} }

// ISO returns the ISO-8601 UTC form. Millisecond precision uses a fixed three
// digit fraction; finer instants fall back to RFC 3339 with nanoseconds.
func (t Temporal) ISO() string {
	u := t.UTC()
	if u.Nanosecond()%int(time.Millisecond) == 0 {
		return u.Format(isoMillis)
	}
	return u.Format(time.RFC3339Nano)
}

// ParseTemporal parses ISO-8601 text produced by Temporal.ISO or any RFC 3339 writer.
func ParseTemporal(s string) (Temporal, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Temporal{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return Temporal{Time: t}, nil
}

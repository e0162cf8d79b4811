package model

import (
	"strconv"
	"strings"
)

// PathSeparator joins FieldPath segments in their rendered form.
const PathSeparator = "."

// FieldPath locates a value inside a document. Each segment is either a field
// name or a decimal array index.
type FieldPath []string

// Child returns a new path with a field name appended.
func (p FieldPath) Child(name string) FieldPath {
	out := make(FieldPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Index returns a new path with an array index appended.
func (p FieldPath) Index(i int) FieldPath {
	return p.Child(strconv.Itoa(i))
}

// String renders the path dot-joined, e.g. "a.b.2.c".
func (p FieldPath) String() string { return strings.Join(p, PathSeparator) }

// ParseFieldPath splits a rendered path into segments.
func ParseFieldPath(s string) FieldPath {
	return strings.Split(s, PathSeparator)
}

// TypeTag names a value type that does not survive a generic interchange round trip.
type TypeTag string

// Type tags as written into snapshot files.
const (
	TagRefID    TypeTag = "RefId"
	TagTemporal TypeTag = "Temporal"
	TagElided   TypeTag = "Elided"
	TagNull     TypeTag = "Null"
)

// Valid reports whether t is one of the known tags.
func (t TypeTag) Valid() bool {
	switch t {
	case TagRefID, TagTemporal, TagElided, TagNull:
		return true
	}
	return false
}

// Registry maps rendered field paths to type tags for one document.
type Registry map[string]TypeTag

package codec

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/model"
)

// RegistryKey is the reserved top-level field holding a document's type registry.
const RegistryKey = "__fieldTypes"

// Warning describes a registry entry that could not be applied during Decode.
// The affected field keeps its raw interchange value.
type Warning struct {
	Path   string
	Tag    model.TypeTag
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s (%s): %s", w.Path, w.Tag, w.Reason)
}

// Encode converts doc to its interchange form with the type registry attached
// under RegistryKey. doc is not modified.
func Encode(doc model.Doc) (model.Doc, error) {
	if doc.Index(RegistryKey) >= 0 {
		return nil, fmt.Errorf("%w: document already has a %q field", errs.ErrReservedKey, RegistryKey)
	}

	reg := model.Registry{}
	enc, err := walk(doc, nil, reg)
	if err != nil {
		return nil, err
	}

	out := enc.(model.Doc)
	return append(out, model.Field{Name: RegistryKey, Value: registryDoc(reg)}), nil
}

func registryDoc(reg model.Registry) model.Doc {
	paths := sortedPaths(reg)
	d := make(model.Doc, 0, len(paths))
	for _, p := range paths {
		d = append(d, model.Field{Name: p, Value: model.Text(reg[p])})
	}
	return d
}

func sortedPaths(reg model.Registry) []string {
	paths := make([]string, 0, len(reg))
	for p := range reg {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Decode restores a document produced by Encode. Entries of the registry that
// cannot be applied are reported as warnings; the rest of the document is
// still decoded. enc is not modified.
func Decode(enc model.Doc) (model.Doc, []Warning) {
	var warnings []Warning

	reg := model.Registry{}
	if raw, ok := enc.Get(RegistryKey); ok {
		reg, warnings = parseRegistry(raw)
	}
	doc := model.CloneDoc(enc.Without(RegistryKey))

	for _, p := range sortedPaths(reg) {
		tag := reg[p]
		if reason := apply(doc, model.ParseFieldPath(p), tag); reason != "" {
			warnings = append(warnings, Warning{Path: p, Tag: tag, Reason: reason})
		}
	}

	return reviveElided(doc).(model.Doc), warnings
}

func parseRegistry(raw model.Value) (model.Registry, []Warning) {
	reg := model.Registry{}
	d, ok := raw.(model.Doc)
	if !ok {
		return reg, []Warning{{Path: RegistryKey, Reason: fmt.Sprintf("registry is %s, want object", kindOf(raw))}}
	}

	var warnings []Warning
	for _, f := range d {
		text, ok := f.Value.(model.Text)
		tag := model.TypeTag(text)
		if !ok || !tag.Valid() {
			warnings = append(warnings, Warning{Path: f.Name, Tag: tag, Reason: "unknown type tag"})
			continue
		}
		reg[f.Name] = tag
	}
	return reg, warnings
}

// apply replaces the value at path inside doc according to tag. It returns a
// non-empty reason when the entry had to be skipped or left raw.
func apply(doc model.Doc, path model.FieldPath, tag model.TypeTag) string {
	var container model.Value = doc
	for _, seg := range path[:len(path)-1] {
		next, reason := child(container, seg)
		if reason != "" {
			return reason
		}
		container = next
	}

	last := path[len(path)-1]
	cur, reason := child(container, last)
	if reason != "" {
		return reason
	}

	var next model.Value
	switch tag {
	case model.TagElided:
		next = model.Elided{}
	case model.TagNull:
		next = model.Null{}
	case model.TagRefID:
		text, ok := cur.(model.Text)
		if !ok {
			return fmt.Sprintf("expected text, found %s", kindOf(cur))
		}
		id, err := model.ParseRefID(string(text))
		if err != nil {
			return "not a reference id, kept as text"
		}
		next = id
	case model.TagTemporal:
		text, ok := cur.(model.Text)
		if !ok {
			return fmt.Sprintf("expected text, found %s", kindOf(cur))
		}
		ts, err := model.ParseTemporal(string(text))
		if err != nil {
			return "not an ISO-8601 timestamp, kept as text"
		}
		next = ts
	default:
		return "unknown type tag"
	}

	set(container, last, next)
	return ""
}

func child(container model.Value, seg string) (model.Value, string) {
	switch c := container.(type) {
	case model.Doc:
		v, ok := c.Get(seg)
		if !ok {
			return nil, fmt.Sprintf("field %q not found", seg)
		}
		return v, ""
	case model.Seq:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Sprintf("index %q out of range", seg)
		}
		return c[i], ""
	}
	return nil, fmt.Sprintf("cannot descend into %s at %q", kindOf(container), seg)
}

// set assumes child(container, seg) succeeded.
func set(container model.Value, seg string, v model.Value) {
	switch c := container.(type) {
	case model.Doc:
		c[c.Index(seg)].Value = v
	case model.Seq:
		i, _ := strconv.Atoi(seg)
		c[i] = v
	}
}

// reviveElided converts sentinel text left anywhere in the tree to Elided.
// It only matters when a registry path failed to resolve.
func reviveElided(v model.Value) model.Value {
	switch tv := v.(type) {
	case model.Text:
		if tv == ElidedSentinel {
			return model.Elided{}
		}
	case model.Seq:
		for i := range tv {
			tv[i] = reviveElided(tv[i])
		}
	case model.Doc:
		for i := range tv {
			tv[i].Value = reviveElided(tv[i].Value)
		}
	}
	return v
}

func kindOf(v model.Value) string {
	if v == nil {
		return model.KindNull.String()
	}
	return v.Kind().String()
}

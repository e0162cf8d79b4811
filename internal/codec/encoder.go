// Package codec converts documents to an interchange-safe form and back without
// losing reference ids, timestamps, elided values or nulls.
//
// Encoding replaces every value that plain JSON cannot express with text and
// records the original type per field path in a registry embedded in the
// document. Decoding reverses each substitution using that registry.
package codec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/model"
)

// ElidedSentinel stands in for an Elided value in the interchange form.
const ElidedSentinel = "__undefined__"

// Years outside this range have no four-digit ISO-8601 form.
const (
	minTemporalYear = 0
	maxTemporalYear = 9999
)

// BuildRegistry records the type tag of every leaf under v whose type would be
// lost by a generic interchange round trip. path is the location of v itself.
func BuildRegistry(v model.Value, path model.FieldPath) (model.Registry, error) {
	reg := model.Registry{}
	if _, err := walk(v, path, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// EncodeValue returns the interchange-safe form of v: only Null, Bool, Int,
// Float, Text, Seq and Doc remain.
func EncodeValue(v model.Value) (model.Value, error) {
	return walk(v, nil, nil)
}

// walk encodes v and, when reg is non-nil, records tags into it. Registry
// building and encoding share this traversal so their paths always agree.
func walk(v model.Value, path model.FieldPath, reg model.Registry) (model.Value, error) {
	tag := func(t model.TypeTag) {
		if reg != nil {
			reg[path.String()] = t
		}
	}

	switch tv := v.(type) {
	case nil, model.Null:
		tag(model.TagNull)
		return model.Null{}, nil
	case model.Elided:
		tag(model.TagElided)
		return model.Text(ElidedSentinel), nil
	case model.RefID:
		tag(model.TagRefID)
		return model.Text(tv.String()), nil
	case model.Temporal:
		if y := tv.UTC().Year(); y < minTemporalYear || y > maxTemporalYear {
			return nil, fmt.Errorf("%w: year %d at %q", errs.ErrUnsupportedType, y, path.String())
		}
		tag(model.TagTemporal)
		return model.Text(tv.ISO()), nil
	case model.Text:
		if tv == ElidedSentinel {
			return nil, fmt.Errorf("%w at %q", errs.ErrSentinelCollision, path.String())
		}
		if !utf8.ValidString(string(tv)) {
			return nil, fmt.Errorf("%w: invalid UTF-8 text at %q", errs.ErrUnsupportedType, path.String())
		}
		return tv, nil
	case model.Bool, model.Int, model.Float:
		return tv, nil
	case model.Seq:
		out := make(model.Seq, len(tv))
		for i, e := range tv {
			ev, err := walk(e, path.Index(i), reg)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case model.Doc:
		out := make(model.Doc, len(tv))
		seen := make(map[string]struct{}, len(tv))
		for i, f := range tv {
			if err := checkFieldName(f.Name, path, seen); err != nil {
				return nil, err
			}
			fv, err := walk(f.Value, path.Child(f.Name), reg)
			if err != nil {
				return nil, err
			}
			out[i] = model.Field{Name: f.Name, Value: fv}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T at %q", errs.ErrUnsupportedType, v, path.String())
}

// checkFieldName rejects names that would make a rendered registry path
// resolve to some other field.
func checkFieldName(name string, parent model.FieldPath, seen map[string]struct{}) error {
	switch {
	case strings.Contains(name, model.PathSeparator):
		return fmt.Errorf("%w: %q contains %q at %q", errs.ErrFieldName, name, model.PathSeparator, parent.String())
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: %q is not valid UTF-8 at %q", errs.ErrFieldName, name, parent.String())
	}
	if _, dup := seen[name]; dup {
		return fmt.Errorf("%w: duplicate %q at %q", errs.ErrFieldName, name, parent.String())
	}
	seen[name] = struct{}{}
	return nil
}

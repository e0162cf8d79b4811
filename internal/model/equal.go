package model

// Equal reports deep structural equality. Field order matters; Temporal values
// compare by instant; a nil Value equals Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null, Elided:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Float:
		return av == b.(Float)
	case Text:
		return av == b.(Text)
	case RefID:
		return av == b.(RefID)
	case Temporal:
		return av.Equal(b.(Temporal).Time)
	case Seq:
		bv := b.(Seq)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Doc:
		bv := b.(Doc)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v Value) Value {
	switch tv := v.(type) {
	case Seq:
		out := make(Seq, len(tv))
		for i, e := range tv {
			out[i] = Clone(e)
		}
		return out
	case Doc:
		return CloneDoc(tv)
	}
	return v
}

// CloneDoc returns a deep copy of d.
func CloneDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for i, f := range d {
		out[i] = Field{Name: f.Name, Value: Clone(f.Value)}
	}
	return out
}

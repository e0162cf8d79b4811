package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/model"
)

const jsonIndent = "  "

// MarshalDocuments writes encoded documents as an indented JSON array. Field
// order is preserved and floats always carry a fraction or exponent so they
// read back as Float rather than Int.
func MarshalDocuments(docs []model.Doc) ([]byte, error) {
	var buf bytes.Buffer
	if len(docs) == 0 {
		buf.WriteString("[]\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("[\n")
	for i, d := range docs {
		buf.WriteString(jsonIndent)
		if err := writeValue(&buf, d, 1); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if i < len(docs)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v model.Value, depth int) error {
	switch tv := v.(type) {
	case nil, model.Null:
		buf.WriteString("null")
	case model.Bool:
		buf.WriteString(strconv.FormatBool(bool(tv)))
	case model.Int:
		buf.WriteString(strconv.FormatInt(int64(tv), 10))
	case model.Float:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite number %v", errs.ErrUnsupportedType, f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case model.Text:
		writeString(buf, string(tv))
	case model.Seq:
		if len(tv) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, e := range tv {
			indent(buf, depth+1)
			if err := writeValue(buf, e, depth+1); err != nil {
				return err
			}
			if i < len(tv)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		indent(buf, depth)
		buf.WriteByte(']')
	case model.Doc:
		if len(tv) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i, f := range tv {
			indent(buf, depth+1)
			writeString(buf, f.Name)
			buf.WriteString(": ")
			if err := writeValue(buf, f.Value, depth+1); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			if i < len(tv)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		indent(buf, depth)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %s is not an interchange value", errs.ErrUnsupportedType, v.Kind())
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	// Marshalling a string cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func indent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString(jsonIndent)
	}
}

// UnmarshalDocuments parses a JSON array of objects, keeping field order and
// the integer/float form of every number.
func UnmarshalDocuments(data []byte) ([]model.Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, errors.New("read snapshot: top level is not an array")
	}

	docs := []model.Doc{}
	for dec.More() {
		v, err := readValue(dec)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: document %d: %w", len(docs), err)
		}
		d, ok := v.(model.Doc)
		if !ok {
			return nil, fmt.Errorf("read snapshot: document %d is %s, want object", len(docs), v.Kind())
		}
		docs = append(docs, d)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("read snapshot: trailing data after array")
	}
	return docs, nil
}

func readValue(dec *json.Decoder) (model.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return model.Null{}, nil
	case bool:
		return model.Bool(t), nil
	case string:
		return model.Text(t), nil
	case json.Number:
		return parseNumber(t)
	case json.Delim:
		switch t {
		case '[':
			seq := model.Seq{}
			for dec.More() {
				e, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				seq = append(seq, e)
			}
			_, err := dec.Token()
			return seq, err
		case '{':
			doc := model.Doc{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				v, err := readValue(dec)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
				doc = append(doc, model.Field{Name: key, Value: v})
			}
			_, err := dec.Token()
			return doc, err
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseNumber(n json.Number) (model.Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return model.Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return model.Float(f), nil
}

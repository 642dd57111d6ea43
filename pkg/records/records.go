// Package records defines the row type that flows between query execution,
// transformation and export.
//
// A Row keeps its fields in the order the query produced them. That order is
// the CSV header order and the key order of exported JSON objects, so it must
// survive every stage of a job.
package records

import (
	"bytes"
	"encoding/json"
	"reflect"
)

var rowType = reflect.TypeOf(Row{})

// Row is an ordered set of named values. The zero value is an empty row ready
// for use.
type Row struct {
	fields []string
	values map[string]any
}

// NewRow builds a row from parallel field/value slices. Extra values are
// ignored; missing values are nil. A repeated field name keeps its first
// position and its last value.
func NewRow(fields []string, values []any) Row {
	r := Row{
		fields: make([]string, 0, len(fields)),
		values: make(map[string]any, len(fields)),
	}
	for i, f := range fields {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.Set(f, v)
	}
	return r
}

// Fields returns the field names in order. The slice must not be modified.
func (r Row) Fields() []string { return r.fields }

// Get returns the value for field and whether the field is present.
func (r Row) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Set assigns value to field. New fields are appended at the end.
func (r *Row) Set(field string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = value
}

// Values returns the values in field order.
func (r Row) Values() []any {
	out := make([]any, len(r.fields))
	for i, f := range r.fields {
		out[i] = r.values[f]
	}
	return out
}

// MarshalJSON encodes the row as a JSON object whose keys follow field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the row, keeping key order.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &json.UnmarshalTypeError{Value: "non-object", Type: rowType}
	}
	*r = Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

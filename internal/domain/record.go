package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimestampLayout is the wire format of createdAt/updatedAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Document is a stored resource as returned by a record repository.
type Document struct {
	ID        string
	Fields    map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Record is the API-facing shape of a document. It marshals with the id
// first, the schema fields in declaration order, then the timestamps.
type Record struct {
	ID        string
	Values    []FieldValue
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldValue is one attribute of a Record; Value is nil for absent optional fields.
type FieldValue struct {
	Name  string
	Value *string
}

// Normalize maps a stored document onto the schema's wire shape.
func Normalize(schema Schema, doc Document) Record {
	values := make([]FieldValue, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		fv := FieldValue{Name: f.Name}
		if v, ok := doc.Fields[f.Name]; ok {
			fv.Value = &v
		}
		values = append(values, fv)
	}
	return Record{
		ID:        doc.ID,
		Values:    values,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// NormalizeAll normalizes a document slice, preserving order.
func NormalizeAll(schema Schema, docs []Document) []Record {
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, Normalize(schema, d))
	}
	return out
}

// Get returns the value of the named field.
func (r Record) Get(name string) (*string, bool) {
	for _, fv := range r.Values {
		if fv.Name == name {
			return fv.Value, true
		}
	}
	return nil, false
}

// StoreTime truncates t to the precision kept on the wire.
func StoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	if err := writeJSON(&buf, r.ID); err != nil {
		return nil, err
	}
	for _, fv := range r.Values {
		buf.WriteByte(',')
		if err := writeJSON(&buf, fv.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, fv.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`,"createdAt":`)
	if err := writeJSON(&buf, r.CreatedAt.UTC().Format(TimestampLayout)); err != nil {
		return nil, err
	}
	buf.WriteString(`,"updatedAt":`)
	if err := writeJSON(&buf, r.UpdatedAt.UTC().Format(TimestampLayout)); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// Fields is the untyped JSON payload of a document. Values are JSON values:
// string, json.Number, bool, nil, []any or map[string]any. Payloads built in Go
// may also hold other numeric types; they encode the same way.
type Fields map[string]any

var errNotObject = errors.New("payload is not a JSON object")

// DecodeFields parses b as a single JSON object. Numbers are kept as json.Number so
// integers beyond 2^53 are not rounded through float64.
func DecodeFields(b []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return f, nil
}

// Clone returns a shallow copy of f. A nil f stays nil.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Document is one record of a collection, identified by (Collection, ID).
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	Collection string
	ID         string
	Data       Fields
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MarshalJSON renders the document as {"id": ..., ...fields}.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Data)+1)
	for k, v := range d.Data {
		out[k] = v
	}
	out["id"] = d.ID
	return json.Marshal(out)
}

package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMetadata is returned when metadata holds a non-scalar value or a
// duplicate key.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Field is a single metadata entry.
type Field struct {
	Key   string
	Value any
}

// Metadata is an ordered mapping of string keys to scalar values
// (nil, bool, string, integers, floats). Key order is preserved through JSON.
type Metadata []Field

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set returns m with key set to v, replacing an existing entry in place or
// appending a new one.
func (m Metadata) Set(key string, v any) Metadata {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, Field{Key: key, Value: v})
}

// Clone returns a copy that shares no backing array with m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	copy(out, m)
	return out
}

// Validate checks that every value is a scalar and keys are unique.
func (m Metadata) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, f := range m {
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidMetadata, f.Key)
		}
		seen[f.Key] = struct{}{}

		if !isScalar(f.Value) {
			return fmt.Errorf("%w: key %q has non-scalar value of type %T", ErrInvalidMetadata, f.Key, f.Value)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes m as a JSON object in key order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata key %q: %w", f.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into m, keeping the document's key order.
// Integral numbers decode to int64, all other numbers to float64.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object", ErrInvalidMetadata)
	}

	out := Metadata{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("%w: expected string key", ErrInvalidMetadata)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		switch v := raw.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				raw = n
			} else {
				f, err := v.Float64()
				if err != nil {
					return fmt.Errorf("%w: key %q: %v", ErrInvalidMetadata, key, err)
				}
				raw = f
			}
		case map[string]any, []any:
			return fmt.Errorf("%w: key %q has non-scalar value", ErrInvalidMetadata, key)
		}

		out = append(out, Field{Key: key, Value: raw})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = out
	return nil
}

package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrInvalidPayload is returned when frame payload bytes cannot be parsed.
var ErrInvalidPayload = errors.New("invalid frame payload")

// Payload is the unit rendered into a frame for a single record.
type Payload struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// MarshalFrame encodes the payloads of one frame. A single payload encodes as a
// JSON object, several as a JSON array. The output is pure ASCII: every
// non-ASCII rune is written as a \u escape so the bytes survive codecs that
// guess character sets.
func MarshalFrame(payloads []Payload) ([]byte, error) {
	var (
		raw []byte
		err error
	)

	switch len(payloads) {
	case 0:
		return nil, fmt.Errorf("%w: no records", ErrInvalidPayload)
	case 1:
		raw, err = json.Marshal(payloads[0])
	default:
		raw, err = json.Marshal(payloads)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding frame payload: %w", err)
	}

	return asciiEscape(raw), nil
}

// UnmarshalFrame decodes the payloads of one frame.
func UnmarshalFrame(data []byte) ([]Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	switch data[0] {
	case '{':
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return []Payload{p}, nil

	case '[':
		var ps []Payload
		if err := json.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if len(ps) == 0 {
			return nil, fmt.Errorf("%w: no records", ErrInvalidPayload)
		}
		return ps, nil

	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrInvalidPayload, data[0])
	}
}

// Find returns the payload for record id.
func Find(payloads []Payload, id int) (Payload, bool) {
	for _, p := range payloads {
		if p.ID == id {
			return p, true
		}
	}
	return Payload{}, false
}

// asciiEscape rewrites non-ASCII runes in JSON output as \u escapes. JSON
// output only carries non-ASCII bytes inside string literals, so the rewrite
// keeps the document valid.
func asciiEscape(b []byte) []byte {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return b
	}

	const hex = "0123456789abcdef"
	out := make([]byte, 0, len(b)+len(b)/2)
	writeUnit := func(u rune) {
		out = append(out, '\\', 'u',
			hex[(u>>12)&0xF], hex[(u>>8)&0xF], hex[(u>>4)&0xF], hex[u&0xF])
	}

	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		switch {
		case r < utf8.RuneSelf:
			out = append(out, byte(r))
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			writeUnit(hi)
			writeUnit(lo)
		default:
			writeUnit(r)
		}
	}
	return out
}

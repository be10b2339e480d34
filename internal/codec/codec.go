// Package codec renders values that JSON cannot represent natively (dates,
// sets, maps with non-string keys, and entity references) as tagged envelope
// objects, and revives them again on decode.
//
// An envelope is a JSON object carrying the discriminator under TagKey plus a
// single payload field:
//
//	{"$type":"Date","date":"2024-01-02T03:04:05Z"}
//	{"$type":"Set","set":["a","b"]}
//	{"$type":"Map","map":[["hp",10]]}
//	{"$type":"Reference","id":"1-abc"}
//
// Struct fields tagged `json:"-"` are not persisted and keep their in-memory
// zero value after decode.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

const TagKey = "$type"

const (
	TagDate      = "Date"
	TagSet       = "Set"
	TagMap       = "Map"
	TagReference = "Reference"
)

var (
	ErrTagMismatch    = errors.New("envelope tag mismatch")
	ErrMissingPayload = errors.New("envelope payload missing")
	ErrNotComparable  = errors.New("value cannot be used as a set element or map key")
)

// readEnvelope parses an envelope object and checks its tag. The payload for
// field is returned raw.
func readEnvelope(data []byte, tag, field string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("reading %s envelope: %w", tag, err)
	}

	var got string
	if raw, ok := obj[TagKey]; ok {
		if err := json.Unmarshal(raw, &got); err != nil {
			return nil, fmt.Errorf("reading %s envelope tag: %w", tag, err)
		}
	}
	if got != tag {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrTagMismatch, tag, got)
	}

	payload, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s envelope has no %q field", ErrMissingPayload, tag, field)
	}
	return payload, nil
}

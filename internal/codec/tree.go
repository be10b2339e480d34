package codec

import (
	"encoding/json"
	"fmt"
	"time"
)

// Marshal encodes v as JSON. Bare time.Time values anywhere inside []any and
// map[string]any trees are written as Date envelopes; Set, Map, Date and Ref
// values write their own envelopes.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(wrap(v))
}

func wrap(v any) any {
	switch t := v.(type) {
	case time.Time:
		return Date{Time: t}
	case *time.Time:
		if t == nil {
			return nil
		}
		return Date{Time: *t}
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = wrap(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = wrap(e)
		}
		return out
	default:
		return v
	}
}

// Unmarshal decodes JSON into a generic tree, reviving envelopes:
// Date becomes time.Time, Set becomes Set[any], Map becomes Map[any, any] and
// Reference becomes Ref. Objects with a missing or unknown tag stay plain
// map[string]any. Numbers decode as float64.
func Unmarshal(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return revive(raw)
}

func revive(v any) (any, error) {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			r, err := revive(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = r
		}
		return out, nil

	case map[string]any:
		if tag, ok := t[TagKey].(string); ok {
			switch tag {
			case TagDate:
				return reviveDate(t)
			case TagSet:
				return reviveSet(t)
			case TagMap:
				return reviveMap(t)
			case TagReference:
				return reviveRef(t)
			}
		}

		out := make(map[string]any, len(t))
		for k, e := range t {
			r, err := revive(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = r
		}
		return out, nil

	default:
		return v, nil
	}
}

func reviveDate(m map[string]any) (any, error) {
	s, ok := m["date"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: Date envelope needs a string \"date\"", ErrMissingPayload)
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return ts, nil
}

func reviveSet(m map[string]any) (any, error) {
	elems, ok := m["set"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Set envelope needs an array \"set\"", ErrMissingPayload)
	}

	out := make(Set[any], len(elems))
	for i, e := range elems {
		r, err := revive(e)
		if err != nil {
			return nil, fmt.Errorf("set element %d: %w", i, err)
		}
		if !isComparable(r) {
			return nil, fmt.Errorf("set element %d: %w", i, ErrNotComparable)
		}
		out[r] = struct{}{}
	}
	return out, nil
}

func reviveMap(m map[string]any) (any, error) {
	pairs, ok := m["map"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Map envelope needs an array \"map\"", ErrMissingPayload)
	}

	out := make(Map[any, any], len(pairs))
	for i, p := range pairs {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("map pair %d: expected [key, value]", i)
		}
		k, err := revive(pair[0])
		if err != nil {
			return nil, fmt.Errorf("map key %d: %w", i, err)
		}
		if !isComparable(k) {
			return nil, fmt.Errorf("map key %d: %w", i, ErrNotComparable)
		}
		v, err := revive(pair[1])
		if err != nil {
			return nil, fmt.Errorf("map value %d: %w", i, err)
		}
		out[k] = v
	}
	return out, nil
}

func reviveRef(m map[string]any) (any, error) {
	id, ok := m["id"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: Reference envelope needs a string \"id\"", ErrMissingPayload)
	}
	return Ref{ID: id}, nil
}

// isComparable reports whether a revived value can be a map key.
func isComparable(v any) bool {
	switch v.(type) {
	case []any, map[string]any, Set[any], Map[any, any]:
		return false
	}
	return true
}

package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Date is a time.Time that persists as a Date envelope.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"$type"`
		Date string `json:"date"`
	}{TagDate, d.UTC().Format(time.RFC3339Nano)})
}

func (d *Date) UnmarshalJSON(b []byte) error {
	payload, err := readEnvelope(b, TagDate, "date")
	if err != nil {
		return err
	}

	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("reading date: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", s, err)
	}

	d.Time = t
	return nil
}

// Ref is a persisted pointer to another entity by id. Decoding a Ref never
// touches the entity table; the id is resolved separately once the referenced
// entity is loaded.
type Ref struct {
	ID string
}

func NewRef(id string) Ref {
	return Ref{ID: id}
}

// IsZero reports whether the reference points nowhere.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

func (r Ref) String() string {
	return r.ID
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"$type"`
		ID   string `json:"id"`
	}{TagReference, r.ID})
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	payload, err := readEnvelope(b, TagReference, "id")
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, &r.ID)
}

// Set is an unordered collection that persists as a Set envelope. Elements are
// written in a stable order so files do not churn between saves.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

func (s Set[T]) Add(v T) {
	s[v] = struct{}{}
}

func (s Set[T]) Remove(v T) {
	delete(s, v)
}

func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Values returns the elements in no particular order.
func (s Set[T]) Values() []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

func (s Set[T]) MarshalJSON() ([]byte, error) {
	elems := make([]json.RawMessage, 0, len(s))
	for v := range s {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshalling set element: %w", err)
		}
		elems = append(elems, b)
	}
	slices.SortFunc(elems, func(a, b json.RawMessage) int {
		return bytes.Compare(a, b)
	})

	return json.Marshal(struct {
		Type string            `json:"$type"`
		Set  []json.RawMessage `json:"set"`
	}{TagSet, elems})
}

func (s *Set[T]) UnmarshalJSON(b []byte) error {
	payload, err := readEnvelope(b, TagSet, "set")
	if err != nil {
		return err
	}

	var elems []T
	if err := json.Unmarshal(payload, &elems); err != nil {
		return fmt.Errorf("reading set elements: %w", err)
	}

	*s = NewSet(elems...)
	return nil
}

// Map is a map whose keys need not be strings. It persists as a Map envelope
// holding [key, value] pairs ordered by encoded key.
type Map[K comparable, V any] map[K]V

func (m Map[K, V]) MarshalJSON() ([]byte, error) {
	pairs := make([][2]json.RawMessage, 0, len(m))
	for k, v := range m {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshalling map key: %w", err)
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshalling map value for %s: %w", kb, err)
		}
		pairs = append(pairs, [2]json.RawMessage{kb, vb})
	}
	slices.SortFunc(pairs, func(a, b [2]json.RawMessage) int {
		return bytes.Compare(a[0], b[0])
	})

	return json.Marshal(struct {
		Type string               `json:"$type"`
		Map  [][2]json.RawMessage `json:"map"`
	}{TagMap, pairs})
}

func (m *Map[K, V]) UnmarshalJSON(b []byte) error {
	payload, err := readEnvelope(b, TagMap, "map")
	if err != nil {
		return err
	}

	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(payload, &pairs); err != nil {
		return fmt.Errorf("reading map pairs: %w", err)
	}

	out := make(Map[K, V], len(pairs))
	for i, p := range pairs {
		var k K
		if err := json.Unmarshal(p[0], &k); err != nil {
			return fmt.Errorf("reading map key %d: %w", i, err)
		}
		var v V
		if err := json.Unmarshal(p[1], &v); err != nil {
			return fmt.Errorf("reading map value %d: %w", i, err)
		}
		out[k] = v
	}

	*m = out
	return nil
}

package entity

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
)

// slot is the shared cell every handle to one loaded entity points at. It is
// emptied when the entity is evicted or deleted, which invalidates all of
// those handles at once. A reload creates a new slot, so old handles stay
// invalid and must be re-acquired by id.
type slot struct {
	mu     sync.RWMutex
	entity Entity
}

func (s *slot) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity = nil
}

// Handle is the caller-facing reference to an entity. It never panics on a
// stale target: Get and Do report ErrInvalidHandle and log the call site, so
// one stale reference fails a single command rather than the whole server.
//
// The zero Handle and a nil *Handle are both invalid.
type Handle struct {
	id   string
	slot *slot
}

// Invalid returns a handle for id that points at nothing.
func Invalid(id string) *Handle {
	return &Handle{id: id}
}

// ID returns the id the handle was created for, valid or not.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// peek returns the live entity without logging.
func (h *Handle) peek() (Entity, bool) {
	if h == nil || h.slot == nil {
		return nil, false
	}

	h.slot.mu.RLock()
	e := h.slot.entity
	h.slot.mu.RUnlock()

	if e == nil || e.ID() != h.id {
		return nil, false
	}
	return e, true
}

// IsValid reports whether the handle still points at a live entity. It never
// logs and is the way to check a handle before using it.
func (h *Handle) IsValid() bool {
	_, ok := h.peek()
	return ok
}

// Get returns the live entity. On an invalid handle it logs the caller's
// stack and returns ErrInvalidHandle.
func (h *Handle) Get() (Entity, error) {
	e, ok := h.peek()
	if !ok {
		return nil, h.invalidAccess("get")
	}
	return e, nil
}

// MustGet returns the live entity and panics on an invalid handle. Only use
// it on a handle the caller just created.
func (h *Handle) MustGet() Entity {
	e, err := h.Get()
	if err != nil {
		panic(err)
	}
	return e
}

// Do runs fn against the live entity. On an invalid handle fn is skipped and
// ErrInvalidHandle is returned.
func (h *Handle) Do(fn func(Entity) error) error {
	e, err := h.Get()
	if err != nil {
		return err
	}
	return fn(e)
}

func (h *Handle) invalidAccess(op string) error {
	id := h.ID()
	attrs := []any{"id", id, "op", op, "stack", string(debug.Stack())}

	if h != nil && h.slot != nil {
		h.slot.mu.RLock()
		e := h.slot.entity
		h.slot.mu.RUnlock()
		if e != nil {
			// The slot holds an entity with a different id.
			attrs = append(attrs, "live_id", e.ID())
			slog.Error("entity handle is corrupt", attrs...)
			return fmt.Errorf("%w: %s", ErrInvalidHandle, id)
		}
	}

	slog.Error("access through invalid entity handle", attrs...)
	return fmt.Errorf("%w: %s", ErrInvalidHandle, id)
}

func (h *Handle) String() string {
	if h.IsValid() {
		return h.ID()
	}
	return h.ID() + " (invalid)"
}

// As returns the live entity as T. An invalid handle is an ordinary error. A
// live entity of another type panics with *CastError: the id is bound to the
// wrong kind and the entity graph cannot be trusted.
func As[T Entity](h *Handle) (T, error) {
	var zero T

	e, err := h.Get()
	if err != nil {
		return zero, err
	}

	t, ok := e.(T)
	if !ok {
		cerr := &CastError{
			ID:   e.ID(),
			Kind: e.Kind(),
			Want: reflect.TypeFor[T]().String(),
		}
		slog.Error("entity cast mismatch", "id", cerr.ID, "kind", cerr.Kind, "want", cerr.Want, "stack", string(debug.Stack()))
		panic(cerr)
	}
	return t, nil
}

// Is reports whether the handle is live and its entity is a T. It never
// panics or logs.
func Is[T Entity](h *Handle) bool {
	_, ok := TryAs[T](h)
	return ok
}

// TryAs returns the live entity as T in one step. It reports false, without
// logging or panicking, when the handle is invalid or the entity is some
// other type. Use it when walking handles that may go stale underneath.
func TryAs[T Entity](h *Handle) (T, bool) {
	e, ok := h.peek()
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := e.(T)
	return t, ok
}

// MustAs is As for handles known to be live, such as one just returned by
// Create. It panics on an invalid handle.
func MustAs[T Entity](h *Handle) T {
	t, err := As[T](h)
	if err != nil {
		panic(err)
	}
	return t
}

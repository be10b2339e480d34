package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/storage"
)

// Insert puts child into parent, taking it out of whatever container held it
// before. The previous container is loaded if needed so it never keeps a
// stale reference. Neither entity is saved. The caller holds the world lock.
func (m *Manager) Insert(ctx context.Context, parent *Handle, child *Handle) error {
	p, err := parent.Get()
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", parent.ID(), err)
	}
	pc, ok := p.(Container)
	if !ok {
		return fmt.Errorf("inserting into %s: %w", p.ID(), ErrNotContainer)
	}
	c, err := child.Get()
	if err != nil {
		return fmt.Errorf("inserting %s into %s: %w", child.ID(), p.ID(), err)
	}

	if m.isAncestor(c.ID(), p) {
		return fmt.Errorf("inserting %s into %s: %w", c.ID(), p.ID(), ErrContainmentLoop)
	}

	cb := c.base()
	if oldID := cb.ParentID(); oldID != "" && oldID != p.ID() {
		old, err := m.Load(ctx, oldID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// The old container no longer exists; nothing to detach from.
		case err != nil:
			return fmt.Errorf("detaching %s from %s: %w", c.ID(), oldID, err)
		default:
			if oc, ok := TryAs[Container](old); ok {
				oc.contents().remove(c.ID())
			}
		}
	}

	pc.contents().add(c.ID())
	ref := codec.NewRef(p.ID())
	cb.Parent = &ref
	return nil
}

// isAncestor reports whether id is p or one of p's loaded containers.
func (m *Manager) isAncestor(id string, p Entity) bool {
	seen := map[string]bool{}
	for e := p; e != nil; {
		if e.ID() == id {
			return true
		}
		if seen[e.ID()] {
			return false
		}
		seen[e.ID()] = true

		next, ok := m.Lookup(e.base().ParentID()).peek()
		if !ok {
			return false
		}
		e = next
	}
	return false
}

// Remove takes child out of parent. Removing something parent does not hold
// returns ErrNotContained. The caller holds the world lock.
func (m *Manager) Remove(parent *Handle, child *Handle) error {
	p, err := parent.Get()
	if err != nil {
		return fmt.Errorf("removing from %s: %w", parent.ID(), err)
	}
	pc, ok := p.(Container)
	if !ok {
		return fmt.Errorf("removing from %s: %w", p.ID(), ErrNotContainer)
	}

	if !pc.contents().remove(child.ID()) {
		return fmt.Errorf("removing %s from %s: %w", child.ID(), p.ID(), ErrNotContained)
	}

	if c, ok := child.peek(); ok && c.base().ParentID() == p.ID() {
		c.base().Parent = nil
	}
	return nil
}

// Parent returns a handle to the container holding h. The handle is invalid
// if h has no container or the container is not loaded.
func (m *Manager) Parent(h *Handle) *Handle {
	e, err := h.Get()
	if err != nil {
		return Invalid("")
	}
	return m.Lookup(e.base().ParentID())
}

// Children returns handles to everything h directly holds, in id order.
// Handles to children that are not loaded are invalid.
func (m *Manager) Children(h *Handle) []*Handle {
	e, err := h.Get()
	if err != nil {
		return nil
	}
	c, ok := e.(Container)
	if !ok {
		return nil
	}

	ids := c.contents().ChildIDs()
	out := make([]*Handle, len(ids))
	for i, id := range ids {
		out[i] = m.Lookup(id)
	}
	return out
}

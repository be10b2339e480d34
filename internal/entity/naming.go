package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/pixil98/go-mudcore/internal/names"
)

// Named is implemented by kinds whose name must be unique within a category.
type Named interface {
	Entity
	Name() string
	SetName(string)
	NameCategory() names.Category
}

// Claim gives h the name held by a soft reservation, committing the lock to
// h's id and releasing any name h had before. On failure the reservation is
// still held and the old name is reclaimed if possible.
func (m *Manager) Claim(ctx context.Context, h *Handle, soft *names.SoftLock) error {
	n, err := named(h)
	if err != nil {
		return err
	}
	if soft.Category() != n.NameCategory() {
		return fmt.Errorf("naming %s: reservation is for %s, not %s", n.ID(), soft.Category(), n.NameCategory())
	}

	old := n.Name()
	if old != "" {
		if err := m.names.Release(ctx, old, n.NameCategory()); err != nil && !errors.Is(err, names.ErrNotLocked) {
			return fmt.Errorf("naming %s: %w", n.ID(), err)
		}
	}

	if err := soft.Commit(ctx, n.ID()); err != nil {
		if old != "" {
			if restoreErr := m.names.Commit(ctx, n.ID(), old, n.NameCategory()); restoreErr != nil {
				n.SetName("")
				return fmt.Errorf("naming %s: %w", n.ID(), errors.Join(err, restoreErr))
			}
		}
		return fmt.Errorf("naming %s: %w", n.ID(), err)
	}

	n.SetName(soft.Name())
	return nil
}

// Rename moves h's unique name to name. An entity with no name yet simply
// claims it. The old lock is released before the new one is taken; see
// names.Registry.Rename for what happens when that fails.
func (m *Manager) Rename(ctx context.Context, h *Handle, name string) error {
	n, err := named(h)
	if err != nil {
		return err
	}

	old := n.Name()
	if old == "" {
		err = m.names.Commit(ctx, n.ID(), name, n.NameCategory())
	} else {
		err = m.names.Rename(ctx, n.ID(), old, name, n.NameCategory())
	}
	if err != nil {
		return fmt.Errorf("naming %s: %w", n.ID(), err)
	}

	n.SetName(name)
	return nil
}

// FindByName loads the entity holding name in category c.
func (m *Manager) FindByName(ctx context.Context, name string, c names.Category) (*Handle, error) {
	id, err := m.names.Owner(name, c)
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, id)
}

func named(h *Handle) (Named, error) {
	e, err := h.Get()
	if err != nil {
		return nil, err
	}
	n, ok := e.(Named)
	if !ok {
		return nil, fmt.Errorf("%s is a %s: %w", e.ID(), e.Kind(), ErrNotNamed)
	}
	return n, nil
}

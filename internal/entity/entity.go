package entity

import (
	"fmt"
	"slices"

	"github.com/pixil98/go-mudcore/internal/codec"
)

// Entity is an addressable, persistent game object. Implementations embed
// Base; their exported fields, as encoded by package codec, are what gets
// saved.
type Entity interface {
	ID() string
	Kind() string
	base() *Base
}

// Validator is implemented by kinds that can check their own decoded state.
// Load refuses an entity whose Validate fails.
type Validator interface {
	Validate() error
}

// Factory builds an empty entity of one kind, with any non-persistent fields
// at their defaults.
type Factory func() Entity

// Kinds maps a kind tag to its constructor. It is the closed set of types a
// Manager can create or revive from disk.
type Kinds map[string]Factory

// Base carries the identity every entity shares. The id and kind live in the
// record envelope rather than the entity's own fields.
type Base struct {
	id   string
	kind string

	Parent *codec.Ref `json:"parent,omitempty"`
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) Kind() string {
	return b.kind
}

func (b *Base) base() *Base {
	return b
}

// ParentID returns the id of the containing entity, or "" if there is none.
func (b *Base) ParentID() string {
	if b.Parent == nil {
		return ""
	}
	return b.Parent.ID
}

// bind sets the identity of e. The id can only ever be set once.
func bind(e Entity, id string, kind string) error {
	b := e.base()
	if b.id != "" && b.id != id {
		return fmt.Errorf("%w: %s cannot become %s", ErrIDAlreadySet, b.id, id)
	}
	b.id = id
	b.kind = kind
	return nil
}

// Container is an entity that holds other entities.
type Container interface {
	Entity
	contents() *Contents
}

// Contents is embedded by container kinds. A child appears in exactly one
// container's Contents at a time.
type Contents struct {
	Children codec.Set[codec.Ref] `json:"children"`
}

func (c *Contents) contents() *Contents {
	return c
}

// Has reports whether id is a direct child.
func (c *Contents) Has(id string) bool {
	return c.Children.Has(codec.NewRef(id))
}

// ChildIDs returns the ids of all direct children, sorted.
func (c *Contents) ChildIDs() []string {
	out := make([]string, 0, len(c.Children))
	for r := range c.Children {
		out = append(out, r.ID)
	}
	slices.Sort(out)
	return out
}

func (c *Contents) add(id string) {
	if c.Children == nil {
		c.Children = codec.NewSet[codec.Ref]()
	}
	c.Children.Add(codec.NewRef(id))
}

func (c *Contents) remove(id string) bool {
	ref := codec.NewRef(id)
	if !c.Children.Has(ref) {
		return false
	}
	c.Children.Remove(ref)
	return true
}

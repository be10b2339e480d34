package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/names"
)

// Place is the shared shape of every location in the containment tree.
type Place struct {
	entity.Base
	entity.Contents

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (p *Place) Validate() error {
	el := errors.NewErrorList()

	if p.Title == "" {
		el.Add(fmt.Errorf("title is required"))
	}

	return el.Err()
}

// World is the root of the containment tree.
type World struct {
	Place
}

// Realm groups areas. Its name is unique among locations.
type Realm struct {
	Place

	LocName string `json:"name,omitempty"`
}

func (r *Realm) Name() string {
	return r.LocName
}

func (r *Realm) SetName(n string) {
	r.LocName = n
}

func (r *Realm) NameCategory() names.Category {
	return names.Locations
}

// Area groups rooms. Its name is unique among locations.
type Area struct {
	Place

	LocName string `json:"name,omitempty"`
}

func (a *Area) Name() string {
	return a.LocName
}

func (a *Area) SetName(n string) {
	a.LocName = n
}

func (a *Area) NameCategory() names.Category {
	return names.Locations
}

// Room is where characters and items are.
type Room struct {
	Place

	// Exits maps a direction to the room it leads to.
	Exits codec.Map[string, codec.Ref] `json:"exits"`
}

// Exit returns the room reached by going dir.
func (r *Room) Exit(dir string) (codec.Ref, bool) {
	ref, ok := r.Exits[dir]
	return ref, ok && !ref.IsZero()
}

// SetExit links dir to the room with id to. An empty id removes the exit.
func (r *Room) SetExit(dir string, to string) {
	if to == "" {
		delete(r.Exits, dir)
		return
	}
	if r.Exits == nil {
		r.Exits = codec.Map[string, codec.Ref]{}
	}
	r.Exits[dir] = codec.NewRef(to)
}

func (r *Room) Validate() error {
	el := errors.NewErrorList()

	el.Add(r.Place.Validate())
	for dir, ref := range r.Exits {
		if ref.IsZero() {
			el.Add(fmt.Errorf("exit %s: room id is required", dir))
		}
	}

	return el.Err()
}

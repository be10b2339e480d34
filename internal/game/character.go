package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/names"
)

const (
	FlagNewbie  = "newbie"
	FlagBuilder = "builder"
)

const defaultTitle = "the Newbie"

// Character represents a player character in the game. What it carries is
// held in its Contents.
type Character struct {
	entity.Base
	entity.Contents

	// CharName is the character's display name
	CharName string `json:"name"`

	// Title is displayed after the character's name (e.g., "Bob the Brave")
	Title string `json:"title,omitempty"`

	// Description is shown when a player looks at this character
	Description string `json:"description,omitempty"`

	CreatedAt codec.Date             `json:"created_at"`
	Flags     codec.Set[string]      `json:"flags"`
	Stats     codec.Map[string, int] `json:"stats"`
	Account   codec.Ref              `json:"account"`

	// LastRoom is where the character was when it last left the game.
	LastRoom codec.Ref `json:"last_room"`

	// Link reaches whoever is playing the character. It is never saved and
	// is Offline after a load.
	Link Link `json:"-"`
}

func (c *Character) Name() string {
	return c.CharName
}

func (c *Character) SetName(n string) {
	c.CharName = n
}

func (c *Character) NameCategory() names.Category {
	return names.Characters
}

// DisplayName returns the name followed by the title, if any.
func (c *Character) DisplayName() string {
	if c.Title == "" {
		return c.CharName
	}
	return c.CharName + " " + c.Title
}

// Send delivers text to the character's player.
func (c *Character) Send(text string) error {
	if c.Link == nil {
		return nil
	}
	return c.Link.Send(text)
}

// Online reports whether somebody is playing the character.
func (c *Character) Online() bool {
	return c.Link != nil && c.Link != Offline
}

func (c *Character) Stat(name string) int {
	return c.Stats[name]
}

func (c *Character) SetStat(name string, v int) {
	if c.Stats == nil {
		c.Stats = codec.Map[string, int]{}
	}
	c.Stats[name] = v
}

func (c *Character) HasFlag(f string) bool {
	return c.Flags.Has(f)
}

func (c *Character) SetFlag(f string, on bool) {
	if c.Flags == nil {
		c.Flags = codec.NewSet[string]()
	}
	if on {
		c.Flags.Add(f)
	} else {
		c.Flags.Remove(f)
	}
}

func (c *Character) Validate() error {
	el := errors.NewErrorList()

	if c.CharName == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if c.Account.IsZero() {
		el.Add(fmt.Errorf("account is required"))
	}

	return el.Err()
}

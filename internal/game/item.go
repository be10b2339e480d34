package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudcore/internal/entity"
)

// Item is a portable object. It lives in a room or in a character's
// inventory.
type Item struct {
	entity.Base

	ItemName    string `json:"name"`
	Description string `json:"description,omitempty"`
	Weight      int    `json:"weight,omitempty"`
}

func (i *Item) Validate() error {
	el := errors.NewErrorList()

	if i.ItemName == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if i.Weight < 0 {
		el.Add(fmt.Errorf("weight must not be negative"))
	}

	return el.Err()
}

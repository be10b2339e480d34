package command

import (
	"fmt"

	"github.com/pixil98/go-mudcore/internal/storage"
)

type WorldConfig struct {
	// StartRoom is the id of the room new characters enter. If empty, a new
	// world is created on every start and its room id is logged.
	StartRoom string `json:"start_room"`
}

func (c *WorldConfig) validate() error {
	if c.StartRoom != "" && !storage.ValidID(c.StartRoom) {
		return fmt.Errorf("world: start_room %q is not a valid id", c.StartRoom)
	}
	return nil
}

package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type Config struct {
	Storage   StorageConfig    `json:"storage"`
	Nats      NatsConfig       `json:"nats"`
	Listeners []ListenerConfig `json:"listeners"`
	World     WorldConfig      `json:"world"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.World.validate())

	if len(c.Listeners) == 0 {
		el.Add(fmt.Errorf("at least one listener is required"))
	}
	ports := map[uint16]bool{}
	for i, l := range c.Listeners {
		if err := l.validate(); err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
		if ports[l.Port] {
			el.Add(fmt.Errorf("listener %d: port %d is used more than once", i, l.Port))
		}
		ports[l.Port] = true
	}

	return el.Err()
}

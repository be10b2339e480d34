package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-mudcore/internal/driver"
	"github.com/pixil98/go-mudcore/internal/game"
	"github.com/pixil98/go-mudcore/internal/listener"
	"github.com/pixil98/go-mudcore/internal/session"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	entities, err := cfg.Storage.BuildEntityManager(game.Kinds())
	if err != nil {
		return nil, err
	}

	startRoom, err := game.EnsureWorld(context.Background(), entities, cfg.World.StartRoom)
	if err != nil {
		return nil, fmt.Errorf("preparing world: %w", err)
	}

	nats, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	sessions := session.NewManager(entities, nats, startRoom.ID())
	cm := listener.NewConnectionManager(sessions)

	// Create Listeners
	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		w, err := l.BuildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = w
	}

	// Autosave runs on the driver tick
	d := driver.NewMudDriver([]driver.Manager{entities}, driver.WithTickLength(cfg.Storage.autosaveInterval()))

	return service.WorkerList{
		"driver":    d,
		"nats":      nats,
		"listeners": &listeners,
	}, nil
}

package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/ids"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-mudcore/internal/storage"
)

const defaultAutosaveInterval = time.Minute

type StorageConfig struct {
	EntitiesDir      string `json:"entities_dir"`
	NamesDir         string `json:"names_dir"`
	AutosaveInterval string `json:"autosave_interval"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	if c.EntitiesDir == "" {
		el.Add(fmt.Errorf("storage: entities_dir is required"))
	}
	if c.NamesDir == "" {
		el.Add(fmt.Errorf("storage: names_dir is required"))
	}
	if c.EntitiesDir != "" && c.EntitiesDir == c.NamesDir {
		el.Add(fmt.Errorf("storage: entities_dir and names_dir must differ"))
	}

	if c.AutosaveInterval != "" {
		d, err := time.ParseDuration(c.AutosaveInterval)
		if err != nil {
			el.Add(fmt.Errorf("storage: parsing autosave_interval: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("storage: autosave_interval must be at least 1 second"))
		}
	}

	return el.Err()
}

func (c *StorageConfig) autosaveInterval() time.Duration {
	d, err := time.ParseDuration(c.AutosaveInterval)
	if err != nil {
		return defaultAutosaveInterval
	}
	return d
}

// BuildEntityManager opens the entity store and name registry and returns a
// manager that revives entities with kinds. Both share one save queue.
func (c *StorageConfig) BuildEntityManager(kinds entity.Kinds) (*entity.Manager, error) {
	queue := storage.NewSaveQueue()

	store, err := storage.NewFileStore(c.EntitiesDir, queue)
	if err != nil {
		return nil, fmt.Errorf("creating entity store: %w", err)
	}
	registry, err := names.NewRegistry(c.NamesDir, queue)
	if err != nil {
		return nil, fmt.Errorf("creating name registry: %w", err)
	}

	return entity.NewManager(ids.NewAllocator(time.Now()), store, registry, kinds), nil
}

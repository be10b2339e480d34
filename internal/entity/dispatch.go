package entity

import (
	"context"
	"fmt"
	"strings"
)

// CommandFunc handles one command issued by or against an entity. The
// returned text is delivered to whoever issued the command.
type CommandFunc func(ctx context.Context, m *Manager, args []string) (string, error)

// Commander is implemented by entities that expose handlers by name.
type Commander interface {
	Entity
	Command(name string) (CommandFunc, bool)
}

// Dispatch looks up the handler called name on h's entity and runs it while
// holding the world lock, so commands from different connections never
// interleave. A stale handle fails with ErrInvalidHandle instead of reaching
// the handler.
func (m *Manager) Dispatch(ctx context.Context, h *Handle, name string, args []string) (string, error) {
	m.world.Lock()
	defer m.world.Unlock()

	e, err := h.Get()
	if err != nil {
		return "", err
	}

	c, ok := e.(Commander)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	fn, ok := c.Command(strings.ToLower(name))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	return fn(ctx, m, args)
}

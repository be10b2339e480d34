package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHandle   = errors.New("entity handle is no longer valid")
	ErrUnknownKind     = errors.New("unknown entity kind")
	ErrIDAlreadySet    = errors.New("entity id already set")
	ErrNotContainer    = errors.New("entity cannot hold other entities")
	ErrNotContained    = errors.New("entity is not in that container")
	ErrContainmentLoop = errors.New("entity cannot contain itself")
	ErrNotEmpty        = errors.New("container still holds entities")
	ErrNotNamed        = errors.New("entity kind has no unique name")
	ErrUnknownCommand  = errors.New("unknown command")
)

// CastError is the panic value raised when a live entity is not the type a
// caller asked for. An id that resolves to the wrong kind means the entity
// table can no longer be trusted.
type CastError struct {
	ID   string
	Kind string
	Want string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("entity %s is a %s, not %s", e.ID, e.Kind, e.Want)
}

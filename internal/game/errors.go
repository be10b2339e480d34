package game

import "errors"

var (
	ErrNoLocation  = errors.New("character is not in a room")
	ErrBadPassword = errors.New("incorrect password")
)

// UserError represents an error that should be displayed to the user.
// These are not system failures - just invalid input or usage.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// NewUserError creates a user-facing error.
func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}

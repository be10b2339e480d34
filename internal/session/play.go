package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pixil98/go-mudcore/internal/display"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/game"
)

const (
	promptText     = "> "
	genericFailure = "Something went wrong with your request."
)

// play runs the command loop until the player quits, the connection drops
// or another connection takes the character over.
func (s *Session) play(ctx context.Context) error {
	if err := s.exec(ctx, "look", nil); err != nil {
		return err
	}
	if err := s.write(promptText); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.kicked:
			_ = s.writeLine("\nAnother connection has taken over your session.")
			return ErrTakenOver

		case msg := <-s.msgs:
			if err := s.write("\n" + display.Wrap(string(msg)) + "\n" + promptText); err != nil {
				return err
			}

		case line, ok := <-s.lines:
			if !ok {
				return s.readErr
			}

			parts := strings.Fields(line)
			if len(parts) == 0 {
				if err := s.write(promptText); err != nil {
					return err
				}
				continue
			}

			if strings.EqualFold(parts[0], "quit") {
				return s.writeLine("Goodbye!")
			}

			if err := s.exec(ctx, parts[0], parts[1:]); err != nil {
				return err
			}
			if err := s.write(promptText); err != nil {
				return err
			}
		}
	}
}

// exec runs one command and writes its outcome. Only failures that leave the
// session unusable are returned.
func (s *Session) exec(ctx context.Context, name string, args []string) error {
	out, err := s.mgr.entities.Dispatch(ctx, s.char, name, args)

	var userErr *game.UserError
	switch {
	case err == nil:
		if out == "" {
			return nil
		}
		return s.writeLine(display.Wrap(out))

	case errors.As(err, &userErr):
		return s.writeLine(userErr.Message)

	case errors.Is(err, entity.ErrUnknownCommand):
		return s.writeLine("Huh?!")

	case errors.Is(err, entity.ErrInvalidHandle):
		_ = s.writeLine(genericFailure)
		return err

	default:
		slog.ErrorContext(ctx, "command failed", "conn", s.id, "character", s.char.ID(), "command", name, "error", err)
		return s.writeLine(genericFailure)
	}
}

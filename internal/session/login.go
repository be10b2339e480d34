package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/game"
	"github.com/pixil98/go-mudcore/internal/names"
)

const maxPasswordTries = 3

const banner = "Welcome to the realm!\n"

func (s *Session) login(ctx context.Context) error {
	if err := s.write(banner); err != nil {
		return err
	}

	for {
		name, err := s.prompt(ctx, "By what name do you wish to be known? ", WithValidator(
			func(str string) (bool, string) {
				if err := names.Accounts.Validate(str); err != nil {
					return false, "Invalid name, please try another.\n"
				}
				return true, ""
			},
		))
		if err != nil {
			return err
		}

		reg := s.mgr.entities.Names()
		id, err := reg.Owner(name, names.Accounts)
		switch {
		case err == nil:
			return s.existing(ctx, name, id)
		case errors.Is(err, names.ErrNotLocked):
			ok, err := s.create(ctx, name)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		default:
			return err
		}
	}
}

func (s *Session) existing(ctx context.Context, name string, accountID string) error {
	em := s.mgr.entities

	h, err := em.Load(ctx, accountID)
	if err != nil {
		return fmt.Errorf("loading account %s: %w", accountID, err)
	}
	var hash string
	err = em.View(func() error {
		acct, err := entity.As[*game.Account](h)
		if err != nil {
			return err
		}
		hash = acct.PasswordHash
		return nil
	})
	if err != nil {
		return err
	}

	_, err = s.prompt(ctx, "Password: ", WithMaxTries(maxPasswordTries), WithValidator(
		func(str string) (bool, string) {
			if game.CheckPasswordHash(hash, str) != nil {
				return false, "Wrong password.\n"
			}
			return true, ""
		},
	))
	if errors.Is(err, ErrTooManyTries) {
		slog.WarnContext(ctx, "too many failed logins", "account", accountID, "conn", s.id)
		_ = s.writeLine("Too many failed attempts.")
	}
	if err != nil {
		return err
	}
	s.account = h

	charID, err := em.Names().Owner(name, names.Characters)
	if err != nil {
		return fmt.Errorf("finding character for account %s: %w", accountID, err)
	}
	return s.mgr.enter(ctx, s, charID)
}

// create walks a new player through making an account and character. It
// returns false if the player backed out and should be asked for a name
// again.
func (s *Session) create(ctx context.Context, name string) (bool, error) {
	reg := s.mgr.entities.Names()

	acctSoft, err := reg.ReserveSoft(name, names.Accounts)
	if errors.Is(err, names.ErrNameTaken) {
		return false, s.writeLine("That name is already taken, please try another.")
	}
	if err != nil {
		return false, err
	}
	defer acctSoft.Release()

	charSoft, err := reg.ReserveSoft(name, names.Characters)
	if errors.Is(err, names.ErrNameTaken) {
		return false, s.writeLine("That name is already taken, please try another.")
	}
	if err != nil {
		return false, err
	}
	defer charSoft.Release()

	ok, err := s.promptYN(ctx, fmt.Sprintf("Did I get that right, %s (Y/N)? ", name))
	if err != nil || !ok {
		return false, err
	}

	password, err := s.newPassword(ctx, name)
	if err != nil {
		return false, err
	}

	var acct, char *entity.Handle
	em := s.mgr.entities
	err = em.Update(func() error {
		var err error
		acct, err = game.NewAccount(ctx, em, acctSoft, password)
		if err != nil {
			return fmt.Errorf("creating account: %w", err)
		}
		char, err = game.NewCharacter(ctx, em, charSoft, acct)
		if err != nil {
			if derr := em.Delete(ctx, acct); derr != nil {
				slog.ErrorContext(ctx, "removing half created account", "account", acct.ID(), "error", derr)
			}
			return fmt.Errorf("creating character: %w", err)
		}

		if err := em.Save(ctx, acct); err != nil {
			return err
		}
		return em.Save(ctx, char)
	})
	if err != nil {
		return false, err
	}
	s.account = acct

	slog.InfoContext(ctx, "new character created", "name", name, "character", char.ID(), "account", acct.ID())
	return true, s.mgr.enter(ctx, s, char.ID())
}

func (s *Session) newPassword(ctx context.Context, name string) (string, error) {
	for {
		passOne, err := s.prompt(ctx, fmt.Sprintf("Give me a password for %s: ", name), WithValidator(
			func(str string) (bool, string) {
				if len(str) < 4 || strings.EqualFold(str, name) {
					return false, "Illegal password.\n"
				}
				return true, ""
			},
		))
		if err != nil {
			return "", err
		}

		passTwo, err := s.prompt(ctx, "Please retype password: ")
		if err != nil {
			return "", err
		}

		if passOne != passTwo {
			if err := s.writeLine("Passwords don't match... start over."); err != nil {
				return "", err
			}
			continue
		}

		return passOne, nil
	}
}

package session

import (
	"context"
	"errors"
	"strings"
)

var ErrTooManyTries = errors.New("too many tries")

type promptValidator func(string) (bool, string)

type promptConfig struct {
	tries     int
	validator promptValidator
}

type promptOption func(*promptConfig)

func WithValidator(v promptValidator) promptOption {
	return func(cfg *promptConfig) {
		cfg.validator = v
	}
}

func WithMaxTries(i int) promptOption {
	return func(cfg *promptConfig) {
		cfg.tries = i
	}
}

// prompt writes the prompt text and reads one line. With a validator the
// question is repeated until the answer passes or the tries run out.
func (s *Session) prompt(ctx context.Context, prompt string, opts ...promptOption) (string, error) {
	config := &promptConfig{}
	for _, opt := range opts {
		opt(config)
	}

	tries := 0
	for {
		if err := s.write(prompt); err != nil {
			return "", err
		}

		input, err := s.readLine(ctx)
		if err != nil {
			return "", err
		}
		input = strings.TrimSpace(input)

		if config.validator != nil {
			ok, msg := config.validator(input)
			if !ok {
				if err := s.write(msg); err != nil {
					return "", err
				}

				tries++
				if config.tries > 0 && config.tries == tries {
					return "", ErrTooManyTries
				}

				continue
			}
		}

		return input, nil
	}
}

func (s *Session) promptYN(ctx context.Context, prompt string) (bool, error) {
	str, err := s.prompt(ctx, prompt, WithValidator(
		func(str string) (bool, string) {
			switch strings.ToLower(str) {
			case "y", "yes", "n", "no":
				return true, ""
			default:
				return false, "Please type Yes or No.\n"
			}
		},
	))
	if err != nil {
		return false, err
	}

	switch strings.ToLower(str) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

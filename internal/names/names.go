// Package names guarantees that a name is held by at most one entity per
// category. Durable claims are small lock files at <dir>/<category>/<key>.json
// holding the owner's id; soft locks are in-memory reservations covering the
// window between a player proposing a name and the owning entity existing.
package names

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

type Category string

const (
	Accounts   Category = "accounts"
	Characters Category = "characters"
	Locations  Category = "locations"
)

var Categories = []Category{Accounts, Characters, Locations}

const (
	minNameLength     = 2
	maxNameLength     = 20
	maxLocationLength = 40
)

var (
	ErrNameTaken       = errors.New("name is taken")
	ErrNotLocked       = errors.New("name is not locked")
	ErrInvalidName     = errors.New("invalid name")
	ErrUnknownCategory = errors.New("unknown name category")
)

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Validate checks that name is acceptable in category c. Account and
// character names are letters only; location names may also hold digits,
// spaces, hyphens and apostrophes.
func (c Category) Validate(name string) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}

	maxLen := maxNameLength
	if c == Locations {
		maxLen = maxLocationLength
	}

	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxLen {
		return fmt.Errorf("%w: must be %d to %d characters", ErrInvalidName, minNameLength, maxLen)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: leading or trailing space", ErrInvalidName)
	}

	for _, r := range name {
		if unicode.IsLetter(r) {
			continue
		}
		if c == Locations && (unicode.IsDigit(r) || r == ' ' || r == '-' || r == '\'') {
			continue
		}
		return fmt.Errorf("%w: %q is not allowed", ErrInvalidName, r)
	}

	return nil
}

// Key returns the case-folded form of name used to detect collisions, so
// "Rahman" and "RAHMAN" are the same claim.
func Key(name string) string {
	k := cases.Fold().String(name)
	k = strings.ReplaceAll(k, " ", "_")
	return strings.ReplaceAll(k, "'", "")
}

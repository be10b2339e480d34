package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/names"
	"golang.org/x/crypto/bcrypt"
)

// passwordCost is the bcrypt work factor for new password hashes.
var passwordCost = bcrypt.DefaultCost

// Account is the login identity. It owns one or more characters.
type Account struct {
	entity.Base

	AccountName  string               `json:"name"`
	PasswordHash string               `json:"password_hash"`
	CreatedAt    codec.Date           `json:"created_at"`
	Characters   codec.Set[codec.Ref] `json:"characters"`
}

func (a *Account) Name() string {
	return a.AccountName
}

func (a *Account) SetName(n string) {
	a.AccountName = n
}

func (a *Account) NameCategory() names.Category {
	return names.Accounts
}

// SetPassword replaces the stored hash with one for pw.
func (a *Account) SetPassword(pw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), passwordCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword returns ErrBadPassword unless pw matches the stored hash.
func (a *Account) CheckPassword(pw string) error {
	return CheckPasswordHash(a.PasswordHash, pw)
}

// CheckPasswordHash returns ErrBadPassword unless pw matches hash. It lets a
// caller copy the hash under the world lock and do the slow compare after.
func CheckPasswordHash(hash string, pw string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)); err != nil {
		return ErrBadPassword
	}
	return nil
}

// AddCharacter records that the character with id belongs to the account.
func (a *Account) AddCharacter(id string) {
	if a.Characters == nil {
		a.Characters = codec.NewSet[codec.Ref]()
	}
	a.Characters.Add(codec.NewRef(id))
}

func (a *Account) Validate() error {
	el := errors.NewErrorList()

	if a.AccountName == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if a.PasswordHash == "" {
		el.Add(fmt.Errorf("password_hash is required"))
	}

	return el.Err()
}

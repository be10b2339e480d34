package game

import "github.com/pixil98/go-mudcore/internal/entity"

const (
	KindWorld     = "world"
	KindRealm     = "realm"
	KindArea      = "area"
	KindRoom      = "room"
	KindCharacter = "character"
	KindItem      = "item"
	KindAccount   = "account"
)

// Kinds returns the constructor for every kind the game persists.
func Kinds() entity.Kinds {
	return entity.Kinds{
		KindWorld:     func() entity.Entity { return &World{} },
		KindRealm:     func() entity.Entity { return &Realm{} },
		KindArea:      func() entity.Entity { return &Area{} },
		KindRoom:      func() entity.Entity { return &Room{} },
		KindCharacter: func() entity.Entity { return &Character{Link: Offline} },
		KindItem:      func() entity.Entity { return &Item{} },
		KindAccount:   func() entity.Entity { return &Account{} },
	}
}

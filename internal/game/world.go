package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-mudcore/internal/storage"
)

// EnsureWorld returns the room new characters start in. If startRoom is empty
// or missing on disk, a minimal world holding a single room is created and
// saved, and that room is returned instead.
func EnsureWorld(ctx context.Context, m *entity.Manager, startRoom string) (*entity.Handle, error) {
	var room *entity.Handle
	err := m.Update(func() error {
		var err error
		room, err = ensureWorld(ctx, m, startRoom)
		return err
	})
	return room, err
}

func ensureWorld(ctx context.Context, m *entity.Manager, startRoom string) (*entity.Handle, error) {
	if startRoom != "" {
		h, err := m.Load(ctx, startRoom)
		switch {
		case err == nil:
			e, err := h.Get()
			if err != nil {
				return nil, fmt.Errorf("loading start room: %w", err)
			}
			if _, ok := e.(*Room); !ok {
				return nil, fmt.Errorf("start room %s is a %s", startRoom, e.Kind())
			}
			return h, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("loading start room: %w", err)
		}
		slog.WarnContext(ctx, "start room not found, creating a new world", "room", startRoom)
	}

	var hs [4]*entity.Handle
	for i, kind := range []string{KindWorld, KindRealm, KindArea, KindRoom} {
		h, err := m.Create(kind)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", kind, err)
		}
		hs[i] = h
	}
	world, realm, area, room := hs[0], hs[1], hs[2], hs[3]

	entity.MustAs[*World](world).Title = "The World"
	entity.MustAs[*Realm](realm).Title = "The Realm"
	entity.MustAs[*Area](area).Title = "The Void"
	r := entity.MustAs[*Room](room)
	r.Title = "The Void"
	r.Description = "You float in a featureless grey expanse. Nothing has been built here yet."

	for _, link := range [][2]*entity.Handle{{world, realm}, {realm, area}, {area, room}} {
		if err := m.Insert(ctx, link[0], link[1]); err != nil {
			return nil, fmt.Errorf("building world: %w", err)
		}
	}
	if err := m.Save(ctx, world); err != nil {
		return nil, fmt.Errorf("saving new world: %w", err)
	}

	slog.InfoContext(ctx, "created new world", "world", world.ID(), "start_room", room.ID())
	return room, nil
}

// NewAccount creates an account holding the name reserved by soft. The
// account is not saved. The caller holds the world lock.
func NewAccount(ctx context.Context, m *entity.Manager, soft *names.SoftLock, password string) (*entity.Handle, error) {
	h, err := m.Create(KindAccount)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	a := entity.MustAs[*Account](h)
	a.CreatedAt = codec.NewDate(time.Now())

	if err := a.SetPassword(password); err != nil {
		m.Evict(h.ID())
		return nil, err
	}
	if err := m.Claim(ctx, h, soft); err != nil {
		m.Evict(h.ID())
		return nil, fmt.Errorf("naming account: %w", err)
	}

	return h, nil
}

// NewCharacter creates a character holding the name reserved by soft and
// attaches it to account. Neither is saved. The caller holds the world lock.
func NewCharacter(ctx context.Context, m *entity.Manager, soft *names.SoftLock, account *entity.Handle) (*entity.Handle, error) {
	acct, err := entity.As[*Account](account)
	if err != nil {
		return nil, fmt.Errorf("creating character: %w", err)
	}

	h, err := m.Create(KindCharacter)
	if err != nil {
		return nil, fmt.Errorf("creating character: %w", err)
	}
	c := entity.MustAs[*Character](h)
	c.Title = defaultTitle
	c.Description = "A plain, unremarkable adventurer."
	c.CreatedAt = codec.NewDate(time.Now())
	c.Account = codec.NewRef(account.ID())
	c.SetFlag(FlagNewbie, true)
	c.SetStat("level", 1)
	c.SetStat("hp", 20)

	if err := m.Claim(ctx, h, soft); err != nil {
		m.Evict(h.ID())
		return nil, fmt.Errorf("naming character: %w", err)
	}

	acct.AddCharacter(h.ID())
	return h, nil
}

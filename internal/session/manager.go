package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/game"
	"github.com/pixil98/go-mudcore/internal/messaging"
)

// Bus carries text to connections by connection id.
type Bus interface {
	messaging.Publisher
	Subscribe(subject string, handler func(data []byte)) (func(), error)
	Ready(ctx context.Context) error
}

// Manager runs a session for every connection and tracks which session is
// playing each character.
type Manager struct {
	entities  *entity.Manager
	bus       Bus
	startRoom string

	// mu serializes characters entering and leaving the game.
	mu     sync.Mutex
	active map[string]*Session
}

func NewManager(entities *entity.Manager, bus Bus, startRoom string) *Manager {
	return &Manager{
		entities:  entities,
		bus:       bus,
		startRoom: startRoom,
		active:    map[string]*Session{},
	}
}

// Online returns the number of characters being played.
func (m *Manager) Online() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Run drives conn from the welcome banner until the player quits or the
// connection drops.
func (m *Manager) Run(ctx context.Context, conn io.ReadWriter) error {
	if err := m.bus.Ready(ctx); err != nil {
		return fmt.Errorf("waiting for message bus: %w", err)
	}

	s := newSession(uuid.NewString(), conn, m)
	defer s.close()

	unsub, err := m.bus.Subscribe(messaging.ConnSubject(s.id), func(data []byte) {
		select {
		case s.msgs <- data:
		default:
			slog.Warn("dropping message for slow connection", "conn", s.id)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing connection %s: %w", s.id, err)
	}
	defer unsub()
	s.link = messaging.NewLink(m.bus, s.id)

	slog.InfoContext(ctx, "connection opened", "conn", s.id)
	defer slog.InfoContext(ctx, "connection closed", "conn", s.id)

	if err := s.login(ctx); err != nil {
		if isHangup(err) {
			return nil
		}
		return fmt.Errorf("login: %w", err)
	}

	err = s.play(ctx)
	if errors.Is(err, ErrTakenOver) {
		return nil
	}

	if lerr := m.logout(context.WithoutCancel(ctx), s); lerr != nil {
		slog.ErrorContext(ctx, "logging out", "conn", s.id, "character", s.char.ID(), "error", lerr)
	}

	if err != nil && !isHangup(err) {
		return fmt.Errorf("playing: %w", err)
	}
	return nil
}

func isHangup(err error) bool {
	return errors.Is(err, ErrDisconnected) || errors.Is(err, context.Canceled) || errors.Is(err, ErrTooManyTries)
}

// enter puts the character with id into play for s. A session already
// playing that character is told to stop first.
func (m *Manager) enter(ctx context.Context, s *Session, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.active[id]; ok && old != s {
		slog.InfoContext(ctx, "session taken over", "character", id, "old", old.id, "new", s.id)
		close(old.kicked)
	}

	return m.entities.Update(func() error {
		return m.enterLocked(ctx, s, id)
	})
}

func (m *Manager) enterLocked(ctx context.Context, s *Session, id string) error {
	h, err := m.entities.Load(ctx, id, entity.WithChildren())
	if err != nil {
		return fmt.Errorf("loading character %s: %w", id, err)
	}
	c, err := entity.As[*game.Character](h)
	if err != nil {
		return err
	}

	if err := m.place(ctx, h, c); err != nil {
		return fmt.Errorf("placing character %s: %w", id, err)
	}

	c.Link = s.link
	s.char = h
	m.active[id] = s

	c.Announce(m.entities, fmt.Sprintf("%s has entered the game.", c.Name()))
	return nil
}

// place makes sure the character is standing in a loaded room: the one it
// is saved in, else the one it last left from, else the start room.
func (m *Manager) place(ctx context.Context, h *entity.Handle, c *game.Character) error {
	if pid := c.ParentID(); pid != "" {
		p, err := m.entities.Load(ctx, pid)
		if err == nil {
			if r, ok := entity.TryAs[*game.Room](p); ok && r.Has(c.ID()) {
				return nil
			}
		}
	}

	var target *entity.Handle
	if !c.LastRoom.IsZero() {
		r, err := m.entities.Load(ctx, c.LastRoom.ID)
		if err == nil && entity.Is[*game.Room](r) {
			target = r
		} else {
			slog.WarnContext(ctx, "last room unavailable", "character", c.ID(), "room", c.LastRoom.ID, "error", err)
		}
	}
	if target == nil {
		r, err := m.entities.Load(ctx, m.startRoom)
		if err != nil {
			return fmt.Errorf("loading start room: %w", err)
		}
		target = r
	}

	return m.entities.Insert(ctx, target, h)
}

// logout saves the character and takes it out of the game. It does nothing
// if another session has taken the character over.
func (m *Manager) logout(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.char == nil || m.active[s.char.ID()] != s {
		return nil
	}
	delete(m.active, s.char.ID())

	return m.entities.Update(func() error {
		return m.logoutLocked(ctx, s)
	})
}

func (m *Manager) logoutLocked(ctx context.Context, s *Session) error {
	c, err := entity.As[*game.Character](s.char)
	if err != nil {
		return err
	}
	c.Link = game.Offline
	c.Announce(m.entities, fmt.Sprintf("%s has left the game.", c.Name()))

	if room := m.entities.Parent(s.char); room.IsValid() {
		c.LastRoom = codec.NewRef(room.ID())
		if err := m.entities.Remove(room, s.char); err != nil {
			return err
		}
		if err := m.entities.Save(ctx, room); err != nil {
			return err
		}
	}

	if err := m.entities.Save(ctx, s.char); err != nil {
		return err
	}

	m.evictTree(s.char)
	if s.account != nil {
		m.entities.Evict(s.account.ID())
	}

	slog.InfoContext(ctx, "character left the game", "character", c.ID(), "name", c.Name())
	return nil
}

func (m *Manager) evictTree(h *entity.Handle) {
	for _, child := range m.entities.Children(h) {
		m.evictTree(child)
	}
	m.entities.Evict(h.ID())
}

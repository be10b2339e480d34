package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pixil98/go-mudcore/internal/codec"
	"github.com/pixil98/go-mudcore/internal/ids"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-mudcore/internal/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// defaultSaveConcurrency bounds how many files SaveAll writes at once.
const defaultSaveConcurrency = 8

// Manager owns the table of loaded entities. It is the single source of
// truth for whether an entity is in memory; handles never hold their own copy.
//
// The fields of every loaded entity are guarded by one world lock. Dispatch
// holds it exclusively while a command runs and SaveAll holds it shared while
// encoding. Anything else that reads or changes entity state while the game
// is running does so inside Update or View. No other method takes the lock,
// so Load, Save, Insert and the rest are safe to call from inside a command
// or an Update.
type Manager struct {
	ids   *ids.Allocator
	store *storage.FileStore
	names *names.Registry
	kinds Kinds

	mu    sync.RWMutex
	table map[string]*slot

	world   sync.RWMutex
	loading singleflight.Group
}

func NewManager(alloc *ids.Allocator, store *storage.FileStore, registry *names.Registry, kinds Kinds) *Manager {
	return &Manager{
		ids:   alloc,
		store: store,
		names: registry,
		kinds: kinds,
		table: map[string]*slot{},
	}
}

// Update runs fn with exclusive access to entity state.
func (m *Manager) Update(fn func() error) error {
	m.world.Lock()
	defer m.world.Unlock()
	return fn()
}

// View runs fn with shared access to entity state. fn must not change any
// entity.
func (m *Manager) View(fn func() error) error {
	m.world.RLock()
	defer m.world.RUnlock()
	return fn()
}

// Names returns the registry the manager uses for unique names.
func (m *Manager) Names() *names.Registry {
	return m.names
}

// Create builds a new entity of kind with a freshly allocated id and adds it
// to the table. Nothing is written to disk until it is saved.
func (m *Manager) Create(kind string) (*Handle, error) {
	factory, ok := m.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	e := factory()
	if err := bind(e, m.ids.Generate(), kind); err != nil {
		return nil, err
	}

	return m.track(e), nil
}

func (m *Manager) track(e Entity) *Handle {
	s := &slot{entity: e}

	m.mu.Lock()
	m.table[e.ID()] = s
	m.mu.Unlock()

	return &Handle{id: e.ID(), slot: s}
}

// Lookup returns a handle to a loaded entity. If id is not loaded the handle
// is invalid; use Load to bring it into memory.
func (m *Manager) Lookup(id string) *Handle {
	m.mu.RLock()
	s, ok := m.table[id]
	m.mu.RUnlock()

	if !ok {
		return Invalid(id)
	}
	return &Handle{id: id, slot: s}
}

// Loaded reports whether id is in the table.
func (m *Manager) Loaded(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.table[id]
	return ok
}

// Count returns the number of loaded entities.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}

// IDs returns the ids of all loaded entities, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.table))
	for id := range m.table {
		out = append(out, id)
	}
	m.mu.RUnlock()

	sort.Strings(out)
	return out
}

type loadConfig struct {
	children bool

	mu      sync.Mutex
	visited map[string]bool
}

type LoadOpt func(*loadConfig)

// WithChildren also loads every entity a container holds, recursively.
func WithChildren() LoadOpt {
	return func(c *loadConfig) {
		c.children = true
	}
}

// Load returns a handle to id, reading it from disk if it is not already in
// the table. Concurrent loads of the same id share one read.
func (m *Manager) Load(ctx context.Context, id string, opts ...LoadOpt) (*Handle, error) {
	cfg := &loadConfig{visited: map[string]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return m.load(ctx, id, cfg)
}

func (m *Manager) load(ctx context.Context, id string, cfg *loadConfig) (*Handle, error) {
	h := m.Lookup(id)
	if !h.IsValid() {
		v, err, _ := m.loading.Do(id, func() (any, error) {
			if h := m.Lookup(id); h.IsValid() {
				return h, nil
			}
			h, err := m.read(id)
			if err != nil {
				return nil, err
			}
			return h, nil
		})
		if err != nil {
			return nil, err
		}
		h = v.(*Handle)
	}

	if cfg.children {
		if err := m.loadChildren(ctx, h, cfg); err != nil {
			return h, err
		}
	}
	return h, nil
}

func (m *Manager) read(id string) (*Handle, error) {
	rec, err := m.store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}

	factory, ok := m.kinds[rec.Kind]
	if !ok {
		return nil, fmt.Errorf("loading %s: %w: %q", id, ErrUnknownKind, rec.Kind)
	}

	e := factory()
	if err := json.Unmarshal(rec.Spec, e); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", rec.Kind, id, err)
	}
	if err := bind(e, rec.ID, rec.Kind); err != nil {
		return nil, err
	}
	if v, ok := e.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating %s %s: %w", rec.Kind, id, err)
		}
	}

	slog.Debug("entity loaded", "id", id, "kind", rec.Kind)
	return m.track(e), nil
}

func (m *Manager) loadChildren(ctx context.Context, h *Handle, cfg *loadConfig) error {
	cfg.mu.Lock()
	if cfg.visited[h.ID()] {
		cfg.mu.Unlock()
		return nil
	}
	cfg.visited[h.ID()] = true
	cfg.mu.Unlock()

	e, ok := h.peek()
	if !ok {
		return fmt.Errorf("loading children of %s: %w", h.ID(), ErrInvalidHandle)
	}
	c, ok := e.(Container)
	if !ok {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range c.contents().ChildIDs() {
		g.Go(func() error {
			_, err := m.load(ctx, id, cfg)
			return err
		})
	}
	return g.Wait()
}

// Save writes h and, if it is a container, every loaded child first. Children
// that are not loaded are already current on disk. Save returns once every
// write has finished.
func (m *Manager) Save(ctx context.Context, h *Handle) error {
	return m.save(ctx, h, map[string]bool{}, &sync.Mutex{})
}

func (m *Manager) save(ctx context.Context, h *Handle, visited map[string]bool, mu *sync.Mutex) error {
	e, err := h.Get()
	if err != nil {
		return fmt.Errorf("saving %s: %w", h.ID(), err)
	}

	mu.Lock()
	if visited[e.ID()] {
		mu.Unlock()
		return nil
	}
	visited[e.ID()] = true
	mu.Unlock()

	if c, ok := e.(Container); ok {
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range c.contents().ChildIDs() {
			child := m.Lookup(id)
			if !child.IsValid() {
				continue
			}
			g.Go(func() error {
				return m.save(gctx, child, visited, mu)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("saving contents of %s: %w", e.ID(), err)
		}
	}

	return m.write(ctx, e)
}

func (m *Manager) write(ctx context.Context, e Entity) error {
	snap, err := encode(e)
	if err != nil {
		return err
	}
	return m.flush(ctx, snap)
}

// snapshot is an entity's persistent state, encoded while the world lock was
// held so it can be written after the lock is let go.
type snapshot struct {
	id   string
	kind string
	spec json.RawMessage
}

func encode(e Entity) (snapshot, error) {
	data, err := codec.Marshal(e)
	if err != nil {
		return snapshot{}, fmt.Errorf("encoding %s %s: %w", e.Kind(), e.ID(), err)
	}
	return snapshot{id: e.ID(), kind: e.Kind(), spec: data}, nil
}

func (m *Manager) flush(ctx context.Context, snap snapshot) error {
	if err := m.store.SaveEncoded(ctx, snap.id, snap.kind, snap.spec); err != nil {
		return fmt.Errorf("saving %s: %w", snap.id, err)
	}
	return nil
}

// SaveAll writes every loaded entity once. Everything is encoded under one
// shared hold of the world lock, so the files agree with each other about
// who holds what, and written to disk after it is released. Failures are
// logged and joined; one bad entity does not stop the rest from being saved.
//
// SaveAll takes the world lock itself and must not be called from inside a
// command, Update or View.
func (m *Manager) SaveAll(ctx context.Context) error {
	var errs []error
	var snaps []snapshot

	m.world.RLock()
	for _, id := range m.IDs() {
		e, ok := m.Lookup(id).peek()
		if !ok {
			continue
		}
		snap, err := encode(e)
		if err != nil {
			slog.ErrorContext(ctx, "autosave failed", "id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		snaps = append(snaps, snap)
	}
	m.world.RUnlock()

	var g errgroup.Group
	g.SetLimit(defaultSaveConcurrency)

	var mu sync.Mutex
	for _, snap := range snaps {
		g.Go(func() error {
			if err := m.flush(ctx, snap); err != nil {
				slog.ErrorContext(ctx, "autosave failed", "id", snap.id, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Tick saves every loaded entity. It satisfies driver.Manager.
func (m *Manager) Tick(ctx context.Context) error {
	if err := m.SaveAll(ctx); err != nil {
		slog.WarnContext(ctx, "autosave incomplete", "error", err)
	}
	return nil
}

// Evict drops id from the table and invalidates every handle to it. The
// file on disk is untouched; save first if the in-memory state matters.
func (m *Manager) Evict(id string) {
	m.mu.Lock()
	s, ok := m.table[id]
	delete(m.table, id)
	m.mu.Unlock()

	if ok {
		s.clear()
		slog.Debug("entity evicted", "id", id)
	}
}

// Delete removes the entity for good: it leaves its container, gives up its
// unique name, loses its file, and every handle to it becomes invalid. A
// container must be emptied before it can be deleted.
func (m *Manager) Delete(ctx context.Context, h *Handle) error {
	e, err := h.Get()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", h.ID(), err)
	}

	if c, ok := e.(Container); ok && len(c.contents().Children) > 0 {
		return fmt.Errorf("deleting %s: %w", e.ID(), ErrNotEmpty)
	}

	if parentID := e.base().ParentID(); parentID != "" {
		parent, err := m.Load(ctx, parentID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			slog.WarnContext(ctx, "deleting entity whose container is gone", "id", e.ID(), "parent", parentID)
			e.base().Parent = nil
		case err != nil:
			return fmt.Errorf("deleting %s: %w", e.ID(), err)
		default:
			if err := m.Remove(parent, h); err != nil {
				return fmt.Errorf("deleting %s: %w", e.ID(), err)
			}
			pe, err := parent.Get()
			if err != nil {
				return fmt.Errorf("deleting %s: %w", e.ID(), err)
			}
			if err := m.write(ctx, pe); err != nil {
				return fmt.Errorf("deleting %s: %w", e.ID(), err)
			}
		}
	}

	if n, ok := e.(Named); ok && n.Name() != "" {
		if err := m.names.Release(ctx, n.Name(), n.NameCategory()); err != nil && !errors.Is(err, names.ErrNotLocked) {
			return fmt.Errorf("deleting %s: %w", e.ID(), err)
		}
	}

	if err := m.store.Delete(ctx, e.ID()); err != nil {
		return fmt.Errorf("deleting %s: %w", e.ID(), err)
	}

	m.Evict(e.ID())
	slog.InfoContext(ctx, "entity deleted", "id", e.ID(), "kind", e.Kind())
	return nil
}

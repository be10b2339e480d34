package names

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pixil98/go-mudcore/internal/storage"
)

// lockRecord is the content of a durable lock file.
type lockRecord struct {
	ID string `json:"id"`
}

type lockKey struct {
	category Category
	key      string
}

// Registry tracks durable and soft name locks. Commit and soft reservation
// for the same name are mutually exclusive, so two concurrent claimants can
// never both succeed.
type Registry struct {
	dir   string
	queue *storage.SaveQueue

	mu   sync.Mutex
	soft map[lockKey]*SoftLock
}

func NewRegistry(dir string, queue *storage.SaveQueue) (*Registry, error) {
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(dir, string(c)), 0755); err != nil {
			return nil, fmt.Errorf("creating %s lock directory: %w", c, err)
		}
	}
	if queue == nil {
		queue = storage.NewSaveQueue()
	}

	return &Registry{
		dir:   dir,
		queue: queue,
		soft:  map[lockKey]*SoftLock{},
	}, nil
}

// lockPath returns the lock file for name. Only names valid in c have one,
// so the path never leaves the category directory.
func (r *Registry) lockPath(name string, c Category) (string, error) {
	if err := c.Validate(name); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, string(c), Key(name)+".json"), nil
}

// IsTaken reports whether name is durably locked or softly reserved in c.
// A lock file that cannot be inspected counts as taken. A name that is not
// valid in c can never be locked and is never taken.
func (r *Registry) IsTaken(name string, c Category) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isTaken(name, c, nil)
}

func (r *Registry) isTaken(name string, c Category, holder *SoftLock) bool {
	if s, ok := r.soft[lockKey{c, Key(name)}]; ok && s != holder {
		return true
	}

	path, err := r.lockPath(name, c)
	if err != nil {
		return false
	}

	_, err = os.Stat(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		slog.Error("checking name lock", "name", name, "category", c, "error", err)
		return true
	}
	return false
}

// ReserveSoft places an in-memory reservation on name. It fails with
// ErrNameTaken when the name is already locked or reserved.
func (r *Registry) ReserveSoft(name string, c Category) (*SoftLock, error) {
	if err := c.Validate(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isTaken(name, c, nil) {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}

	l := &SoftLock{r: r, name: name, category: c}
	r.soft[lockKey{c, Key(name)}] = l
	return l, nil
}

// ReleaseSoft drops any soft reservation on name, whoever holds it.
func (r *Registry) ReleaseSoft(name string, c Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.soft, lockKey{c, Key(name)})
}

// Commit durably locks name for id. It fails with ErrNameTaken if the name is
// locked or softly reserved by anyone.
func (r *Registry) Commit(ctx context.Context, id string, name string, c Category) error {
	return r.commit(ctx, id, name, c, nil)
}

func (r *Registry) commit(ctx context.Context, id string, name string, c Category, holder *SoftLock) error {
	if id == "" {
		return fmt.Errorf("committing %s: %w", name, storage.ErrMissingID)
	}
	if err := c.Validate(name); err != nil {
		return err
	}

	data, err := json.Marshal(lockRecord{ID: id})
	if err != nil {
		return fmt.Errorf("marshalling name lock: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isTaken(name, c, holder) {
		slog.InfoContext(ctx, "name already taken", "name", name, "category", c, "id", id)
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}

	path, err := r.lockPath(name, c)
	if err != nil {
		return err
	}
	err = r.queue.Do(ctx, path, func() error {
		return writeExclusive(path, data)
	})
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	if err != nil {
		return fmt.Errorf("writing name lock %s: %w", name, err)
	}

	if holder != nil {
		delete(r.soft, lockKey{c, Key(name)})
	}

	slog.InfoContext(ctx, "name locked", "name", name, "category", c, "id", id)
	return nil
}

// Release deletes the durable lock on name. A missing lock file is logged and
// reported as ErrNotLocked.
func (r *Registry) Release(ctx context.Context, name string, c Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.lockPath(name, c)
	if err != nil {
		return err
	}
	err = r.queue.Do(ctx, path, func() error {
		return os.Remove(path)
	})
	if errors.Is(err, fs.ErrNotExist) {
		slog.WarnContext(ctx, "releasing name with no lock file", "name", name, "category", c)
		return fmt.Errorf("%w: %s", ErrNotLocked, name)
	}
	if err != nil {
		return fmt.Errorf("removing name lock %s: %w", name, err)
	}
	return nil
}

// Owner returns the id holding the durable lock on name.
func (r *Registry) Owner(name string, c Category) (string, error) {
	path, err := r.lockPath(name, c)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotLocked, name)
	}
	if err != nil {
		return "", fmt.Errorf("reading name lock %s: %w", name, err)
	}

	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("unmarshalling name lock %s: %w", name, err)
	}
	return rec.ID, nil
}

// Rename moves id's claim from oldName to newName. The old lock is released
// before the new one is committed, so there is a window where id holds
// neither. If the new name cannot be committed the old one is reclaimed; if
// that also fails the entity is left unnamed and both errors are returned.
func (r *Registry) Rename(ctx context.Context, id string, oldName string, newName string, c Category) error {
	if Key(oldName) == Key(newName) {
		return nil
	}
	if err := c.Validate(newName); err != nil {
		return err
	}
	if r.IsTaken(newName, c) {
		return fmt.Errorf("%w: %s", ErrNameTaken, newName)
	}

	if err := r.Release(ctx, oldName, c); err != nil && !errors.Is(err, ErrNotLocked) {
		return err
	}

	err := r.Commit(ctx, id, newName, c)
	if err == nil {
		return nil
	}

	if restoreErr := r.Commit(ctx, id, oldName, c); restoreErr != nil {
		slog.ErrorContext(ctx, "entity left unnamed after failed rename",
			"id", id, "old", oldName, "new", newName, "error", restoreErr)
		return errors.Join(err, restoreErr)
	}
	return err
}

// writeExclusive creates path and fails with fs.ErrExist if it is already
// there.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// SoftLock is a held soft reservation. Exactly one of Commit or Release should
// be called.
type SoftLock struct {
	r        *Registry
	name     string
	category Category
}

func (l *SoftLock) Name() string {
	return l.name
}

func (l *SoftLock) Category() Category {
	return l.category
}

// Commit turns the reservation into a durable lock owned by id. The holder's
// own reservation does not block it.
func (l *SoftLock) Commit(ctx context.Context, id string) error {
	return l.r.commit(ctx, id, l.name, l.category, l)
}

// Release abandons the reservation. It does nothing if the reservation was
// already committed or released.
func (l *SoftLock) Release() {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()

	k := lockKey{l.category, Key(l.name)}
	if l.r.soft[k] == l {
		delete(l.r.soft, k)
	}
}

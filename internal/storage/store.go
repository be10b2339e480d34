package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixil98/go-mudcore/internal/codec"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrMissingID = errors.New("record has no id")
)

// FileStore keeps one JSON file per entity at <path>/<id>.json. Writes to the
// same file are serialized through a SaveQueue.
type FileStore struct {
	path  string
	queue *SaveQueue

	// writeFile performs the physical write. Replaced in tests.
	writeFile func(path string, data []byte, perm os.FileMode) error
}

func NewFileStore(path string, queue *SaveQueue) (*FileStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	if queue == nil {
		queue = NewSaveQueue()
	}

	return &FileStore{
		path:      path,
		queue:     queue,
		writeFile: atomicWrite,
	}, nil
}

// FilePath returns the backing file for id.
func (s *FileStore) FilePath(id string) string {
	return filepath.Join(s.path, fmt.Sprintf("%s.json", id))
}

// Save encodes spec and writes it as the record for id, waiting for any
// in-flight write of the same file to finish first.
func (s *FileStore) Save(ctx context.Context, id string, kind string, spec any) error {
	if id == "" {
		return ErrMissingID
	}

	specData, err := codec.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", kind, id, err)
	}
	return s.SaveEncoded(ctx, id, kind, specData)
}

// SaveEncoded writes an already encoded spec as the record for id. It lets a
// caller encode while holding its own lock and do the disk write after.
func (s *FileStore) SaveEncoded(ctx context.Context, id string, kind string, specData json.RawMessage) error {
	if id == "" {
		return ErrMissingID
	}

	rec := &Record{
		Version: RecordVersion,
		ID:      id,
		Kind:    kind,
		Spec:    specData,
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validating %s: %w", id, err)
	}

	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record %s: %w", id, err)
	}

	path := s.FilePath(id)
	return s.queue.Do(ctx, path, func() error {
		return s.writeFile(path, data, 0644)
	})
}

// Load reads the record for id. ErrNotFound is returned if no file exists.
func (s *FileStore) Load(id string) (*Record, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid id %q", id)
	}

	rec, err := s.loadRecord(s.FilePath(id))
	if err != nil {
		return nil, err
	}

	if rec.ID != id {
		return nil, fmt.Errorf("record file for %s holds id %q", id, rec.ID)
	}

	return rec, nil
}

// Delete removes the record for id. Deleting a missing record is not an error.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return fmt.Errorf("invalid id %q", id)
	}

	path := s.FilePath(id)
	return s.queue.Do(ctx, path, func() error {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		return nil
	})
}

// Exists reports whether a record file for id is present.
func (s *FileStore) Exists(id string) bool {
	_, err := os.Stat(s.FilePath(id))
	return err == nil
}

// IDs lists the ids of every record in the store.
func (s *FileStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// atomicWrite writes data to a temp file then renames it to the target path.
// This prevents partial or empty files if the process is interrupted.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			slog.Warn("failed to remove temp file after rename failure", "path", tmp, "error", removeErr)
		}
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *FileStore) loadRecord(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}

	// Ignoring close error - file is read-only, error is not actionable
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshalling record: %w", err)
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filepath.Base(path), err)
	}

	return rec, nil
}

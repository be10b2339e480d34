package entity

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pixil98/go-mudcore/internal/ids"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-mudcore/internal/storage"
)

type testRoom struct {
	Base
	Contents

	Title string `json:"title"`
}

type testChar struct {
	Base

	CharName string `json:"name"`
	Level    int    `json:"level"`
	Session  string `json:"-"`
}

func (c *testChar) Name() string { return c.CharName }
func (c *testChar) SetName(n string) { c.CharName = n }
func (c *testChar) NameCategory() names.Category { return names.Characters }

func (c *testChar) Command(name string) (CommandFunc, bool) {
	switch name {
	case "level":
		return func(_ context.Context, _ *Manager, args []string) (string, error) {
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return "", err
				}
				c.Level = n
			}
			return fmt.Sprintf("level %d", c.Level), nil
		}, true
	}
	return nil, false
}

type testStrict struct {
	Base

	Value int `json:"value"`
}

func (s *testStrict) Validate() error {
	if s.Value < 0 {
		return fmt.Errorf("value must not be negative")
	}
	return nil
}

var testKinds = Kinds{
	"room":   func() Entity { return &testRoom{} },
	"char":   func() Entity { return &testChar{Session: "offline"} },
	"strict": func() Entity { return &testStrict{} },
}

type testEnv struct {
	mgr   *Manager
	store *storage.FileStore
	names *names.Registry
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	q := storage.NewSaveQueue()

	store, err := storage.NewFileStore(filepath.Join(dir, "entities"), q)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	reg, err := names.NewRegistry(filepath.Join(dir, "names"), q)
	if err != nil {
		t.Fatalf("unexpected error creating registry: %v", err)
	}

	alloc := ids.NewAllocator(time.UnixMilli(1700000000000))
	return &testEnv{
		mgr:   NewManager(alloc, store, reg, testKinds),
		store: store,
		names: reg,
		dir:   dir,
	}
}

func (e *testEnv) create(t *testing.T, kind string) *Handle {
	t.Helper()
	h, err := e.mgr.Create(kind)
	if err != nil {
		t.Fatalf("unexpected error creating %s: %v", kind, err)
	}
	return h
}

func mustAs[T Entity](t *testing.T, h *Handle) T {
	t.Helper()
	v, err := As[T](h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

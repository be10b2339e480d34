package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/ids"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-mudcore/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	passwordCost = bcrypt.MinCost
}

type recordingLink struct {
	mu   sync.Mutex
	sent []string
}

func (l *recordingLink) Send(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, text)
	return nil
}

func (l *recordingLink) Sent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

type testEnv struct {
	mgr   *entity.Manager
	store *storage.FileStore
	names *names.Registry
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

	return &testEnv{
		mgr:   entity.NewManager(ids.NewAllocator(time.Now()), store, reg, Kinds()),
		store: store,
		names: reg,
	}
}

// player creates an account and character called name standing in room.
func (e *testEnv) player(t *testing.T, ctx context.Context, name string, room *entity.Handle) (*entity.Handle, *recordingLink) {
	t.Helper()

	acctSoft, err := e.names.ReserveSoft(name, names.Accounts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acct, err := NewAccount(ctx, e.mgr, acctSoft, "hunter22")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	charSoft, err := e.names.ReserveSoft(name, names.Characters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	char, err := NewCharacter(ctx, e.mgr, charSoft, acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.mgr.Insert(ctx, room, char); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	link := &recordingLink{}
	entity.MustAs[*Character](char).Link = link
	return char, link
}

func (e *testEnv) room(t *testing.T, title string) *entity.Handle {
	t.Helper()
	h, err := e.mgr.Create(KindRoom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entity.MustAs[*Room](h).Title = title
	return h
}

func (e *testEnv) item(t *testing.T, ctx context.Context, name string, in *entity.Handle) *entity.Handle {
	t.Helper()
	h, err := e.mgr.Create(KindItem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entity.MustAs[*Item](h).ItemName = name
	if err := e.mgr.Insert(ctx, in, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h
}

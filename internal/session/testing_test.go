package session

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/game"
	"github.com/pixil98/go-mudcore/internal/ids"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-mudcore/internal/storage"
)

type fakeBus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func([]byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: map[string]map[int]func([]byte){}}
}

func (b *fakeBus) Ready(context.Context) error {
	return nil
}

func (b *fakeBus) Subscribe(subject string, handler func([]byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[subject] == nil {
		b.subs[subject] = map[int]func([]byte){}
	}
	b.subs[subject][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[subject], id)
	}, nil
}

func (b *fakeBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	var handlers []func([]byte)
	for _, h := range b.subs[subject] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

type testEnv struct {
	entities *entity.Manager
	names    *names.Registry
	store    *storage.FileStore
	sessions *Manager
	room     *entity.Handle
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
	em := entity.NewManager(ids.NewAllocator(time.Now()), store, reg, game.Kinds())

	room, err := game.EnsureWorld(context.Background(), em, "")
	if err != nil {
		t.Fatalf("unexpected error creating world: %v", err)
	}

	return &testEnv{
		entities: em,
		names:    reg,
		store:    store,
		sessions: NewManager(em, newFakeBus(), room.ID()),
		room:     room,
	}
}

// connect starts a session and returns the client end of its connection
// plus a channel that receives Run's result.
func (e *testEnv) connect(t *testing.T) (*client, <-chan error) {
	t.Helper()

	server, conn := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- e.sessions.Run(context.Background(), server)
		server.Close()
	}()

	c := newClient(t, conn)
	t.Cleanup(func() { conn.Close() })
	return c, done
}

type client struct {
	t    *testing.T
	conn net.Conn

	mu     sync.Mutex
	out    strings.Builder
	cursor int
	update chan struct{}
}

func newClient(t *testing.T, conn net.Conn) *client {
	c := &client{t: t, conn: conn, update: make(chan struct{}, 1)}
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				c.mu.Lock()
				c.out.Write(buf[:n])
				c.mu.Unlock()
				select {
				case c.update <- struct{}{}:
				default:
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return c
}

// expect waits until text appears in the output after everything already
// matched.
func (c *client) expect(text string) {
	c.t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		all := c.out.String()
		i := strings.Index(all[c.cursor:], text)
		if i >= 0 {
			c.cursor += i + len(text)
		}
		c.mu.Unlock()
		if i >= 0 {
			return
		}

		select {
		case <-c.update:
		case <-deadline:
			c.t.Fatalf("timed out waiting for %q, got %q", text, all[c.cursor:])
		}
	}
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("unexpected error writing %q: %v", line, err)
	}
}

// create runs the new player flow through to the first prompt.
func (c *client) create(name string, password string) {
	c.t.Helper()
	c.expect("By what name do you wish to be known? ")
	c.send(name)
	c.expect("(Y/N)? ")
	c.send("y")
	c.expect("Give me a password for " + name + ": ")
	c.send(password)
	c.expect("Please retype password: ")
	c.send(password)
	c.expect("The Void")
	c.expect(promptText)
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for session to end")
		return nil
	}
}

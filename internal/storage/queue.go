package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrNoSaveInFlight = errors.New("no save in flight for path")

// SaveQueue serializes writes to the same file path. At most one caller holds
// the slot for a path at a time and waiting callers are granted it in the
// order they asked. Paths are independent of each other.
//
// Identical writes are not coalesced; every caller still performs its own
// write when its turn comes.
type SaveQueue struct {
	mu      sync.Mutex
	records map[string]*savingRecord
}

// savingRecord exists while a write to its path is in flight.
type savingRecord struct {
	waiters []chan struct{}
}

func NewSaveQueue() *SaveQueue {
	return &SaveQueue{
		records: map[string]*savingRecord{},
	}
}

// RequestSlot claims the slot for path. A nil return means the slot was free
// and now belongs to the caller. Otherwise the returned channel is closed when
// the caller's turn arrives. Either way the caller must call Finish once its
// write is done.
func (q *SaveQueue) RequestSlot(path string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[path]
	if !ok {
		q.records[path] = &savingRecord{}
		return nil
	}

	ch := make(chan struct{})
	rec.waiters = append(rec.waiters, ch)
	return ch
}

// Finish hands the slot for path to the next waiter, or frees it when nobody
// is waiting. Calling it for a path with no write in flight is a pairing bug
// in the caller; it is logged and reported but otherwise harmless.
func (q *SaveQueue) Finish(path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[path]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoSaveInFlight, path)
		slog.Error("save queue finish without matching request", "path", path, "error", err)
		return err
	}

	if len(rec.waiters) == 0 {
		delete(q.records, path)
		return nil
	}

	next := rec.waiters[0]
	rec.waiters = rec.waiters[1:]
	close(next)
	return nil
}

// Acquire blocks until the caller holds the slot for path. If ctx ends first
// the caller gives up its place in line and ctx.Err() is returned; the caller
// must not call Finish in that case.
func (q *SaveQueue) Acquire(ctx context.Context, path string) error {
	turn := q.RequestSlot(path)
	if turn == nil {
		return nil
	}

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	if rec, ok := q.records[path]; ok {
		for i, w := range rec.waiters {
			if w == turn {
				rec.waiters = append(rec.waiters[:i], rec.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
	}
	q.mu.Unlock()

	// The slot was handed over while ctx was ending. Pass it along.
	_ = q.Finish(path)
	return ctx.Err()
}

// Do runs fn while holding the slot for path.
func (q *SaveQueue) Do(ctx context.Context, path string, fn func() error) error {
	if err := q.Acquire(ctx, path); err != nil {
		return err
	}
	defer func() { _ = q.Finish(path) }()

	return fn()
}

// InFlight reports whether a write to path currently holds the slot.
func (q *SaveQueue) InFlight(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.records[path]
	return ok
}

// Waiting returns how many callers are queued behind the current holder.
func (q *SaveQueue) Waiting(path string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rec, ok := q.records[path]; ok {
		return len(rec.waiters)
	}
	return 0
}

package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func decodeFile(env *testEnv, id string, into Entity) error {
	rec, err := env.store.Load(id)
	if err != nil {
		return err
	}
	return json.Unmarshal(rec.Spec, into)
}

// checkSaved verifies that the files on disk put every character in exactly
// one of rooms and that each character's saved parent agrees.
func checkSaved(env *testEnv, rooms []*Handle, chars []*Handle) error {
	holders := map[string]string{}
	for _, room := range rooms {
		saved := &testRoom{}
		if err := decodeFile(env, room.ID(), saved); err != nil {
			return err
		}
		for _, id := range saved.ChildIDs() {
			if prev, ok := holders[id]; ok {
				return fmt.Errorf("%s saved in both %s and %s", id, prev, room.ID())
			}
			holders[id] = room.ID()
		}
	}
	if len(holders) != len(chars) {
		return fmt.Errorf("rooms saved holding %d characters, expected %d", len(holders), len(chars))
	}

	for _, c := range chars {
		saved := &testChar{}
		if err := decodeFile(env, c.ID(), saved); err != nil {
			return err
		}
		if saved.ParentID() != holders[c.ID()] {
			return fmt.Errorf("%s saved in %s but its room is %s", c.ID(), saved.ParentID(), holders[c.ID()])
		}
	}
	return nil
}

func TestManager_MoveDuringSaveAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	a := env.create(t, "room")
	b := env.create(t, "room")
	chars := make([]*Handle, 50)
	for i := range chars {
		chars[i] = env.create(t, "char")
		if err := env.mgr.Insert(ctx, a, chars[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	const rounds = 20
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for r := range rounds {
			to := b
			if r%2 == 1 {
				to = a
			}
			for _, c := range chars {
				err := env.mgr.Update(func() error {
					return env.mgr.Insert(ctx, to, c)
				})
				if err != nil {
					t.Errorf("unexpected move error: %v", err)
					return
				}
			}
		}
	}()

	rooms := []*Handle{a, b}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}

			var seen int
			_ = env.mgr.View(func() error {
				for _, room := range rooms {
					if r, ok := TryAs[*testRoom](room); ok {
						seen += len(r.ChildIDs())
					}
				}
				return nil
			})
			if seen != len(chars) {
				t.Errorf("rooms hold %d characters, expected %d", seen, len(chars))
			}

			if err := env.mgr.SaveAll(ctx); err != nil {
				t.Errorf("unexpected save error: %v", err)
				return
			}
			if err := checkSaved(env, rooms, chars); err != nil {
				t.Errorf("inconsistent autosave: %v", err)
				return
			}
		}
	}()

	wg.Wait()

	if err := env.mgr.SaveAll(ctx); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := checkSaved(env, rooms, chars); err != nil {
		t.Errorf("inconsistent final save: %v", err)
	}
	testutil.AssertEqual(t, "a children", len(mustAs[*testRoom](t, a).ChildIDs()), len(chars))
}

func TestManager_DispatchDuringSaveAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	h := env.create(t, "char")

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := range 200 {
			if _, err := env.mgr.Dispatch(ctx, h, "level", []string{strconv.Itoa(i)}); err != nil {
				t.Errorf("unexpected dispatch error: %v", err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := env.mgr.SaveAll(ctx); err != nil {
				t.Errorf("unexpected save error: %v", err)
				return
			}
		}
	}()

	wg.Wait()

	if err := env.mgr.SaveAll(ctx); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	saved := &testChar{}
	if err := decodeFile(env, h.ID(), saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "saved level", saved.Level, 199)
}

func TestManager_UpdateExcludesView(t *testing.T) {
	env := newTestEnv(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = env.mgr.Update(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	viewed := make(chan struct{})
	go func() {
		_ = env.mgr.View(func() error {
			close(viewed)
			return nil
		})
	}()

	select {
	case <-viewed:
		t.Fatal("view ran while an update held the world")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-viewed:
	case <-time.After(time.Second):
		t.Fatal("view never ran after the update finished")
	}
}

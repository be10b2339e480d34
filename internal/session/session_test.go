package session

import (
	"fmt"
	"testing"

	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/game"
	"github.com/pixil98/go-mudcore/internal/names"
	"github.com/pixil98/go-testutil"
)

func TestSession_NewPlayer(t *testing.T) {
	env := newTestEnv(t)
	c, done := env.connect(t)

	c.expect("Welcome to the realm!")
	c.create("Rahman", "secret")
	testutil.AssertEqual(t, "online", env.sessions.Online(), 1)

	c.send("say hello")
	c.expect("You say, 'hello'")
	c.send("dance")
	c.expect("Huh?!")
	c.send("quit")
	c.expect("Goodbye!")

	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "online after quit", env.sessions.Online(), 0)

	charID, err := env.names.Owner("Rahman", names.Characters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acctID, err := env.names.Owner("Rahman", names.Accounts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "character evicted", env.entities.Loaded(charID), false)
	testutil.AssertEqual(t, "account evicted", env.entities.Loaded(acctID), false)
	testutil.AssertEqual(t, "room released character", entity.MustAs[*game.Room](env.room).Has(charID), false)

	h, err := env.entities.Load(t.Context(), charID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	char := entity.MustAs[*game.Character](h)
	testutil.AssertEqual(t, "last room", char.LastRoom.ID, env.room.ID())
	testutil.AssertEqual(t, "account", char.Account.ID, acctID)
	testutil.AssertEqual(t, "parent", char.ParentID(), "")
}

func TestSession_ReturningPlayer(t *testing.T) {
	env := newTestEnv(t)

	first, done := env.connect(t)
	first.create("Rahman", "secret")
	first.send("title the Bold")
	first.expect("Title set to: the Bold")
	first.send("quit")
	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, done := env.connect(t)
	second.expect("By what name do you wish to be known? ")
	second.send("rahman")
	second.expect("Password: ")
	second.send("wrong")
	second.expect("Wrong password.")
	second.expect("Password: ")
	second.send("secret")
	second.expect("The Void")
	second.send("score")
	second.expect("Rahman the Bold")
	second.send("quit")
	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSession_TooManyPasswordTries(t *testing.T) {
	env := newTestEnv(t)

	first, done := env.connect(t)
	first.create("Rahman", "secret")
	first.send("quit")
	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, done := env.connect(t)
	second.expect("By what name do you wish to be known? ")
	second.send("Rahman")
	for range maxPasswordTries {
		second.expect("Password: ")
		second.send("wrong")
	}
	second.expect("Too many failed attempts.")

	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "online", env.sessions.Online(), 0)
}

func TestSession_CreationDetours(t *testing.T) {
	env := newTestEnv(t)

	held, err := env.names.ReserveSoft("Zara", names.Accounts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer held.Release()

	c, done := env.connect(t)
	c.expect("By what name do you wish to be known? ")
	c.send("R2D2")
	c.expect("Invalid name, please try another.")

	c.expect("By what name do you wish to be known? ")
	c.send("Zara")
	c.expect("That name is already taken, please try another.")

	c.expect("By what name do you wish to be known? ")
	c.send("Ilsa")
	c.expect("(Y/N)? ")
	c.send("maybe")
	c.expect("Please type Yes or No.")
	c.send("n")

	c.expect("By what name do you wish to be known? ")
	testutil.AssertEqual(t, "backed out name released", env.names.IsTaken("Ilsa", names.Accounts), false)
	c.send("Ilsa")
	c.expect("(Y/N)? ")
	c.send("yes")
	c.expect("Give me a password for Ilsa: ")
	c.send("ilsa")
	c.expect("Illegal password.")
	c.send("secret")
	c.expect("Please retype password: ")
	c.send("secrets")
	c.expect("Passwords don't match... start over.")
	c.expect("Give me a password for Ilsa: ")
	c.send("secret")
	c.expect("Please retype password: ")
	c.send("secret")
	c.expect("The Void")

	c.send("quit")
	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "account locked", env.names.IsTaken("Ilsa", names.Accounts), true)
	testutil.AssertEqual(t, "character locked", env.names.IsTaken("Ilsa", names.Characters), true)
}

func TestSession_DeliversToOtherConnections(t *testing.T) {
	env := newTestEnv(t)

	rahman, rahmanDone := env.connect(t)
	rahman.create("Rahman", "secret")

	zara, zaraDone := env.connect(t)
	zara.create("Zara", "secret")

	rahman.expect("Zara has entered the game.")

	zara.send("say well met")
	zara.expect("You say, 'well met'")
	rahman.expect("Zara says, 'well met'")

	rahman.send("who")
	rahman.expect("Rahman the Newbie")
	rahman.expect("2 total.")

	zara.send("quit")
	rahman.expect("Zara has left the game.")
	rahman.send("quit")
	for _, done := range []<-chan error{rahmanDone, zaraDone} {
		if err := wait(t, done); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestSession_TakeOver(t *testing.T) {
	env := newTestEnv(t)

	first, firstDone := env.connect(t)
	first.create("Rahman", "secret")

	second, secondDone := env.connect(t)
	second.expect("By what name do you wish to be known? ")
	second.send("Rahman")
	second.expect("Password: ")
	second.send("secret")
	second.expect("The Void")

	first.expect("Another connection has taken over your session.")
	if err := wait(t, firstDone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "still online", env.sessions.Online(), 1)

	charID, err := env.names.Owner("Rahman", names.Characters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "character still loaded", env.entities.Loaded(charID), true)

	second.send("look")
	second.expect("The Void")
	second.send("quit")
	if err := wait(t, secondDone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "character evicted", env.entities.Loaded(charID), false)
}

func TestSession_Hangup(t *testing.T) {
	env := newTestEnv(t)

	c, done := env.connect(t)
	c.create("Rahman", "secret")
	c.conn.Close()

	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	charID, err := env.names.Owner("Rahman", names.Characters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "character evicted", env.entities.Loaded(charID), false)
	testutil.AssertEqual(t, "character saved", env.store.Exists(charID), true)
}

func TestSession_AutosaveDuringPlay(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	rahman, rahmanDone := env.connect(t)
	rahman.create("Rahman", "secret")
	zara, zaraDone := env.connect(t)
	zara.create("Zara", "secret")

	stop := make(chan struct{})
	saved := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				saved <- nil
				return
			default:
			}
			if err := env.entities.SaveAll(ctx); err != nil {
				saved <- err
				return
			}
		}
	}()

	for i := range 20 {
		title := fmt.Sprintf("the %d", i)
		rahman.send("title " + title)
		rahman.expect("Title set to: " + title)
		zara.send("look")
		zara.expect("Rahman " + title + " is here.")
	}

	close(stop)
	if err := <-saved; err != nil {
		t.Fatalf("unexpected autosave error: %v", err)
	}

	rahman.send("quit")
	zara.send("quit")
	for _, done := range []<-chan error{rahmanDone, zaraDone} {
		if err := wait(t, done); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	charID, err := env.names.Owner("Rahman", names.Characters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := env.entities.Load(ctx, charID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "saved title", entity.MustAs[*game.Character](h).Title, "the 19")
}

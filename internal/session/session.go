package session

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/pixil98/go-mudcore/internal/entity"
	"github.com/pixil98/go-mudcore/internal/messaging"
)

var (
	ErrDisconnected = errors.New("connection closed")
	ErrTakenOver    = errors.New("session taken over by another connection")
)

// Session is one connection's view of the game: the login flow and then the
// command loop for a single character.
type Session struct {
	id   string
	conn io.ReadWriter
	mgr  *Manager

	lines   chan string
	readErr error
	done    chan struct{}

	msgs   chan []byte
	kicked chan struct{}

	account *entity.Handle
	char    *entity.Handle
	link    *messaging.Link
}

func newSession(id string, conn io.ReadWriter, mgr *Manager) *Session {
	s := &Session{
		id:      id,
		conn:    conn,
		mgr:     mgr,
		lines:   make(chan string),
		done:    make(chan struct{}),
		msgs:    make(chan []byte, 64),
		kicked:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// ID returns the connection id output for this session is published under.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) readLoop() {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			s.readErr = ErrDisconnected
			return
		}
	}

	s.readErr = scanner.Err()
	if s.readErr == nil {
		s.readErr = ErrDisconnected
	}
}

// close stops the session reading input.
func (s *Session) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// readLine waits for the next line of input.
func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", s.readErr
		}
		return line, nil
	}
}

func (s *Session) write(msg string) error {
	_, err := s.conn.Write([]byte(msg))
	return err
}

func (s *Session) writeLine(msg string) error {
	return s.write(msg + "\n")
}

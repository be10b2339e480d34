package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/iammegalith/telnet"
)

// TelnetListener accepts raw telnet clients and plays each one through the
// connection manager.
type TelnetListener struct {
	port uint16
	cm   *ConnectionManager
}

func NewTelnetListener(port uint16, cm *ConnectionManager) *TelnetListener {
	return &TelnetListener{
		port: port,
		cm:   cm,
	}
}

func (l *TelnetListener) Start(ctx context.Context) error {
	handler := newTelnetHandler(ctx, l.cm.AcceptConnection)
	svr := telnet.NewServer(fmt.Sprintf(":%d", l.port), handler)

	// done signals that Start is returning (either success or failure)
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			svr.Stop()
			handler.Stop()
		case <-done:
			handler.cancelConns()
		}
	}()

	slog.InfoContext(ctx, "listening for telnet", "port", l.port)

	err := svr.ListenAndServe()
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use (another server running?)", l.port)
		}
		return fmt.Errorf("serving telnet on port %d: %w", l.port, err)
	}

	return nil
}

// telnetHandler tracks live connections so Stop can wait for every session
// to finish. Connections accepted after Stop are closed without a session.
type telnetHandler struct {
	cFunc       func(context.Context, io.ReadWriter)
	connCtx     context.Context
	cancelConns context.CancelFunc

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
	lastID  uint64
	active  int
}

func newTelnetHandler(ctx context.Context, cFunc func(context.Context, io.ReadWriter)) *telnetHandler {
	// Sessions outlive the listen context until Stop cancels them together.
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &telnetHandler{
		cFunc:       cFunc,
		connCtx:     connCtx,
		cancelConns: cancel,
	}
}

func (h *telnetHandler) HandleTelnet(conn *telnet.Connection) {
	h.serve(conn)
}

func (h *telnetHandler) serve(conn io.ReadWriteCloser) {
	id, ok := h.track()
	if !ok {
		h.close(id, conn)
		return
	}
	defer h.untrack(id, time.Now())
	defer h.close(id, conn)

	slog.Info("telnet connection established", "conn", id)
	h.cFunc(h.connCtx, newCRLFReadWriter(conn))
}

func (h *telnetHandler) track() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return 0, false
	}
	h.lastID++
	h.active++
	h.wg.Add(1)
	return h.lastID, true
}

func (h *telnetHandler) untrack(id uint64, started time.Time) {
	h.mu.Lock()
	h.active--
	active := h.active
	h.mu.Unlock()
	h.wg.Done()

	slog.Info("telnet connection closed", "conn", id, "duration", time.Since(started).Round(time.Millisecond), "active", active)
}

func (h *telnetHandler) close(id uint64, conn io.Closer) {
	if err := conn.Close(); err != nil {
		slog.Warn("closing telnet connection", "conn", id, "error", err)
	}
}

// Active reports how many sessions are running.
func (h *telnetHandler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Stop cancels running sessions and waits for them to return. Connections
// arriving afterwards are refused.
func (h *telnetHandler) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	h.cancelConns()
	h.wg.Wait()
}

package listener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultWebsocketPath = "/ws"

// WebsocketListener accepts browser clients. Each text message from the
// client is one line of input; each write to the session is one message.
type WebsocketListener struct {
	port     uint16
	path     string
	cm       *ConnectionManager
	upgrader websocket.Upgrader

	wg      sync.WaitGroup
	connCtx context.Context
}

func NewWebsocketListener(port uint16, path string, cm *ConnectionManager) *WebsocketListener {
	if path == "" {
		path = DefaultWebsocketPath
	}
	return &WebsocketListener{
		port: port,
		path: path,
		cm:   cm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connCtx: context.Background(),
	}
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()
	l.connCtx = connCtx

	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handle)
	svr := &http.Server{
		Addr:              fmt.Sprintf(":%d", l.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svr.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down websocket listener", "error", err)
		}
	}()

	slog.InfoContext(ctx, "listening for websockets", "port", l.port, "path", l.path)

	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websockets on port %d: %w", l.port, err)
	}

	// Hijacked connections outlive Shutdown.
	cancelConns()
	l.wg.Wait()
	return nil
}

func (l *WebsocketListener) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrading websocket", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	l.wg.Add(1)
	defer l.wg.Done()

	ctx, cancel := context.WithCancel(l.connCtx)
	defer cancel()
	go func() {
		// Unblock a pending read when the listener shuts down.
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	slog.Info("websocket connection established", "remote", r.RemoteAddr)
	l.cm.AcceptConnection(ctx, &wsReadWriter{conn: conn})
}

// wsReadWriter presents a websocket as a line oriented byte stream.
type wsReadWriter struct {
	conn    *websocket.Conn
	pending []byte

	wmu sync.Mutex
}

func (w *wsReadWriter) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if !bytes.HasSuffix(data, []byte("\n")) {
			data = append(data, '\n')
		}
		w.pending = data
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *wsReadWriter) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()

	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

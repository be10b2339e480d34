package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

var ErrNotStarted = errors.New("nats server not started")

// NatsServer runs an embedded NATS server and holds the in-process client
// connection every publisher and subscriber shares.
type NatsServer struct {
	ns *server.Server

	mu    sync.RWMutex
	conn  *nats.Conn
	ready chan struct{}

	startupTimeout time.Duration
	host           string
	port           int
	name           string
}

func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		ready:          make(chan struct{}),
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		name:           "mudcore",
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("configuring nats server: %w", err)
		}
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: s.name,
		Host:       s.host,
		Port:       s.port,
		NoSigs:     true, // Let the application handle signals
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	s.ns = ns

	return s, nil
}

func (n *NatsServer) Start(ctx context.Context) error {
	n.ns.Start()

	if !n.ns.ReadyForConnections(n.startupTimeout) {
		n.ns.Shutdown()
		return fmt.Errorf("nats server not ready for connections after %s", n.startupTimeout)
	}

	// Create internal client connection
	conn, err := nats.Connect(n.ns.ClientURL())
	if err != nil {
		n.ns.Shutdown()
		return fmt.Errorf("creating nats client connection: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	close(n.ready)

	slog.InfoContext(ctx, "nats server listening", "name", n.name, "addr", n.ns.Addr())

	<-ctx.Done()

	n.mu.Lock()
	n.conn = nil
	n.mu.Unlock()

	if err := conn.Drain(); err != nil {
		slog.WarnContext(ctx, "draining nats connection", "error", err)
	}
	n.ns.Shutdown()
	n.ns.WaitForShutdown()

	return nil
}

// Ready blocks until the server accepts subscriptions or ctx is done.
func (n *NatsServer) Ready(ctx context.Context) error {
	select {
	case <-n.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *NatsServer) client() (*nats.Conn, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.conn == nil {
		return nil, ErrNotStarted
	}
	return n.conn, nil
}

// Subscribe creates a subscription on the given subject.
// The handler is called for each message received.
// Returns an unsubscribe function to remove the subscription.
func (n *NatsServer) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	conn, err := n.client()
	if err != nil {
		return nil, err
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			slog.Warn("unsubscribing", "subject", subject, "error", err)
		}
	}, nil
}

// Publish sends a message to the given subject
func (n *NatsServer) Publish(subject string, data []byte) error {
	conn, err := n.client()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

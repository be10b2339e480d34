package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// NatsServerOpt configures a NatsServer. An option rejects a value the
// embedded server could not run with.
type NatsServerOpt func(*NatsServer) error

// WithStartTimeout bounds how long Start waits for the server to accept
// client connections.
func WithStartTimeout(d time.Duration) NatsServerOpt {
	return func(n *NatsServer) error {
		if d <= 0 {
			return fmt.Errorf("start timeout must be positive, got %s", d)
		}
		n.startupTimeout = d
		return nil
	}
}

// WithHost sets the interface the server binds.
func WithHost(host string) NatsServerOpt {
	return func(n *NatsServer) error {
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("host must not be blank")
		}
		n.host = host
		return nil
	}
}

// WithPort sets the client port. -1 picks a free port.
func WithPort(port int) NatsServerOpt {
	return func(n *NatsServer) error {
		if port < server.RANDOM_PORT || port > 65535 {
			return fmt.Errorf("port %d is out of range", port)
		}
		n.port = port
		return nil
	}
}

// WithServerName names the server in its logs and in the info sent to clients.
func WithServerName(name string) NatsServerOpt {
	return func(n *NatsServer) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("server name must not be blank")
		}
		n.name = name
		return nil
	}
}

package listener

import (
	"context"
	"io"
	"log/slog"
)

// SessionRunner plays one connection from login to logout.
type SessionRunner interface {
	Run(ctx context.Context, conn io.ReadWriter) error
}

// ConnectionManager hands every accepted connection to the session layer.
type ConnectionManager struct {
	sessions SessionRunner
}

func NewConnectionManager(sessions SessionRunner) *ConnectionManager {
	return &ConnectionManager{
		sessions: sessions,
	}
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	if err := m.sessions.Run(ctx, conn); err != nil {
		slog.WarnContext(ctx, "player session", "error", err)
	}
}

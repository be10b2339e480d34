package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = time.Minute
)

// Manager is anything that does periodic work on the driver's tick.
type Manager interface {
	Tick(context.Context) error
}

// MudDriver ticks its managers on a fixed interval and once more on
// shutdown so nothing loaded is lost.
type MudDriver struct {
	tickLength time.Duration
	managers   []Manager
}

func NewMudDriver(managers []Manager, opts ...MudDriverOpt) *MudDriver {
	d := &MudDriver{
		tickLength: DefaultTickLength,
		managers:   managers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *MudDriver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "driver stopping, running final tick")
			return d.Tick(context.WithoutCancel(ctx))
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				slog.ErrorContext(ctx, "driver tick", "error", err)
			}
		}
	}
}

// Tick runs every manager once. A failing manager does not stop the rest.
func (d *MudDriver) Tick(ctx context.Context) error {
	var errs []error
	for _, m := range d.managers {
		if err := m.Tick(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package driver

import "time"

type MudDriverOpt func(*MudDriver)

// WithTickLength sets how often the managers tick.
func WithTickLength(tickLength time.Duration) MudDriverOpt {
	return func(d *MudDriver) {
		d.tickLength = tickLength
	}
}

// WithManager adds another manager to tick after the ones already given.
func WithManager(m Manager) MudDriverOpt {
	return func(d *MudDriver) {
		d.managers = append(d.managers, m)
	}
}

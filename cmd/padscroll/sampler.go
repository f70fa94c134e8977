package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrDeviceNotFound is returned by a Sampler when the requested device is not
// readable right now. The daemon treats it as a skipped tick.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceID is a stable identifier for one connected input device.
// evdev devices use their node path; SDL devices use "sdl:<instance id>".
type DeviceID string

// Snapshot is the pressed state of every physical button at one instant,
// indexed by the standard gamepad layout.
type Snapshot []bool

// Pressed reports whether button i is down. Indices outside the snapshot are released.
func (s Snapshot) Pressed(i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	return s[i]
}

// Limit returns the snapshot restricted to the first n buttons.
func (s Snapshot) Limit(n int) Snapshot {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Sampler returns the current button state of a device.
type Sampler interface {
	Sample(id DeviceID) (Snapshot, error)
}

// DeviceSource is an input backend: it samples devices and announces
// connect/disconnect as daemon Events.
//
// Run performs the startup scan, then watches for hotplug until ctx is done.
type DeviceSource interface {
	Sampler
	Run(ctx context.Context, events chan<- Event) error
	Close() error
}

// newDeviceSource builds the backend selected in config.
func newDeviceSource(cfg InputConfig, logger *slog.Logger) (DeviceSource, error) {
	switch cfg.Backend {
	case backendEvdev, "":
		return newEvdevSource(ExpandPath(cfg.Dir), ExpandPath(cfg.Device), logger)
	case backendSDL:
		return newSDLSource(logger)
	default:
		return nil, fmt.Errorf("unknown input backend %q", cfg.Backend)
	}
}

// sendEvent delivers ev to the daemon unless ctx is done first.
func sendEvent(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

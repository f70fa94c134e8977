package main

import (
	"errors"
	"fmt"
)

// errDispatchQueueFull is returned by dispatchers that buffer work and had no room.
var errDispatchQueueFull = errors.New("dispatch queue full")

// ScrollDelta is one viewport motion in signed pixels.
type ScrollDelta struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Motion Motion  `json:"behavior"`
}

// ScrollDispatcher performs viewport motion. Scroll must not block.
type ScrollDispatcher interface {
	Scroll(d ScrollDelta) error
}

// DeviceNotifier is told when the active device changes.
type DeviceNotifier interface {
	NotifyDevice(connected bool, id DeviceID, name string)
}

// multiDispatcher fans a scroll out to every dispatcher. A failing dispatcher
// does not stop the others.
type multiDispatcher []ScrollDispatcher

func (m multiDispatcher) Scroll(d ScrollDelta) error {
	var errs []error
	for _, sd := range m {
		if err := sd.Scroll(d); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", sd, err))
		}
	}
	return errors.Join(errs...)
}

// multiNotifier fans device notifications out to every notifier.
type multiNotifier []DeviceNotifier

func (m multiNotifier) NotifyDevice(connected bool, id DeviceID, name string) {
	for _, n := range m {
		n.NotifyDevice(connected, id, name)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events
// ============================================================================
// Events are the inputs to the reducer. They come from the ticker, the device
// source, browser clients, the IPC socket, and the effects layer.
//
// External events are wrapped in TimedEvent by the daemon loop so payload
// types stay free of timestamps.
// ============================================================================

// Event is a marker interface for everything the reducer consumes.
type Event interface {
	eventMarker()
}

// TimedEvent stamps an external event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop once per sampling period.
//
// Found is false when the active device could not be sampled this tick; in
// that case Snapshot is nil and the tick must not touch button state.
type Tick struct {
	Now      time.Time
	Snapshot Snapshot
	Found    bool
}

func (Tick) eventMarker() {}

// DeviceConnected announces a device that can be sampled.
// Buttons is the number of buttons the device reports in the standard layout.
type DeviceConnected struct {
	ID      DeviceID `json:"id"`
	Name    string   `json:"name"`
	Buttons int      `json:"buttons"`
}

func (DeviceConnected) eventMarker() {}

// DeviceDisconnected announces that a device went away.
type DeviceDisconnected struct {
	ID DeviceID `json:"id"`
}

func (DeviceDisconnected) eventMarker() {}

// DevicesAvailable lists devices that are still connected after a removal.
// If no device is active, the first one is activated as if it had just
// connected; otherwise the event is ignored.
type DevicesAvailable struct {
	Devices []DeviceConnected
}

func (DevicesAvailable) eventMarker() {}

// ViewportChanged reports the size of the scrolled viewport in CSS pixels.
type ViewportChanged struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (ViewportChanged) eventMarker() {}

// ResetRequested clears per-device state as if the active device reconnected.
type ResetRequested struct{}

func (ResetRequested) eventMarker() {}

// RequestStatus asks the daemon for a StatusSnapshot.
//
// Reply should be buffered (size 1). The effects layer never blocks on it.
type RequestStatus struct {
	Reply chan StatusSnapshot
}

func (RequestStatus) eventMarker() {}

// ScrollDispatchFailed is emitted by the effects layer when a dispatcher
// rejected a scroll.
type ScrollDispatchFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (ScrollDispatchFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// Only events that may cross a process boundary (IPC, browser websocket) have
// a wire form. Everything else is internal to the daemon.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
//
// "status" has no payload form; callers attach their own reply channel.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "viewport":
		var v ViewportChanged
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal ViewportChanged: %w", err)
		}
		if v.Width <= 0 || v.Height <= 0 {
			return nil, fmt.Errorf("viewport must be positive, got %gx%g", v.Width, v.Height)
		}
		return v, nil

	case "reset":
		return ResetRequested{}, nil

	case "status":
		return RequestStatus{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ViewportChanged:
		env.Type = "viewport"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ViewportChanged: %w", err)
		}
		env.Data = data

	case ResetRequested:
		env.Type = "reset"

	case RequestStatus:
		env.Type = "status"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}

package main

import "time"

// DaemonState is the top-level, daemon-owned state container.
//
// All reducer-owned state lives here. Nothing outside the daemon goroutine
// reads or writes it; other goroutines get a StatusSnapshot instead.
type DaemonState struct {
	// Device is the active input device, if any. Per-device state (Buttons)
	// is only meaningful while Device.Active is true.
	Device DeviceState

	// Buttons is the edge-detection and auto-repeat machine for the active device.
	Buttons ButtonMachine

	// Viewport is the size scroll distances are computed from.
	Viewport ViewportState

	Stats DaemonStats
}

// DeviceState describes the active device.
type DeviceState struct {
	Active      bool
	ID          DeviceID
	Name        string
	Buttons     int
	ConnectedAt time.Time
}

// ViewportState holds the last known viewport size.
// Reported is false while the configured default is in use.
type ViewportState struct {
	Width    float64
	Height   float64
	Reported bool
	At       time.Time
}

// DaemonStats are counters exposed through status.
type DaemonStats struct {
	Intents          uint64
	Scrolls          uint64
	MissedSamples    uint64
	DispatchFailures uint64
	LastScrollAt     time.Time
	LastDX           float64
	LastDY           float64
	LastError        string
}

// NewDaemonState returns an idle state using the given default viewport.
func NewDaemonState(viewportWidth, viewportHeight float64) *DaemonState {
	return &DaemonState{
		Buttons: NewButtonMachine(defaultRepeatTiming()),
		Viewport: ViewportState{
			Width:  viewportWidth,
			Height: viewportHeight,
		},
	}
}

// ActivateDevice makes d the active device and resets all per-device state.
// This is intended to be called only by the daemon goroutine (single-owner).
func (s *DaemonState) ActivateDevice(d DeviceConnected, now time.Time) {
	s.Device = DeviceState{
		Active:      true,
		ID:          d.ID,
		Name:        d.Name,
		Buttons:     d.Buttons,
		ConnectedAt: now,
	}
	s.Buttons.Reset()
}

// DeactivateDevice stops ticking and discards per-device state.
// This is intended to be called only by the daemon goroutine (single-owner).
func (s *DaemonState) DeactivateDevice() {
	s.Device = DeviceState{}
	s.Buttons.Reset()
}

// SetViewport records a reported viewport size.
// This is intended to be called only by the daemon goroutine (single-owner).
func (s *DaemonState) SetViewport(width, height float64, now time.Time) {
	s.Viewport.Width = width
	s.Viewport.Height = height
	s.Viewport.Reported = true
	s.Viewport.At = now
}

// ScrollStep returns the unsigned horizontal and vertical distance of one
// scroll intent for the current viewport.
func (s *DaemonState) ScrollStep() (dx, dy float64) {
	return s.Viewport.Width * pageScrollRatio, s.Viewport.Height * pageScrollRatio
}

// RecordScroll updates the counters for one dispatched CmdScroll.
// This is intended to be called only by the daemon goroutine (single-owner).
func (s *DaemonState) RecordScroll(intents int, c CmdScroll, now time.Time) {
	s.Stats.Intents += uint64(intents)
	s.Stats.Scrolls++
	s.Stats.LastScrollAt = now
	s.Stats.LastDX = c.DX
	s.Stats.LastDY = c.DY
}

// ============================================================================
// Status snapshot
// ============================================================================

// StatusSnapshot is the JSON-serializable view of DaemonState published to
// IPC and websocket clients.
type StatusSnapshot struct {
	Device   *DeviceStatus  `json:"device"`
	Buttons  []ButtonStatus `json:"buttons"`
	Viewport ViewportStatus `json:"viewport"`
	Stats    StatsStatus    `json:"stats"`
	Timing   TimingStatus   `json:"timing"`
	At       time.Time      `json:"at"`
}

type DeviceStatus struct {
	ID          DeviceID  `json:"id"`
	Name        string    `json:"name"`
	Buttons     int       `json:"buttons"`
	ConnectedAt time.Time `json:"connected_at"`
}

type ButtonStatus struct {
	Button string `json:"button"`
	Index  int    `json:"index"`
	Phase  string `json:"phase"`
	HeldMs int64  `json:"held_ms,omitempty"`
}

type ViewportStatus struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Reported bool    `json:"reported"`
	StepX    float64 `json:"step_x"`
	StepY    float64 `json:"step_y"`
}

type StatsStatus struct {
	Intents          uint64     `json:"intents"`
	Scrolls          uint64     `json:"scrolls"`
	MissedSamples    uint64     `json:"missed_samples"`
	DispatchFailures uint64     `json:"dispatch_failures"`
	LastScrollAt     *time.Time `json:"last_scroll_at,omitempty"`
	LastDX           float64    `json:"last_dx"`
	LastDY           float64    `json:"last_dy"`
	LastError        string     `json:"last_error,omitempty"`
}

type TimingStatus struct {
	LongPressDelayMs int64   `json:"long_press_delay_ms"`
	ScrollIntervalMs int64   `json:"scroll_interval_ms"`
	PageScrollRatio  float64 `json:"page_scroll_ratio"`
}

// Snapshot builds a StatusSnapshot as of now.
func (s *DaemonState) Snapshot(now time.Time) StatusSnapshot {
	out := StatusSnapshot{At: now}

	if s.Device.Active {
		out.Device = &DeviceStatus{
			ID:          s.Device.ID,
			Name:        s.Device.Name,
			Buttons:     s.Device.Buttons,
			ConnectedAt: s.Device.ConnectedAt,
		}
	}

	out.Buttons = make([]ButtonStatus, 0, buttonCount)
	for i, b := range buttonBindings {
		id := ButtonID(i)
		bs := ButtonStatus{
			Button: b.Name,
			Index:  b.Index,
			Phase:  s.Buttons.Phase(id, now).String(),
		}
		if t := s.Buttons.Timer(id); t != nil {
			bs.HeldMs = now.Sub(t.PressStart).Milliseconds()
		}
		out.Buttons = append(out.Buttons, bs)
	}

	stepX, stepY := s.ScrollStep()
	out.Viewport = ViewportStatus{
		Width:    s.Viewport.Width,
		Height:   s.Viewport.Height,
		Reported: s.Viewport.Reported,
		StepX:    stepX,
		StepY:    stepY,
	}

	out.Stats = StatsStatus{
		Intents:          s.Stats.Intents,
		Scrolls:          s.Stats.Scrolls,
		MissedSamples:    s.Stats.MissedSamples,
		DispatchFailures: s.Stats.DispatchFailures,
		LastDX:           s.Stats.LastDX,
		LastDY:           s.Stats.LastDY,
		LastError:        s.Stats.LastError,
	}
	if !s.Stats.LastScrollAt.IsZero() {
		t := s.Stats.LastScrollAt
		out.Stats.LastScrollAt = &t
	}

	out.Timing = TimingStatus{
		LongPressDelayMs: s.Buttons.Timing.LongPressDelay.Milliseconds(),
		ScrollIntervalMs: s.Buttons.Timing.ScrollInterval.Milliseconds(),
		PageScrollRatio:  pageScrollRatio,
	}

	return out
}

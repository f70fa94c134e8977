package main

import (
	"fmt"
	"time"
)

// ============================================================================
// Button State Machine
// ============================================================================
//
// Per watched D-pad button the machine is in one of three phases:
//
//   Released       no timer
//   HeldPending    timer exists, held for less than LongPressDelay
//   HeldRepeating  timer exists, held for LongPressDelay or more
//
// A press-edge emits immediately, independent of the repeat clock. Repeats
// from all buttons share one clock (lastScroll), so the combined repeat rate
// never exceeds one intent per ScrollInterval.
//
// Buttons are evaluated in a fixed order (Up, Down, Left, Right) and the
// repeat clock is updated right after each emission. At most one intent per
// axis is emitted per tick, and a press-edge on an axis suppresses repeats
// on that axis for the tick.
//
// The machine performs no I/O and reads no clock: time is always passed in.
// It is owned by DaemonState and only mutated by the reducer.
// ============================================================================

// ButtonID identifies a watched directional button.
type ButtonID int

const (
	ButtonUp ButtonID = iota
	ButtonDown
	ButtonLeft
	ButtonRight

	buttonCount = 4
)

// Axis is the scroll axis a button drives.
type Axis int

const (
	AxisVertical Axis = iota
	AxisHorizontal

	axisCount = 2
)

func (a Axis) String() string {
	switch a {
	case AxisVertical:
		return "vertical"
	case AxisHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

type buttonBinding struct {
	Index     int // physical index in the standard gamepad layout
	Axis      Axis
	Direction int // -1 or +1
	Name      string
}

// buttonBindings is indexed by ButtonID; its order is the evaluation order.
var buttonBindings = [buttonCount]buttonBinding{
	ButtonUp:    {Index: stdIndexDpadUp, Axis: AxisVertical, Direction: -1, Name: "up"},
	ButtonDown:  {Index: stdIndexDpadDown, Axis: AxisVertical, Direction: +1, Name: "down"},
	ButtonLeft:  {Index: stdIndexDpadLeft, Axis: AxisHorizontal, Direction: -1, Name: "left"},
	ButtonRight: {Index: stdIndexDpadRight, Axis: AxisHorizontal, Direction: +1, Name: "right"},
}

func (b ButtonID) String() string {
	if b < 0 || int(b) >= buttonCount {
		return fmt.Sprintf("ButtonID(%d)", int(b))
	}
	return buttonBindings[b].Name
}

// ButtonPhase is the externally visible phase of one button.
type ButtonPhase int

const (
	PhaseReleased ButtonPhase = iota
	PhaseHeldPending
	PhaseHeldRepeating
)

func (p ButtonPhase) String() string {
	switch p {
	case PhaseReleased:
		return "released"
	case PhaseHeldPending:
		return "held_pending"
	case PhaseHeldRepeating:
		return "held_repeating"
	default:
		return fmt.Sprintf("ButtonPhase(%d)", int(p))
	}
}

// ScrollIntent is a discrete request to scroll one step along one axis.
type ScrollIntent struct {
	Button    ButtonID
	Axis      Axis
	Direction int
}

// RepeatTiming holds the long-press thresholds. Production code always uses
// defaultRepeatTiming(); tests may construct other values.
type RepeatTiming struct {
	LongPressDelay time.Duration
	ScrollInterval time.Duration
}

func defaultRepeatTiming() RepeatTiming {
	return RepeatTiming{
		LongPressDelay: longPressDelay,
		ScrollInterval: scrollInterval,
	}
}

// ButtonTimer exists only while a button is continuously held.
type ButtonTimer struct {
	PressStart time.Time
}

// ButtonMachine is the per-device button state.
type ButtonMachine struct {
	Timing RepeatTiming

	prev   [buttonCount]bool
	timers [buttonCount]*ButtonTimer

	// lastScroll is the global repeat clock.
	lastScroll time.Time
}

// NewButtonMachine returns a machine in the all-released state.
func NewButtonMachine(timing RepeatTiming) ButtonMachine {
	return ButtonMachine{Timing: timing}
}

// Reset discards the previous snapshot, all timers and the repeat clock.
func (m *ButtonMachine) Reset() {
	m.prev = [buttonCount]bool{}
	m.timers = [buttonCount]*ButtonTimer{}
	m.lastScroll = time.Time{}
}

// Step evaluates one tick and returns the intents to emit, in evaluation order.
func (m *ButtonMachine) Step(now time.Time, snap Snapshot) []ScrollIntent {
	var (
		out       []ScrollIntent
		axisFired [axisCount]bool
		axisTap   [axisCount]bool
	)

	// A press-edge outranks a repeat on the same axis, so a tap is never
	// lost to a button that is merely held.
	for i, b := range buttonBindings {
		if m.timers[i] == nil && !m.prev[i] && snap.Pressed(b.Index) {
			axisTap[b.Axis] = true
		}
	}

	emit := func(id ButtonID) {
		b := buttonBindings[id]
		out = append(out, ScrollIntent{Button: id, Axis: b.Axis, Direction: b.Direction})
		m.lastScroll = now
		axisFired[b.Axis] = true
	}

	for i := range buttonBindings {
		id := ButtonID(i)
		b := buttonBindings[id]

		pressed := snap.Pressed(b.Index)
		wasPressed := m.prev[id]
		m.prev[id] = pressed

		t := m.timers[id]
		switch {
		case t == nil:
			if !pressed || wasPressed {
				continue
			}
			m.timers[id] = &ButtonTimer{PressStart: now}
			if axisFired[b.Axis] {
				continue
			}
			emit(id)

		case !pressed:
			m.timers[id] = nil

		default:
			if now.Sub(t.PressStart) < m.Timing.LongPressDelay {
				continue
			}
			if now.Sub(m.lastScroll) < m.Timing.ScrollInterval || axisFired[b.Axis] || axisTap[b.Axis] {
				continue
			}
			emit(id)
		}
	}

	return out
}

// Phase reports the phase of a button at time now.
func (m *ButtonMachine) Phase(id ButtonID, now time.Time) ButtonPhase {
	t := m.timers[id]
	if t == nil {
		return PhaseReleased
	}
	if now.Sub(t.PressStart) < m.Timing.LongPressDelay {
		return PhaseHeldPending
	}
	return PhaseHeldRepeating
}

// Timer returns the button's timer, or nil if the button is released.
func (m *ButtonMachine) Timer(id ButtonID) *ButtonTimer {
	return m.timers[id]
}

// LastScroll returns the repeat clock.
func (m *ButtonMachine) LastScroll() time.Time {
	return m.lastScroll
}

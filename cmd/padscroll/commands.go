package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// Motion is the scroll animation style passed through to dispatchers.
type Motion string

const (
	MotionSmooth  Motion = "smooth"
	MotionInstant Motion = "instant"
)

// CmdScroll moves the viewport by a signed pixel delta.
// One CmdScroll carries every intent of a tick.
type CmdScroll struct {
	DX     float64
	DY     float64
	Motion Motion
}

func (CmdScroll) commandMarker() {}
func (c CmdScroll) String() string {
	return fmt.Sprintf("CmdScroll(dx=%.1f, dy=%.1f, motion=%s)", c.DX, c.DY, c.Motion)
}

// CmdNotifyDevice tells observers that the active device changed.
type CmdNotifyDevice struct {
	Connected bool
	ID        DeviceID
	Name      string
}

func (CmdNotifyDevice) commandMarker() {}
func (c CmdNotifyDevice) String() string {
	return fmt.Sprintf("CmdNotifyDevice(connected=%v, id=%s)", c.Connected, c.ID)
}

// CmdPublishStatus delivers a snapshot to the requester of RequestStatus.
type CmdPublishStatus struct {
	Reply    chan StatusSnapshot
	Snapshot StatusSnapshot
}

func (CmdPublishStatus) commandMarker() {}
func (CmdPublishStatus) String() string { return "CmdPublishStatus()" }

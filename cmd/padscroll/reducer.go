package main

import "time"

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (ticks, device lifecycle, client requests, dispatch failures)
//   - Commands: side effects requested by the reducer (scroll, notify, publish status)
//   - Reduce(): computes next state + commands, without performing I/O
//
// The reducer must be pure. Sampling happens in the daemon loop before the
// Tick is built, and dispatching happens in the effects layer afterwards.

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state plus a set of Commands to execute.
//
// All scroll intents of one tick are coalesced into a single CmdScroll.
type ReduceResult struct {
	State    *DaemonState
	Commands []Command
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
//
// The daemon loop must:
// - sample the active device and build Tick events
// - execute Commands
// - feed resulting observation Events back into Reduce()
func Reduce(s *DaemonState, e Event) ReduceResult {
	if s == nil {
		s = NewDaemonState(defaultViewportWidth, defaultViewportHeight)
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		at = te.At
	}
	if at.IsZero() {
		at = time.Now()
	}

	var cmds []Command

	switch ev := e.(type) {
	case Tick:
		cmds = reduceTick(s, ev)

	case DeviceConnected:
		// No arbitration: the first device wins until it goes away.
		// The same id connecting again is a reconnect and resets state.
		if s.Device.Active && s.Device.ID != ev.ID {
			break
		}
		s.ActivateDevice(ev, at)
		cmds = append(cmds, CmdNotifyDevice{Connected: true, ID: ev.ID, Name: ev.Name})

	case DeviceDisconnected:
		if !s.Device.Active || s.Device.ID != ev.ID {
			break
		}
		name := s.Device.Name
		s.DeactivateDevice()
		cmds = append(cmds, CmdNotifyDevice{Connected: false, ID: ev.ID, Name: name})

	case DevicesAvailable:
		if s.Device.Active || len(ev.Devices) == 0 {
			break
		}
		d := ev.Devices[0]
		s.ActivateDevice(d, at)
		cmds = append(cmds, CmdNotifyDevice{Connected: true, ID: d.ID, Name: d.Name})

	case ViewportChanged:
		if ev.Width <= 0 || ev.Height <= 0 {
			break
		}
		s.SetViewport(ev.Width, ev.Height, at)

	case ResetRequested:
		s.Buttons.Reset()

	case RequestStatus:
		cmds = append(cmds, CmdPublishStatus{Reply: ev.Reply, Snapshot: s.Snapshot(at)})

	case ScrollDispatchFailed:
		s.Stats.DispatchFailures++
		if ev.Err != nil {
			s.Stats.LastError = ev.Err.Error()
		}

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:    s,
		Commands: cmds,
	}
}

// reduceTick runs the button machine for one sampled tick.
func reduceTick(s *DaemonState, t Tick) []Command {
	if !s.Device.Active {
		return nil
	}
	if !t.Found {
		// Transient absence: timers and the previous snapshot are kept as-is.
		s.Stats.MissedSamples++
		return nil
	}

	intents := s.Buttons.Step(t.Now, t.Snapshot.Limit(s.Device.Buttons))
	if len(intents) == 0 {
		return nil
	}

	stepX, stepY := s.ScrollStep()
	cmd := CmdScroll{Motion: MotionSmooth}
	for _, in := range intents {
		switch in.Axis {
		case AxisVertical:
			cmd.DY += float64(in.Direction) * stepY
		case AxisHorizontal:
			cmd.DX += float64(in.Direction) * stepX
		}
	}

	s.RecordScroll(len(intents), cmd, t.Now)
	return []Command{cmd}
}

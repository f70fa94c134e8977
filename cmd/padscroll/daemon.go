package main

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - The daemon loop is the only place that samples the device and executes
//     side effects (dispatchers, notifiers, status replies).
//   - Effect failures are turned into Events and fed back into the reducer.
//   - Ticks run synchronously and never overlap.
//
// ============================================================================

// runDaemon is the main daemon loop that:
//   - Receives Events from the device source, browser clients and IPC
//   - Samples the active device and emits Tick events on a fixed cadence
//   - Reduces events into (state, commands)
//   - Executes commands and feeds observations back into the reducer
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	sampler Sampler,
	targets effectTargets,
	state *DaemonState,
	tickHz int,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	if tickHz <= 0 {
		tickHz = defaultTickHz
	}

	ticker := time.NewTicker(time.Second / time.Duration(tickHz))
	defer ticker.Stop()

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}
	enqueueCommands := func(cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		cmdQueue = append(cmdQueue, cmds...)
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev)
			if rr.State != nil {
				state = rr.State
			}
			enqueueCommands(rr.Commands)
		}
	}

	// Execute all queued commands, enqueuing observation events.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(targets, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			if !state.Device.Active {
				continue
			}
			enqueueEvent(sampleTick(sampler, state.Device.ID, now, logger))
			flushEvents()
			flushCommands()
		}
	}
}

// sampleTick reads the active device and builds the Tick for now.
func sampleTick(sampler Sampler, id DeviceID, now time.Time, logger *slog.Logger) Tick {
	snap, err := sampler.Sample(id)
	if err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			logger.Debug("sample failed", "device", id, "error", err)
		}
		return Tick{Now: now}
	}
	return Tick{Now: now, Snapshot: snap, Found: true}
}

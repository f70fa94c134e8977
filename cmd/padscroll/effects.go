package main

import (
	"log/slog"
	"time"
)

// effectTargets are the external systems commands act on. Either may be nil.
type effectTargets struct {
	Dispatcher ScrollDispatcher
	Notifier   DeviceNotifier
}

// runEffect executes a single reducer-emitted Command (side effect) and emits
// observation Events via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O, but never blocks.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
// - The daemon loop is responsible for sequencing: Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(
	targets effectTargets,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdScroll:
		if targets.Dispatcher == nil {
			onEvent(ScrollDispatchFailed{Command: cmd, Err: errNoDispatcher{}, At: now})
			return
		}
		logger.Debug("scroll", "dx", c.DX, "dy", c.DY, "motion", c.Motion)
		if err := targets.Dispatcher.Scroll(ScrollDelta{DX: c.DX, DY: c.DY, Motion: c.Motion}); err != nil {
			logger.Warn("scroll dispatch failed", "error", err, "dx", c.DX, "dy", c.DY)
			onEvent(ScrollDispatchFailed{Command: cmd, Err: err, At: now})
		}

	case CmdNotifyDevice:
		if c.Connected {
			logger.Info("device active", "id", c.ID, "name", c.Name)
		} else {
			logger.Info("device inactive", "id", c.ID, "name", c.Name)
		}
		if targets.Notifier != nil {
			targets.Notifier.NotifyDevice(c.Connected, c.ID, c.Name)
		}

	case CmdPublishStatus:
		// Deliver reducer-produced snapshot to the requester.
		// This keeps the reducer pure by moving the channel send into the effects layer.
		if c.Reply == nil {
			logger.Warn("status requested with nil reply channel")
			return
		}

		// Never block the daemon loop.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("status reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(ScrollDispatchFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}

// errNoDispatcher indicates a scroll was produced with no dispatcher configured.
type errNoDispatcher struct{}

func (errNoDispatcher) Error() string { return "no scroll dispatcher" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }

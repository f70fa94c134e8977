//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// runDeviceMonitor watches dir for evdev nodes appearing, disappearing or
// changing permissions, and calls rescan once per burst of changes.
//
// udev creates the node first and fixes its permissions shortly after, so a
// Chmod counts as a change too.
func runDeviceMonitor(ctx context.Context, dir string, logger *slog.Logger, rescan func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("watching for input devices", "dir", dir)

	timer := time.NewTimer(monitorDebounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if pending {
				pending = false
				rescan()
			}

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), "event") {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Chmod) {
				continue
			}
			logger.Debug("input node changed", "op", ev.Op.String(), "path", ev.Name)
			if !pending {
				pending = true
				timer.Reset(monitorDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("device watcher error", "error", err)
		}
	}
}

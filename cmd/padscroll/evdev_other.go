//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

func newEvdevSource(dir, only string, logger *slog.Logger) (DeviceSource, error) {
	return nil, errors.New("evdev backend is only available on linux; use input.backend: sdl")
}

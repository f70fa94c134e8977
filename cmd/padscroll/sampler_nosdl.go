//go:build !sdl

package main

import (
	"errors"
	"log/slog"
)

func newSDLSource(logger *slog.Logger) (DeviceSource, error) {
	return nil, errors.New("SDL backend not compiled in; rebuild with -tags sdl")
}

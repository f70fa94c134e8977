//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

type uinputWheel struct{}

func newUinputWheel(cfg UinputConfig, logger *slog.Logger) (*uinputWheel, error) {
	return nil, errors.New("uinput is only available on linux")
}

func (w *uinputWheel) Scroll(d ScrollDelta) error { return errNoDispatcher{} }
func (w *uinputWheel) Run(ctx context.Context) error { return nil }
func (w *uinputWheel) Close() error { return nil }

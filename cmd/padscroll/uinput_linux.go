//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	uinputMaxNameSize = 80
	uinputAbsCnt      = ABS_MAX + 1
	uinputBusVirtual  = 0x06
	uinputQueueSize   = 16
)

// uinputID mirrors struct input_id.
type uinputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev mirrors struct uinput_user_dev.
type uinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         uinputID
	EffectsMax uint32
	Absmax     [uinputAbsCnt]int32
	Absmin     [uinputAbsCnt]int32
	Absfuzz    [uinputAbsCnt]int32
	Absflat    [uinputAbsCnt]int32
}

// uinputWheel is a virtual pointer with a high-resolution scroll wheel.
// Scroll only queues; Run writes the wheel frames.
type uinputWheel struct {
	f      *os.File
	logger *slog.Logger

	pixelsPerDetent float64
	steps           int

	queue chan ScrollDelta
	wheel wheelState
}

func newUinputWheel(cfg UinputConfig, logger *slog.Logger) (*uinputWheel, error) {
	path := ExpandPath(cfg.Path)
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0o660)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := setupUinputWheel(int(f.Fd())); err != nil {
		_ = f.Close()
		return nil, err
	}

	var name [uinputMaxNameSize]byte
	copy(name[:], "padscroll virtual wheel")
	dev := uinputUserDev{
		Name: name,
		ID: uinputID{
			Bustype: uinputBusVirtual,
			Vendor:  0x1209,
			Product: 0x5c01,
			Version: 1,
		},
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, dev); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("encode uinput_user_dev: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write uinput_user_dev: %w", err)
	}
	if err := ioctlInt(int(f.Fd()), uiDevCreate(), 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	steps := wheelSmoothSteps
	if !cfg.Smooth {
		steps = 1
	}
	logger.Info("virtual wheel created", "path", path, "pixels_per_detent", cfg.PixelsPerDetent, "smooth", cfg.Smooth)

	return &uinputWheel{
		f:               f,
		logger:          logger,
		pixelsPerDetent: cfg.PixelsPerDetent,
		steps:           steps,
		queue:           make(chan ScrollDelta, uinputQueueSize),
	}, nil
}

// setupUinputWheel declares the capabilities of the virtual device. Desktop
// stacks only treat a device as a pointer if it has a button and relative
// X/Y, so those are declared even though they are never sent.
func setupUinputWheel(fd int) error {
	for _, ev := range []uintptr{EV_SYN, EV_KEY, EV_REL} {
		if err := ioctlInt(fd, uiSetEvBit(), ev); err != nil {
			return fmt.Errorf("UI_SET_EVBIT %#x: %w", ev, err)
		}
	}
	if err := ioctlInt(fd, uiSetKeyBit(), BTN_LEFT); err != nil {
		return fmt.Errorf("UI_SET_KEYBIT BTN_LEFT: %w", err)
	}
	for _, rel := range []uintptr{REL_X, REL_Y, REL_WHEEL, REL_HWHEEL, REL_WHEEL_HI_RES, REL_HWHEEL_HI_RES} {
		if err := ioctlInt(fd, uiSetRelBit(), rel); err != nil {
			return fmt.Errorf("UI_SET_RELBIT %#x: %w", rel, err)
		}
	}
	return nil
}

// Scroll implements ScrollDispatcher.
func (w *uinputWheel) Scroll(d ScrollDelta) error {
	select {
	case w.queue <- d:
		return nil
	default:
		return errDispatchQueueFull
	}
}

// Run writes queued scrolls until ctx is done. Write failures are logged
// and the scroll is dropped.
func (w *uinputWheel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-w.queue:
			if err := w.emit(ctx, d); err != nil {
				w.logger.Warn("virtual wheel write failed", "error", err)
			}
		}
	}
}

func (w *uinputWheel) emit(ctx context.Context, d ScrollDelta) error {
	frames := w.wheel.plan(d, w.pixelsPerDetent, w.steps)
	for i, f := range frames {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wheelSmoothStepWait):
			}
		}
		b, err := encodeInputEvents(f.events())
		if err != nil {
			return err
		}
		if _, err := w.f.Write(b); err != nil {
			return fmt.Errorf("write wheel frame: %w", err)
		}
	}
	return nil
}

// Close destroys the virtual device.
func (w *uinputWheel) Close() error {
	_ = ioctlInt(int(w.f.Fd()), uiDevDestroy(), 0)
	return w.f.Close()
}

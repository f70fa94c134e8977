//go:build sdl

package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/jupiterrider/purego-sdl3/sdl"
)

const (
	sdlPollDelayNS = 8_000_000

	sdlHatUp    uint8 = 0x01
	sdlHatRight uint8 = 0x02
	sdlHatDown  uint8 = 0x04
	sdlHatLeft  uint8 = 0x08
)

type sdlJoystick struct {
	js      *sdl.Joystick
	id      DeviceID
	name    string
	buttons int32
	hats    int32
}

// sdlSource reads joysticks through SDL3. SDL calls happen only on the Run
// goroutine, which is locked to its OS thread; Sample reads the snapshot
// cached by the last poll.
type sdlSource struct {
	logger *slog.Logger

	joysticks map[sdl.JoystickID]*sdlJoystick

	mu    sync.Mutex
	snaps map[DeviceID]Snapshot
}

func newSDLSource(logger *slog.Logger) (DeviceSource, error) {
	return &sdlSource{
		logger:    logger,
		joysticks: make(map[sdl.JoystickID]*sdlJoystick),
		snaps:     make(map[DeviceID]Snapshot),
	}, nil
}

// Sample implements Sampler.
func (s *sdlSource) Sample(id DeviceID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snaps[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return snap, nil
}

// Run initializes SDL and polls joysticks until ctx is done.
func (s *sdlSource) Run(ctx context.Context, events chan<- Event) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		return fmt.Errorf("SDL init: %s", sdl.GetError())
	}
	defer sdl.Quit()
	defer s.closeAll()

	s.logger.Info("SDL3 joystick subsystem initialized")

	for _, id := range sdl.GetJoysticks() {
		if c, ok := s.open(id); ok && !sendEvent(ctx, events, c) {
			return nil
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if !s.processEvents(ctx, events) {
			return nil
		}
		s.poll()
		sdl.DelayNS(sdlPollDelayNS)
	}
}

// Close is a no-op; joysticks are released when Run returns.
func (s *sdlSource) Close() error { return nil }

func (s *sdlSource) processEvents(ctx context.Context, events chan<- Event) bool {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			if c, ok := s.open(event.JDevice().Which); ok {
				if !sendEvent(ctx, events, c) {
					return false
				}
			}

		case sdl.EventJoystickRemoved:
			id, ok := s.remove(event.JDevice().Which)
			if !ok {
				continue
			}
			if !sendEvent(ctx, events, DeviceDisconnected{ID: id}) {
				return false
			}
			if remaining := s.connected(); len(remaining) > 0 {
				if !sendEvent(ctx, events, DevicesAvailable{Devices: remaining}) {
					return false
				}
			}
		}
	}
	return true
}

func (s *sdlSource) open(instanceID sdl.JoystickID) (DeviceConnected, bool) {
	if _, exists := s.joysticks[instanceID]; exists {
		return DeviceConnected{}, false
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		s.logger.Warn("failed to open joystick", "instance", instanceID, "error", sdl.GetError())
		return DeviceConnected{}, false
	}

	j := &sdlJoystick{
		js:      js,
		id:      DeviceID(fmt.Sprintf("sdl:%d", instanceID)),
		name:    sdl.GetJoystickName(js),
		buttons: sdl.GetNumJoystickButtons(js),
		hats:    sdl.GetNumJoystickHats(js),
	}
	s.joysticks[instanceID] = j

	s.logger.Info("joystick found",
		"id", j.id,
		"name", j.name,
		"vendor", fmt.Sprintf("%04x", sdl.GetJoystickVendor(js)),
		"product", fmt.Sprintf("%04x", sdl.GetJoystickProduct(js)),
		"buttons", j.buttons,
		"hats", j.hats)

	return DeviceConnected{ID: j.id, Name: j.name, Buttons: j.standardButtons()}, true
}

func (s *sdlSource) remove(instanceID sdl.JoystickID) (DeviceID, bool) {
	j, exists := s.joysticks[instanceID]
	if !exists {
		return "", false
	}
	s.logger.Info("joystick removed", "id", j.id, "name", j.name)
	sdl.CloseJoystick(j.js)
	delete(s.joysticks, instanceID)

	s.mu.Lock()
	delete(s.snaps, j.id)
	s.mu.Unlock()
	return j.id, true
}

func (s *sdlSource) closeAll() {
	for instanceID := range s.joysticks {
		s.remove(instanceID)
	}
}

func (s *sdlSource) connected() []DeviceConnected {
	out := make([]DeviceConnected, 0, len(s.joysticks))
	for _, j := range s.joysticks {
		out = append(out, DeviceConnected{ID: j.id, Name: j.name, Buttons: j.standardButtons()})
	}
	slices.SortFunc(out, func(a, b DeviceConnected) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// poll refreshes the cached snapshot of every open joystick. Joystick state
// was already updated by PollEvent.
func (s *sdlSource) poll() {
	fresh := make(map[DeviceID]Snapshot, len(s.joysticks))
	for _, j := range s.joysticks {
		if !sdl.JoystickConnected(j.js) {
			continue
		}
		fresh[j.id] = j.snapshot()
	}

	s.mu.Lock()
	s.snaps = fresh
	s.mu.Unlock()
}

// standardButtons is the number of standard-layout buttons the joystick can
// report. A hat supplies the four D-pad entries.
func (j *sdlJoystick) standardButtons() int {
	if j.hats > 0 {
		return stdButtonCount
	}
	return min(int(j.buttons), stdButtonCount)
}

// snapshot maps raw SDL buttons onto the standard layout. Raw indices below
// the D-pad block map one to one; the D-pad comes from hat 0 when present.
func (j *sdlJoystick) snapshot() Snapshot {
	snap := make(Snapshot, j.standardButtons())
	for i := range snap {
		if i >= stdIndexDpadUp && i <= stdIndexDpadRight && j.hats > 0 {
			continue
		}
		if int32(i) < j.buttons {
			snap[i] = sdl.GetJoystickButton(j.js, int32(i))
		}
	}
	if j.hats > 0 {
		hat := sdl.GetJoystickHat(j.js, 0)
		snap[stdIndexDpadUp] = hat&sdlHatUp != 0
		snap[stdIndexDpadDown] = hat&sdlHatDown != 0
		snap[stdIndexDpadLeft] = hat&sdlHatLeft != 0
		snap[stdIndexDpadRight] = hat&sdlHatRight != 0
	}
	return snap
}

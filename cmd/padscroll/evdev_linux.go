//go:build linux

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"unsafe"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

var errNotGamepad = errors.New("not a gamepad")

// evdevDevice is one open /dev/input/event* node.
type evdevDevice struct {
	id      DeviceID
	fd      int
	name    string
	vendor  uint16
	product uint16
	layout  padLayout
}

func openEvdevDevice(path string) (*evdevDevice, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d, err := probeEvdevDevice(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	d.id = DeviceID(path)
	return d, nil
}

func probeEvdevDevice(fd int) (*evdevDevice, error) {
	evBits, err := ioctlBits(fd, eviocgbit(0, evBitmapLen), evBitmapLen)
	if err != nil {
		return nil, fmt.Errorf("EVIOCGBIT: %w", err)
	}
	keyBits, err := ioctlBits(fd, eviocgbit(EV_KEY, keyBitmapLen), keyBitmapLen)
	if err != nil {
		return nil, fmt.Errorf("EVIOCGBIT(EV_KEY): %w", err)
	}
	absBits := make(bitSet, absBitmapLen)
	if evBits.has(EV_ABS) {
		if absBits, err = ioctlBits(fd, eviocgbit(EV_ABS, absBitmapLen), absBitmapLen); err != nil {
			return nil, fmt.Errorf("EVIOCGBIT(EV_ABS): %w", err)
		}
	}

	layout, ok := detectLayout(evBits, keyBits, absBits)
	if !ok {
		return nil, errNotGamepad
	}

	d := &evdevDevice{fd: fd, layout: layout}

	var name [deviceNameSz]byte
	if err := ioctlPtr(fd, eviocgname(deviceNameSz), unsafe.Pointer(&name[0])); err == nil {
		if i := bytes.IndexByte(name[:], 0); i >= 0 {
			d.name = string(name[:i])
		} else {
			d.name = string(name[:])
		}
	}

	// struct input_id { bustype, vendor, product, version }
	var id [4]uint16
	if err := ioctlPtr(fd, eviocgid(), unsafe.Pointer(&id[0])); err == nil {
		d.vendor, d.product = id[1], id[2]
	}

	return d, nil
}

// sample queries the current key state and hat position.
func (d *evdevDevice) sample() (Snapshot, error) {
	keys, err := ioctlBits(d.fd, eviocgkey(keyBitmapLen), keyBitmapLen)
	if err != nil {
		return nil, fmt.Errorf("EVIOCGKEY: %w", err)
	}

	var hatX, hatY int32
	if d.layout.UsesHat {
		var ai absInfo
		if err := ioctlPtr(d.fd, eviocgabs(ABS_HAT0X), unsafe.Pointer(&ai)); err != nil {
			return nil, fmt.Errorf("EVIOCGABS(HAT0X): %w", err)
		}
		hatX = ai.Value
		if err := ioctlPtr(d.fd, eviocgabs(ABS_HAT0Y), unsafe.Pointer(&ai)); err != nil {
			return nil, fmt.Errorf("EVIOCGABS(HAT0Y): %w", err)
		}
		hatY = ai.Value
	}

	return decodeSnapshot(d.layout, keys, hatX, hatY), nil
}

func (d *evdevDevice) connected() DeviceConnected {
	return DeviceConnected{ID: d.id, Name: d.name, Buttons: d.layout.Buttons}
}

// isGoneErr reports whether err means the device node no longer works.
func isGoneErr(err error) bool {
	return errors.Is(err, unix.ENODEV) || errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENXIO)
}

// ============================================================================
// Source
// ============================================================================

// evdevSource samples gamepads through /dev/input/event* nodes.
//
// Sample is called by the daemon goroutine; rescans and hangups happen on
// the monitor and epoll goroutines. mu guards the device maps.
type evdevSource struct {
	dir    string
	only   string // fixed device path; empty means scan dir
	logger *slog.Logger

	poller *epollWatcher
	open   func(path string) (*evdevDevice, error)

	mu      sync.Mutex
	devices map[DeviceID]*evdevDevice
	byFD    map[int]DeviceID
	readBuf []byte
}

func newEvdevSource(dir, only string, logger *slog.Logger) (DeviceSource, error) {
	poller, err := newEpollWatcher()
	if err != nil {
		return nil, err
	}
	return &evdevSource{
		dir:     dir,
		only:    only,
		logger:  logger,
		poller:  poller,
		open:    openEvdevDevice,
		devices: make(map[DeviceID]*evdevDevice),
		byFD:    make(map[int]DeviceID),
		readBuf: make([]byte, 64*inputEventSize),
	}, nil
}

// Sample implements Sampler.
func (s *evdevSource) Sample(id DeviceID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	snap, err := d.sample()
	if err != nil {
		if isGoneErr(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrDeviceNotFound)
		}
		return nil, err
	}
	return snap, nil
}

// Run performs the startup scan and then follows hotplug until ctx is done.
func (s *evdevSource) Run(ctx context.Context, events chan<- Event) error {
	s.rescan(ctx, events)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.poller.run(gctx, func(fd int, ev uint32) {
			s.handleReady(gctx, events, fd, ev)
		})
	})

	watchDir := s.dir
	if s.only != "" {
		watchDir = filepath.Dir(s.only)
	}
	g.Go(func() error {
		return runDeviceMonitor(gctx, watchDir, s.logger, func() {
			s.rescan(gctx, events)
		})
	})

	return g.Wait()
}

// Close releases every open device.
func (s *evdevSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.devices {
		s.poller.remove(d.fd)
		_ = unix.Close(d.fd)
		delete(s.devices, id)
	}
	clear(s.byFD)
	return s.poller.close()
}

func (s *evdevSource) candidatePaths() []string {
	if s.only != "" {
		return []string{s.only}
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, "event*"))
	if err != nil {
		s.logger.Warn("scan input dir failed", "dir", s.dir, "error", err)
		return nil
	}
	slices.Sort(paths)
	return paths
}

// rescan reconciles open devices with the nodes present in dir and
// announces the differences.
func (s *evdevSource) rescan(ctx context.Context, events chan<- Event) {
	paths := s.candidatePaths()
	present := make(map[DeviceID]bool, len(paths))
	for _, p := range paths {
		present[DeviceID(p)] = true
	}

	var removed []DeviceID
	var added []DeviceConnected

	s.mu.Lock()
	for id, d := range s.devices {
		if present[id] {
			continue
		}
		s.closeLocked(d)
		removed = append(removed, id)
	}
	for _, p := range paths {
		id := DeviceID(p)
		if _, ok := s.devices[id]; ok {
			continue
		}
		d, err := s.open(p)
		if err != nil {
			if errors.Is(err, errNotGamepad) {
				s.logger.Debug("skipping input device", "path", p, "reason", "not a gamepad")
			} else {
				s.logger.Debug("skipping input device", "path", p, "error", err)
			}
			continue
		}
		if err := s.poller.add(d.fd); err != nil {
			s.logger.Warn("cannot watch device", "path", p, "error", err)
		}
		s.devices[id] = d
		s.byFD[d.fd] = id
		added = append(added, d.connected())
		s.logger.Info("gamepad found",
			"path", p,
			"name", d.name,
			"vendor", fmt.Sprintf("%04x", d.vendor),
			"product", fmt.Sprintf("%04x", d.product),
			"buttons", d.layout.Buttons,
			"dpad", dpadKind(d.layout))
	}
	remaining := s.connectedLocked()
	s.mu.Unlock()

	s.announceRemoved(ctx, events, removed, remaining)
	for _, c := range added {
		if !sendEvent(ctx, events, c) {
			return
		}
	}
}

func dpadKind(l padLayout) string {
	switch {
	case l.UsesHat:
		return "hat"
	case l.Buttons > stdIndexDpadUp:
		return "keys"
	default:
		return "none"
	}
}

// handleReady drains a readable device and drops it on hangup.
func (s *evdevSource) handleReady(ctx context.Context, events chan<- Event, fd int, ev uint32) {
	if isHangup(ev) || s.drain(fd) {
		s.removeFD(ctx, events, fd)
	}
}

// drain reads and discards queued input events so the kernel buffer never
// overflows. It returns true if the device is gone.
func (s *evdevSource) drain(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byFD[fd]
	if !ok {
		return false
	}
	for {
		n, err := unix.Read(fd, s.readBuf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return isGoneErr(err)
		}
		if n <= 0 {
			return false
		}
		for _, e := range decodeInputEvents(s.readBuf[:n]) {
			if e.Type == EV_KEY || (e.Type == EV_ABS && (e.Code == ABS_HAT0X || e.Code == ABS_HAT0Y)) {
				s.logger.Debug("evdev input", "device", id, "type", e.Type, "code", e.Code, "value", e.Value)
			}
		}
	}
}

func (s *evdevSource) removeFD(ctx context.Context, events chan<- Event, fd int) {
	s.mu.Lock()
	id, ok := s.byFD[fd]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.closeLocked(s.devices[id])
	remaining := s.connectedLocked()
	s.mu.Unlock()

	s.announceRemoved(ctx, events, []DeviceID{id}, remaining)
}

func (s *evdevSource) announceRemoved(ctx context.Context, events chan<- Event, removed []DeviceID, remaining []DeviceConnected) {
	if len(removed) == 0 {
		return
	}
	for _, id := range removed {
		s.logger.Info("gamepad removed", "path", id)
		if !sendEvent(ctx, events, DeviceDisconnected{ID: id}) {
			return
		}
	}
	if len(remaining) > 0 {
		sendEvent(ctx, events, DevicesAvailable{Devices: remaining})
	}
}

func (s *evdevSource) closeLocked(d *evdevDevice) {
	s.poller.remove(d.fd)
	_ = unix.Close(d.fd)
	delete(s.byFD, d.fd)
	delete(s.devices, d.id)
}

// connectedLocked lists open devices in path order.
func (s *evdevSource) connectedLocked() []DeviceConnected {
	out := make([]DeviceConnected, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d.connected())
	}
	slices.SortFunc(out, func(a, b DeviceConnected) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

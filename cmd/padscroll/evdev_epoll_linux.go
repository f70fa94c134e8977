//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// epollWatcher waits on many evdev file descriptors from one goroutine.
// It is used to drain device queues and to notice hangups (unplug) without
// a reader goroutine per device.
type epollWatcher struct {
	epfd int
}

// epollWaitMs bounds how long run blocks before re-checking ctx.
const epollWaitMs = 250

func newEpollWatcher() (*epollWatcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &epollWatcher{epfd: epfd}, nil
}

// add registers fd for readability. Errors and hangups are always reported.
func (w *epollWatcher) add(fd int) error {
	event := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
	}
	return nil
}

// remove unregisters fd. It must be called before fd is closed.
func (w *epollWatcher) remove(fd int) {
	_ = unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// run calls handle for every ready descriptor until ctx is done.
func (w *epollWatcher) run(ctx context.Context, handle func(fd int, events uint32)) error {
	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(w.epfd, epollEvents, epollWaitMs)
		if err != nil {
			// Handle interrupted system call (e.g., SIGINT)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			handle(int(epollEvents[i].Fd), epollEvents[i].Events)
		}
	}
}

func (w *epollWatcher) close() error {
	return unix.Close(w.epfd)
}

func isHangup(events uint32) bool {
	return events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
}

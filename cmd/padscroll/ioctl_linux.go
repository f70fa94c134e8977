//go:build linux

package main

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctlPtr issues an ioctl whose argument is a pointer to a kernel-filled buffer.
func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlInt issues an ioctl whose argument is passed by value.
func ioctlInt(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// ioctlBits reads a bitmap of n bytes with req.
func ioctlBits(fd int, req uintptr, n int) (bitSet, error) {
	b := make(bitSet, n)
	if err := ioctlPtr(fd, req, unsafe.Pointer(&b[0])); err != nil {
		return nil, err
	}
	return b, nil
}

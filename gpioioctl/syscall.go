//go:build linux

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// This file holds every call this package makes into the operating system.
// They are package variables so that tests can stand in for the kernel.

package gpioioctl

import (
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	syscall_close_wrapper    = unix.Close
	syscall_nonblock_wrapper = unix.SetNonblock
	syscall_read_wrapper     = unix.Read
	syscall_poll_wrapper     = unix.Poll
	syscall_glob_wrapper     = filepath.Glob
)

// syscall_ioctl_wrapper carries arg as a pointer so that replacements never
// turn a uintptr back into one.
var syscall_ioctl_wrapper = func(fd int, req uintptr, arg unsafe.Pointer) unix.Errno {
	_, _, ep := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	return ep
}

var syscall_open_wrapper = func(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
}

// ioctl issues req against fd, restarting the call when it is interrupted
// by a signal. The returned error is a unix.Errno.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		switch ep := syscall_ioctl_wrapper(fd, req, arg); ep {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return ep
		}
	}
}

// readNonblock reads what is available on fd. It returns 0 and no error
// when nothing can be read without blocking.
func readNonblock(fd int, p []byte) (int, error) {
	for {
		n, err := syscall_read_wrapper(fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		default:
			return 0, err
		}
	}
}

// pollReadable waits until fd is readable. timeoutMs < 0 waits forever.
func pollReadable(fd int, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := syscall_poll_wrapper(fds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}

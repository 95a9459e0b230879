//go:build !linux

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
package gpioioctl

import (
	"errors"
	"unsafe"
)

var errNotLinux = errors.New("gpioioctl: GPIO character devices are only available on linux")

var (
	syscall_open_wrapper     = func(path string) (int, error) { return -1, errNotLinux }
	syscall_close_wrapper    = func(fd int) error { return errNotLinux }
	syscall_nonblock_wrapper = func(fd int, nonblocking bool) error { return errNotLinux }
	syscall_glob_wrapper     = func(pattern string) ([]string, error) { return nil, nil }
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	return errNotLinux
}

func readNonblock(fd int, p []byte) (int, error) {
	return 0, errNotLinux
}

func pollReadable(fd int, timeoutMs int) (bool, error) {
	return false, errNotLinux
}

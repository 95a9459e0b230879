package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when an offset set, consumer label or
	// attribute list would grow beyond what the kernel ABI can carry.
	ErrCapacityExceeded = errors.New("gpioioctl: capacity exceeded")
	// ErrAlreadyExists is returned when inserting an offset that is already
	// a member of the set.
	ErrAlreadyExists = errors.New("gpioioctl: offset already exists")
	// ErrNotFound is returned when an offset is not a member of a set or of
	// a line request.
	ErrNotFound = errors.New("gpioioctl: offset not found")
	// ErrConflict is returned when merging two MaskedBits that disagree on a
	// bit that both of them specify.
	ErrConflict = errors.New("gpioioctl: conflicting values")
	// ErrMalformed is returned when a string received from or sent to the
	// kernel is not a valid NUL terminated UTF-8 string.
	ErrMalformed = errors.New("gpioioctl: malformed data")
	// ErrUnsupported is returned when the kernel reports an attribute or an
	// event id this package does not know about.
	ErrUnsupported = errors.New("gpioioctl: unsupported kernel value")
	// ErrClosed is returned by operations on a closed Chip or Lines.
	ErrClosed = errors.New("gpioioctl: use of closed handle")
)

// OpError is returned when the operating system rejects a request made on
// behalf of a Chip or Lines. Err is the underlying unix.Errno or
// *os.PathError and is available through errors.Is and errors.As.
type OpError struct {
	// Op is the operation that failed, for example "get line info".
	Op string
	// Path is the character device the operation was made against.
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("gpioioctl: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gpioioctl: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

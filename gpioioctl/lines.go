package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// Lines is a set of lines acquired from a Chip with a single request. The
// kernel performs reads and writes on all of them as atomically as it can.
//
// Positions in MaskedBits exchanged with a Lines follow the order of
// Offsets(), which is ascending.
//
// Lines is not safe for concurrent use.
type Lines struct {
	chip     *Chip
	fd       int
	consumer string
	offsets  Offsets
	events   eventReader
	closed   bool
}

// Chip returns the chip the lines were acquired from.
func (l *Lines) Chip() *Chip {
	return l.chip
}

// Consumer returns the label the lines were requested with.
func (l *Lines) Consumer() string {
	return l.consumer
}

// Offsets returns the acquired offsets.
func (l *Lines) Offsets() OffsetsView {
	return l.offsets.View()
}

// Len returns the number of acquired lines.
func (l *Lines) Len() int {
	return l.offsets.Len()
}

// LineInfo returns the current state of one of the acquired lines.
func (l *Lines) LineInfo(offset uint32) (LineInfo, error) {
	if l.closed {
		return LineInfo{}, ErrClosed
	}
	if !l.offsets.Contains(offset) {
		return LineInfo{}, fmt.Errorf("line %d: %w", offset, ErrNotFound)
	}
	return l.chip.lineInfo(offset)
}

// Read returns the logical value of every line.
func (l *Lines) Read() (LineValues, error) {
	return l.read(l.offsets.View().mask())
}

// ReadOffsets returns the logical value of the lines at offsets.
func (l *Lines) ReadOffsets(offsets ...uint32) (LineValues, error) {
	var mask uint64
	var missing []uint32
	for _, offset := range offsets {
		i, ok := l.offsets.Index(offset)
		if !ok {
			missing = append(missing, offset)
			continue
		}
		mask |= 1 << uint(i)
	}
	if len(missing) != 0 {
		return LineValues{}, fmt.Errorf("offsets %v are not part of the request: %w", missing, ErrNotFound)
	}
	return l.read(mask)
}

// ReadBits returns the logical value of the lines selected by mask, indexed
// by position.
func (l *Lines) ReadBits(mask uint64) (MaskedBits, error) {
	lv, err := l.read(mask & l.offsets.View().mask())
	return lv.values, err
}

func (l *Lines) read(mask uint64) (LineValues, error) {
	view := l.offsets.View()
	if l.closed {
		return LineValues{offsets: view}, ErrClosed
	}
	data := gpio_v2_line_values{mask: mask}
	if mask != 0 {
		if err := ioctl_get_gpio_v2_line_values(l.fd, &data); err != nil {
			return LineValues{offsets: view}, &OpError{Op: "get values", Path: l.chip.path, Err: err}
		}
	}
	return LineValues{offsets: view, values: NewMaskedBits(data.bits, mask)}, nil
}

// Write sets the logical value of lines. Sources are merged first, so
// conflicting sources fail with ErrConflict before anything is written.
// Lines no source mentions keep their value. It returns the values written.
func (l *Lines) Write(sources ...ValueSource) (LineValues, error) {
	view := l.offsets.View()
	if l.closed {
		return LineValues{offsets: view}, ErrClosed
	}
	values, err := mergeSources(view, sources...)
	if err != nil {
		return LineValues{offsets: view}, err
	}
	if !values.IsEmpty() {
		data := values.lineValues()
		if err := ioctl_set_gpio_v2_line_values(l.fd, &data); err != nil {
			return LineValues{offsets: view}, &OpError{Op: "set values", Path: l.chip.path, Err: err}
		}
	}
	return LineValues{offsets: view, values: values}, nil
}

// Reconfigure changes the configuration of the lines without releasing
// them.
func (l *Lines) Reconfigure(cfg LineConfig) error {
	if l.closed {
		return ErrClosed
	}
	lc, err := cfg.lower(l.offsets.View())
	if err != nil {
		return err
	}
	if err := ioctl_gpio_v2_line_config(l.fd, &lc); err != nil {
		return &OpError{Op: "set config", Path: l.chip.path, Err: err}
	}
	return nil
}

// ReadEvent returns the next edge event without blocking. ok is false when
// no complete event is queued.
func (l *Lines) ReadEvent() (ev LineEvent, ok bool, err error) {
	if l.closed {
		return LineEvent{}, false, ErrClosed
	}
	return l.events.read(l.fd, l.chip.path)
}

// WaitEvent blocks until an event can be read or timeout expires. A
// negative timeout waits forever. The timeout is rounded up to the next
// millisecond.
func (l *Lines) WaitEvent(timeout time.Duration) (bool, error) {
	if l.closed {
		return false, ErrClosed
	}
	for {
		ms, rest := splitTimeout(timeout)
		ready, err := pollReadable(l.fd, ms)
		if err != nil {
			return false, &OpError{Op: "wait event", Path: l.chip.path, Err: err}
		}
		if ready || rest == 0 {
			return ready, nil
		}
		timeout = rest
	}
}

// maxPollWait is the longest timeout poll(2) takes in one call.
const maxPollWait = math.MaxInt32 * time.Millisecond

// splitTimeout returns the poll(2) timeout in milliseconds for the next call
// and what remains of timeout after it. A negative timeout is -1, forever.
func splitTimeout(timeout time.Duration) (ms int, rest time.Duration) {
	if timeout < 0 {
		return -1, 0
	}
	if timeout > maxPollWait {
		return math.MaxInt32, timeout - maxPollWait
	}
	return int((timeout + time.Millisecond - 1) / time.Millisecond), 0
}

// Close releases the lines. Closing already closed Lines is a no-op.
func (l *Lines) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	var err error
	if cerr := syscall_close_wrapper(l.fd); cerr != nil {
		err = &OpError{Op: "close lines", Path: l.chip.path, Err: cerr}
	}
	return multierr.Append(err, l.chip.release())
}

func (l *Lines) String() string {
	return fmt.Sprintf("%s%v", l.chip.name, l.offsets.View())
}

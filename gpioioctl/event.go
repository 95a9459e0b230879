package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// LineEvent is an edge detected on a line.
type LineEvent struct {
	// Timestamp is read from the clock selected with WithClock. With the
	// default clock it is relative to an arbitrary point in time.
	Timestamp time.Duration
	// Edge is gpio.RisingEdge or gpio.FallingEdge.
	Edge gpio.Edge
	// Offset is the line that triggered the event.
	Offset uint32
	// Seqno is the sequence number of the event across all lines of the
	// request.
	Seqno uint32
	// LineSeqno is the sequence number of the event on this line.
	LineSeqno uint32
}

func (e LineEvent) String() string {
	return fmt.Sprintf("%s on line %d at %s (seqno %d, line seqno %d)", e.Edge, e.Offset, e.Timestamp, e.Seqno, e.LineSeqno)
}

// eventReader accumulates the bytes of a line request descriptor until a
// whole gpio_v2_line_event is available.
type eventReader struct {
	buf []byte
	n   int
}

// read returns the next event from fd, the request descriptor of the chip
// at path. ok is false when no complete event is available yet. Only
// failures of the read itself are returned as *OpError.
func (r *eventReader) read(fd int, path string) (ev LineEvent, ok bool, err error) {
	if r.buf == nil {
		r.buf = make([]byte, sizeLineEvent)
	}
	for r.n < len(r.buf) {
		n, err := readNonblock(fd, r.buf[r.n:])
		if err != nil {
			return LineEvent{}, false, &OpError{Op: "read event", Path: path, Err: err}
		}
		if n == 0 {
			return LineEvent{}, false, nil
		}
		r.n += n
	}
	r.n = 0
	var raw gpio_v2_line_event
	if err := binary.Read(bytes.NewReader(r.buf), binary.NativeEndian, &raw); err != nil {
		return LineEvent{}, false, err
	}
	return newLineEvent(&raw)
}

func newLineEvent(raw *gpio_v2_line_event) (LineEvent, bool, error) {
	ev := LineEvent{
		Timestamp: time.Duration(raw.Timestamp_ns),
		Offset:    raw.Offset,
		Seqno:     raw.Seqno,
		LineSeqno: raw.LineSeqno,
	}
	switch raw.Id {
	case _GPIO_V2_LINE_EVENT_RISING_EDGE:
		ev.Edge = gpio.RisingEdge
	case _GPIO_V2_LINE_EVENT_FALLING_EDGE:
		ev.Edge = gpio.FallingEdge
	default:
		return LineEvent{}, false, fmt.Errorf("event id %d on line %d: %w", raw.Id, raw.Offset, ErrUnsupported)
	}
	return ev, true, nil
}

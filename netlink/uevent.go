// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package netlink listens to the kernel uevents that announce GPIO chips
// appearing and disappearing, for example when a USB GPIO expander is
// plugged in.
package netlink

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Uevent actions relevant to GPIO chips.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// ErrMalformed is returned by ParseUevent for datagrams that are not kernel
// uevents.
var ErrMalformed = errors.New("netlink: malformed uevent")

// ErrClosed is returned by Next once the Monitor is closed.
var ErrClosed = errors.New("netlink: monitor closed")

// Uevent is a kernel object event.
type Uevent struct {
	Action    string
	DevPath   string
	Subsystem string
	// DevName is the device node relative to /dev, when the object has one.
	DevName string
	Seqnum  string
	Env     map[string]string
}

// ParseUevent decodes a datagram received from the kernel uevent multicast
// group: a "action@devpath" header then KEY=VALUE pairs, all NUL terminated.
func ParseUevent(b []byte) (Uevent, error) {
	fields := bytes.Split(bytes.TrimRight(b, "\x00"), []byte{0})
	header := string(fields[0])
	at := strings.IndexByte(header, '@')
	if at <= 0 {
		return Uevent{}, fmt.Errorf("%w: header %q", ErrMalformed, header)
	}
	ev := Uevent{
		Action:  header[:at],
		DevPath: header[at+1:],
		Env:     make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok {
			return Uevent{}, fmt.Errorf("%w: field %q", ErrMalformed, field)
		}
		ev.Env[key] = value
	}
	if a, ok := ev.Env["ACTION"]; ok && a != ev.Action {
		return Uevent{}, fmt.Errorf("%w: action %q in header, %q in body", ErrMalformed, ev.Action, a)
	}
	ev.Subsystem = ev.Env["SUBSYSTEM"]
	ev.DevName = ev.Env["DEVNAME"]
	ev.Seqnum = ev.Env["SEQNUM"]
	return ev, nil
}

// IsGPIOChip reports whether the event concerns a GPIO character device.
func (ev *Uevent) IsGPIOChip() bool {
	return ev.Subsystem == "gpio" && strings.HasPrefix(path.Base(ev.DevName), "gpiochip")
}

// DevNode returns the path of the device node, or "" when there is none.
func (ev *Uevent) DevNode() string {
	if ev.DevName == "" {
		return ""
	}
	if path.IsAbs(ev.DevName) {
		return ev.DevName
	}
	return path.Join("/dev", ev.DevName)
}

func (ev Uevent) String() string {
	return fmt.Sprintf("%s %s (%s)", ev.Action, ev.DevPath, ev.Subsystem)
}

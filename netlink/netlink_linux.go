// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package netlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long Next takes to notice a cancelled context or
// a call to Close.
const pollInterval = 100 * time.Millisecond

// uevent datagrams are at most a page long.
const ueventBufferSize = 8192

// kernelGroup is the multicast group of events sent by the kernel. Group 2
// carries the events rebroadcast by udev.
const kernelGroup = 1

// ueventSocket is a simple wrapper around a Linux netlink kobject uevent
// socket.
type ueventSocket struct {
	fd int
}

// newUeventSocket returns a socket subscribed to kernel uevents.
func newUeventSocket() (*ueventSocket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to bind netlink socket: %w", err)
	}
	return &ueventSocket{fd: fd}, nil
}

// recv reads at most len(r) bytes from the socket into r. Returns the actually
// read number of bytes.
func (s *ueventSocket) recv(r []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, r, 0)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// close closes the socket.
func (s *ueventSocket) close() error {
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}

// Monitor receives kernel uevents.
type Monitor struct {
	mu     sync.Mutex
	s      *ueventSocket
	buf    []byte
	closed atomic.Bool
}

// NewMonitor subscribes to kernel uevents. Events that happened before the
// call are not reported.
func NewMonitor() (*Monitor, error) {
	s, err := newUeventSocket()
	if err != nil {
		return nil, err
	}
	return &Monitor{s: s, buf: make([]byte, ueventBufferSize)}, nil
}

// Next blocks until the next uevent, ctx is done or the monitor is closed.
// Datagrams that are not valid uevents are skipped.
func (m *Monitor) Next(ctx context.Context) (Uevent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Uevent{}, err
		}
		ev, ok, err := m.poll()
		if ok || err != nil {
			return ev, err
		}
	}
}

// poll waits at most pollInterval for one uevent.
func (m *Monitor) poll() (Uevent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return Uevent{}, false, ErrClosed
	}
	fds := []unix.PollFd{{Fd: int32(m.s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return Uevent{}, false, nil
		}
		return Uevent{}, false, fmt.Errorf("netlink: poll: %w", err)
	}
	if n == 0 {
		return Uevent{}, false, nil
	}
	size, err := m.s.recv(m.buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return Uevent{}, false, nil
		}
		if errors.Is(err, unix.ENOBUFS) {
			return Uevent{}, false, fmt.Errorf("netlink: events lost: %w", err)
		}
		return Uevent{}, false, fmt.Errorf("netlink: recv: %w", err)
	}
	ev, err := ParseUevent(m.buf[:size])
	if err != nil {
		// Not a kernel uevent.
		return Uevent{}, false, nil
	}
	return ev, true, nil
}

// Close releases the socket. A pending Next returns ErrClosed.
func (m *Monitor) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.close()
}

//go:build !linux

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package netlink

import (
	"context"
	"errors"
)

var errNotLinux = errors.New("netlink: uevents are only available on linux")

// Monitor receives kernel uevents.
type Monitor struct{}

// NewMonitor always fails outside of linux.
func NewMonitor() (*Monitor, error) {
	return nil, errNotLinux
}

// Next always fails outside of linux.
func (m *Monitor) Next(ctx context.Context) (Uevent, error) {
	return Uevent{}, errNotLinux
}

// Close does nothing.
func (m *Monitor) Close() error {
	return nil
}

// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiocdev registers the Linux GPIO character device driver with
// periph.
//
// After Init, every named line of every GPIO chip is available through
// periph.io/x/conn/v3/gpio/gpioreg. Package gpioioctl gives direct access to
// the chips and to multi-line requests.
package gpiocdev

import (
	"periph.io/x/conn/v3/driver/driverreg"

	// Make sure the GPIO character device driver is registered.
	_ "periph.io/x/gpiocdev/gpioioctl"
)

// Init calls driverreg.Init() and returns it as-is.
//
// The only difference is that by calling gpiocdev.Init(), you are guaranteed
// to have the GPIO character device driver implicitly loaded.
func Init() (*driverreg.State, error) {
	return driverreg.Init()
}

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// Package gpioioctl provides access to Linux GPIO lines using the ioctl
// interface of the GPIO character devices, version 2 of the ABI.
//
// https://docs.kernel.org/userspace-api/gpio/index.html
//
// A Chip is opened from its device node, /dev/gpiochipN, and describes its
// lines with LineInfo. Lines are acquired in groups of up to MaxLines with a
// LineRequest. The offsets of a request are kept sorted in an Offsets set,
// and the position of each offset in the set is the bit used for that line
// in the MaskedBits read from and written to the resulting Lines:
//
//	offsets, _ := gpioioctl.NewOffsets(2, 5, 7)
//	lines, err := chip.Request(&gpioioctl.LineRequest{
//		Offsets:    offsets,
//		LineConfig: gpioioctl.LineConfig{Options: gpioioctl.Options().Output()},
//	})
//	...
//	// Line 5 is at position 1.
//	lines.Write(gpioioctl.NewMaskedBits(0b010, 0b010))
//
// Line configurations are built with Options(), which only offers the
// settings that apply to the chosen direction.
//
// GPIO Pins can also be accessed via periph.io/x/conn/v3/gpio/gpioreg,
// or using the Chips collection to access the specific GPIO chip
// and using it's ByName()/ByNumber methods. Chip provides a LineSet feature
// that allows you to atomically read/write to multiple GPIO pins as a single
// operation.
package gpioioctl

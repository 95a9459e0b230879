package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"periph.io/x/conn/v3/gpio"
)

// Active is the polarity of a line.
type Active uint8

const (
	ActiveHigh Active = iota
	ActiveLow
)

func (a Active) String() string {
	if a == ActiveLow {
		return "ActiveLow"
	}
	return "ActiveHigh"
}

// Drive is the output drive of a line.
type Drive uint8

const (
	// DrivePushPull is only reported by LineInfo. A driven output is
	// configured through OutputOptions.
	DrivePushPull Drive = iota
	DriveOpenDrain
	DriveOpenSource
)

func (d Drive) String() string {
	switch d {
	case DriveOpenDrain:
		return "OpenDrain"
	case DriveOpenSource:
		return "OpenSource"
	default:
		return "PushPull"
	}
}

// EventClock selects the clock used to timestamp edge events.
type EventClock uint8

const (
	// ClockDefault is CLOCK_MONOTONIC.
	ClockDefault EventClock = iota
	ClockRealtime
	// ClockHTE is the hardware timestamp engine.
	ClockHTE
)

func (c EventClock) String() string {
	switch c {
	case ClockRealtime:
		return "Realtime"
	case ClockHTE:
		return "HTE"
	default:
		return "Monotonic"
	}
}

// LineOptions is a complete line configuration. It is implemented by
// InputOptions, OutputOptions and OpenOutputOptions, built with Options().
type LineOptions interface {
	// Flags returns the kernel flags for the configuration.
	Flags() LineFlag
	lineOptions()
}

// OptionBuilder is the starting point of a line configuration. Choosing a
// direction gives access to the settings that apply to it:
//
//	in := gpioioctl.Options().Input().WithBias(gpio.PullUp).WithEdgeDetect(gpio.BothEdges)
//	out := gpioioctl.Options().Output().WithActive(gpioioctl.ActiveLow)
//	od := gpioioctl.Options().Output().WithDriveOpen(gpioioctl.DriveOpenDrain).WithBias(gpio.PullUp)
type OptionBuilder struct{}

// Options returns an OptionBuilder.
func Options() OptionBuilder {
	return OptionBuilder{}
}

// Input configures the lines as inputs.
func (OptionBuilder) Input() InputOptions {
	return InputOptions{}
}

// Output configures the lines as push-pull outputs.
func (OptionBuilder) Output() OutputOptions {
	return OutputOptions{}
}

// InputOptions configures input lines.
type InputOptions struct {
	active Active
	bias   gpio.Pull
	edge   gpio.Edge
	clock  EventClock
}

func (o InputOptions) WithActive(active Active) InputOptions {
	o.active = active
	return o
}

// WithBias selects the bias. gpio.Float and gpio.PullNoChange disable it.
func (o InputOptions) WithBias(pull gpio.Pull) InputOptions {
	o.bias = pull
	return o
}

func (o InputOptions) WithEdgeDetect(edge gpio.Edge) InputOptions {
	o.edge = edge
	return o
}

// WithClock selects the event timestamp clock. It is ignored unless edge
// detection is enabled.
func (o InputOptions) WithClock(clock EventClock) InputOptions {
	o.clock = clock
	return o
}

func (o InputOptions) Flags() LineFlag {
	return LineFlag(_GPIO_V2_LINE_FLAG_INPUT) |
		activeFlags(o.active) |
		biasFlags(o.bias) |
		edgeFlags(o.edge) |
		clockFlags(o.edge, o.clock)
}

func (InputOptions) lineOptions() {}

// OutputOptions configures push-pull output lines.
type OutputOptions struct {
	active Active
}

func (o OutputOptions) WithActive(active Active) OutputOptions {
	o.active = active
	return o
}

// WithDriveOpen switches to an open drain or open source output. Any drive
// other than DriveOpenSource selects open drain.
func (o OutputOptions) WithDriveOpen(drive Drive) OpenOutputOptions {
	return OpenOutputOptions{active: o.active, drive: drive}
}

func (o OutputOptions) Flags() LineFlag {
	return LineFlag(_GPIO_V2_LINE_FLAG_OUTPUT) | activeFlags(o.active)
}

func (OutputOptions) lineOptions() {}

// OpenOutputOptions configures open drain and open source output lines.
type OpenOutputOptions struct {
	active Active
	drive  Drive
	bias   gpio.Pull
	edge   gpio.Edge
	clock  EventClock
}

func (o OpenOutputOptions) WithActive(active Active) OpenOutputOptions {
	o.active = active
	return o
}

func (o OpenOutputOptions) WithDrive(drive Drive) OpenOutputOptions {
	o.drive = drive
	return o
}

// WithBias selects the bias. gpio.Float and gpio.PullNoChange disable it.
func (o OpenOutputOptions) WithBias(pull gpio.Pull) OpenOutputOptions {
	o.bias = pull
	return o
}

func (o OpenOutputOptions) WithEdgeDetect(edge gpio.Edge) OpenOutputOptions {
	o.edge = edge
	return o
}

// WithClock selects the event timestamp clock. It is ignored unless edge
// detection is enabled.
func (o OpenOutputOptions) WithClock(clock EventClock) OpenOutputOptions {
	o.clock = clock
	return o
}

func (o OpenOutputOptions) Flags() LineFlag {
	drive := _GPIO_V2_LINE_FLAG_OPEN_DRAIN
	if o.drive == DriveOpenSource {
		drive = _GPIO_V2_LINE_FLAG_OPEN_SOURCE
	}
	return LineFlag(_GPIO_V2_LINE_FLAG_OUTPUT|drive) |
		activeFlags(o.active) |
		biasFlags(o.bias) |
		edgeFlags(o.edge) |
		clockFlags(o.edge, o.clock)
}

func (OpenOutputOptions) lineOptions() {}

func activeFlags(active Active) LineFlag {
	if active == ActiveLow {
		return LineFlag(_GPIO_V2_LINE_FLAG_ACTIVE_LOW)
	}
	return 0
}

func biasFlags(pull gpio.Pull) LineFlag {
	switch pull {
	case gpio.PullUp:
		return LineFlag(_GPIO_V2_LINE_FLAG_BIAS_PULL_UP)
	case gpio.PullDown:
		return LineFlag(_GPIO_V2_LINE_FLAG_BIAS_PULL_DOWN)
	default:
		return LineFlag(_GPIO_V2_LINE_FLAG_BIAS_DISABLED)
	}
}

func edgeFlags(edge gpio.Edge) LineFlag {
	switch edge {
	case gpio.RisingEdge:
		return LineFlag(_GPIO_V2_LINE_FLAG_EDGE_RISING)
	case gpio.FallingEdge:
		return LineFlag(_GPIO_V2_LINE_FLAG_EDGE_FALLING)
	case gpio.BothEdges:
		return LineFlag(_GPIO_V2_LINE_FLAG_EDGE_RISING | _GPIO_V2_LINE_FLAG_EDGE_FALLING)
	default:
		return 0
	}
}

// clockFlags only selects a clock when edge detection is on; without edges
// there is no event to timestamp.
func clockFlags(edge gpio.Edge, clock EventClock) LineFlag {
	if edgeFlags(edge) == 0 {
		return 0
	}
	switch clock {
	case ClockRealtime:
		return LineFlag(_GPIO_V2_LINE_FLAG_EVENT_CLOCK_REALTIME)
	case ClockHTE:
		return LineFlag(_GPIO_V2_LINE_FLAG_EVENT_CLOCK_HTE)
	default:
		return 0
	}
}

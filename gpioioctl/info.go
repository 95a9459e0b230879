package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// LineDir is the direction of a line.
type LineDir uint32

const (
	LineDirNotSet LineDir = 0
	LineInput     LineDir = 1
	LineOutput    LineDir = 2
)

func (d LineDir) String() string {
	switch d {
	case LineInput:
		return "Input"
	case LineOutput:
		return "Output"
	default:
		return "NotSet"
	}
}

// LineFlag is the kernel's configuration bitfield of a line.
type LineFlag uint64

const (
	FlagUsed               = LineFlag(_GPIO_V2_LINE_FLAG_USED)
	FlagActiveLow          = LineFlag(_GPIO_V2_LINE_FLAG_ACTIVE_LOW)
	FlagInput              = LineFlag(_GPIO_V2_LINE_FLAG_INPUT)
	FlagOutput             = LineFlag(_GPIO_V2_LINE_FLAG_OUTPUT)
	FlagEdgeRising         = LineFlag(_GPIO_V2_LINE_FLAG_EDGE_RISING)
	FlagEdgeFalling        = LineFlag(_GPIO_V2_LINE_FLAG_EDGE_FALLING)
	FlagOpenDrain          = LineFlag(_GPIO_V2_LINE_FLAG_OPEN_DRAIN)
	FlagOpenSource         = LineFlag(_GPIO_V2_LINE_FLAG_OPEN_SOURCE)
	FlagBiasPullUp         = LineFlag(_GPIO_V2_LINE_FLAG_BIAS_PULL_UP)
	FlagBiasPullDown       = LineFlag(_GPIO_V2_LINE_FLAG_BIAS_PULL_DOWN)
	FlagBiasDisabled       = LineFlag(_GPIO_V2_LINE_FLAG_BIAS_DISABLED)
	FlagEventClockRealtime = LineFlag(_GPIO_V2_LINE_FLAG_EVENT_CLOCK_REALTIME)
	FlagEventClockHTE      = LineFlag(_GPIO_V2_LINE_FLAG_EVENT_CLOCK_HTE)
)

var flagNames = []struct {
	flag LineFlag
	name string
}{
	{FlagUsed, "used"},
	{FlagActiveLow, "active-low"},
	{FlagInput, "input"},
	{FlagOutput, "output"},
	{FlagEdgeRising, "edge-rising"},
	{FlagEdgeFalling, "edge-falling"},
	{FlagOpenDrain, "open-drain"},
	{FlagOpenSource, "open-source"},
	{FlagBiasPullUp, "pull-up"},
	{FlagBiasPullDown, "pull-down"},
	{FlagBiasDisabled, "bias-disabled"},
	{FlagEventClockRealtime, "clock-realtime"},
	{FlagEventClockHTE, "clock-hte"},
}

// Has reports whether all of flags are set in f.
func (f LineFlag) Has(flags LineFlag) bool {
	return f&flags == flags
}

func (f LineFlag) String() string {
	var names []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(names, "|")
}

// LineInfo is a snapshot of a line's state as reported by the kernel.
type LineInfo struct {
	name     string
	consumer string
	offset   uint32
	flags    LineFlag
	attrs    lineAttrs
}

// lineAttrs is the folded attribute list of a line.
type lineAttrs struct {
	flags       LineFlag
	hasFlags    bool
	values      uint64
	hasValues   bool
	debounce    time.Duration
	hasDebounce bool
}

// newLineInfo decodes a kernel line info structure.
func newLineInfo(raw *gpio_v2_line_info) (LineInfo, error) {
	name, err := decodeName(raw.name[:])
	if err != nil {
		return LineInfo{}, fmt.Errorf("line %d name: %w", raw.offset, err)
	}
	consumer, err := decodeName(raw.consumer[:])
	if err != nil {
		return LineInfo{}, fmt.Errorf("line %d consumer: %w", raw.offset, err)
	}
	if raw.num_attrs > _GPIO_V2_LINE_NUM_ATTRS_MAX {
		return LineInfo{}, fmt.Errorf("line %d reports %d attributes: %w", raw.offset, raw.num_attrs, ErrMalformed)
	}
	info := LineInfo{name: name, consumer: consumer, offset: raw.offset, flags: LineFlag(raw.flags)}
	for i := range raw.attrs[:raw.num_attrs] {
		attr := &raw.attrs[i]
		switch attr.id {
		case _GPIO_V2_LINE_ATTR_ID_FLAGS:
			info.attrs.flags |= LineFlag(attr.value)
			info.attrs.hasFlags = true
		case _GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES:
			info.attrs.values = attr.value
			info.attrs.hasValues = true
		case _GPIO_V2_LINE_ATTR_ID_DEBOUNCE:
			info.attrs.debounce = time.Duration(attr.debounce()) * time.Microsecond
			info.attrs.hasDebounce = true
		default:
			return LineInfo{}, fmt.Errorf("line %d attribute id %d: %w", raw.offset, attr.id, ErrUnsupported)
		}
	}
	return info, nil
}

// encode is the inverse of newLineInfo.
func (li LineInfo) encode() (gpio_v2_line_info, error) {
	var raw gpio_v2_line_info
	var err error
	if raw.name, err = encodeName(li.name); err != nil {
		return raw, err
	}
	if raw.consumer, err = encodeName(li.consumer); err != nil {
		return raw, err
	}
	raw.offset = li.offset
	raw.flags = uint64(li.flags)
	add := func(attr gpio_v2_line_attribute) {
		raw.attrs[raw.num_attrs] = attr
		raw.num_attrs++
	}
	if li.attrs.hasFlags {
		add(gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_FLAGS, value: uint64(li.attrs.flags)})
	}
	if li.attrs.hasValues {
		add(gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES, value: li.attrs.values})
	}
	if li.attrs.hasDebounce {
		us, err := debounceMicros(li.attrs.debounce)
		if err != nil {
			return raw, err
		}
		attr := gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_DEBOUNCE}
		attr.setDebounce(us)
		add(attr)
	}
	return raw, nil
}

// Name returns the name the kernel driver gave the line. It may be empty.
func (li LineInfo) Name() string {
	return li.name
}

// Consumer returns the label of the process holding the line, if any.
func (li LineInfo) Consumer() string {
	return li.consumer
}

// Offset returns the line offset within its chip.
func (li LineInfo) Offset() uint32 {
	return li.offset
}

// Flags returns the effective flags of the line: the flags attribute when
// the kernel reported one, the base flags otherwise.
func (li LineInfo) Flags() LineFlag {
	if li.attrs.hasFlags {
		return li.attrs.flags
	}
	return li.flags
}

// BaseFlags returns the flags field of the line info.
func (li LineInfo) BaseFlags() LineFlag {
	return li.flags
}

// Debounce returns the debounce period, if one is configured.
func (li LineInfo) Debounce() (time.Duration, bool) {
	return li.attrs.debounce, li.attrs.hasDebounce
}

// Value returns the output value the kernel reported for the line.
func (li LineInfo) Value() (gpio.Level, bool) {
	if !li.attrs.hasValues {
		return gpio.Low, false
	}
	return gpio.Level(li.attrs.values&1 != 0), true
}

// Direction returns LineOutput for outputs and LineInput for anything else.
func (li LineInfo) Direction() LineDir {
	if li.Flags().Has(FlagOutput) {
		return LineOutput
	}
	return LineInput
}

// IsUsed reports whether the line is in use by the kernel or a process.
func (li LineInfo) IsUsed() bool {
	return li.Flags().Has(FlagUsed)
}

func (li LineInfo) IsActiveLow() bool {
	return li.Flags().Has(FlagActiveLow)
}

func (li LineInfo) IsOpenDrain() bool {
	return li.Flags().Has(FlagOpenDrain)
}

func (li LineInfo) IsOpenSource() bool {
	return li.Flags().Has(FlagOpenSource)
}

// Drive returns the output drive of the line.
func (li LineInfo) Drive() Drive {
	switch f := li.Flags(); {
	case f.Has(FlagOpenDrain):
		return DriveOpenDrain
	case f.Has(FlagOpenSource):
		return DriveOpenSource
	default:
		return DrivePushPull
	}
}

// Bias returns the bias of the line. gpio.PullNoChange means the kernel
// reported none.
func (li LineInfo) Bias() gpio.Pull {
	switch f := li.Flags(); {
	case f.Has(FlagBiasPullUp):
		return gpio.PullUp
	case f.Has(FlagBiasPullDown):
		return gpio.PullDown
	case f.Has(FlagBiasDisabled):
		return gpio.Float
	default:
		return gpio.PullNoChange
	}
}

// Edge returns the edge detection configured on the line.
func (li LineInfo) Edge() gpio.Edge {
	f := li.Flags()
	switch {
	case f.Has(FlagEdgeRising | FlagEdgeFalling):
		return gpio.BothEdges
	case f.Has(FlagEdgeRising):
		return gpio.RisingEdge
	case f.Has(FlagEdgeFalling):
		return gpio.FallingEdge
	default:
		return gpio.NoEdge
	}
}

// EventClock returns the clock used to timestamp the line's events.
func (li LineInfo) EventClock() EventClock {
	switch f := li.Flags(); {
	case f.Has(FlagEventClockHTE):
		return ClockHTE
	case f.Has(FlagEventClockRealtime):
		return ClockRealtime
	default:
		return ClockDefault
	}
}

func (li LineInfo) MarshalJSON() ([]byte, error) {
	var debounce string
	if d, ok := li.Debounce(); ok {
		debounce = d.String()
	}
	return json.Marshal(struct {
		Line      uint32 `json:"Line"`
		Name      string `json:"Name"`
		Consumer  string `json:"Consumer"`
		Direction string `json:"Direction"`
		Used      bool   `json:"Used"`
		ActiveLow bool   `json:"ActiveLow"`
		Drive     string `json:"Drive"`
		Pull      string `json:"Pull"`
		Edges     string `json:"Edges"`
		Debounce  string `json:"Debounce,omitempty"`
	}{
		Line:      li.Offset(),
		Name:      li.Name(),
		Consumer:  li.Consumer(),
		Direction: li.Direction().String(),
		Used:      li.IsUsed(),
		ActiveLow: li.IsActiveLow(),
		Drive:     li.Drive().String(),
		Pull:      li.Bias().String(),
		Edges:     li.Edge().String(),
		Debounce:  debounce})
}

// String returns information about the line in JSON format.
func (li LineInfo) String() string {
	json, _ := json.MarshalIndent(li, "", "    ")
	return string(json)
}

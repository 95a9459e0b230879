package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"fmt"
	"math"
	"time"
)

// LineOverride applies Options to a subset of the lines of a request
// instead of the request's default options.
type LineOverride struct {
	Offsets []uint32
	Options LineOptions
}

// LineConfig is the part of a request that can be changed on lines already
// held, through Lines.Reconfigure.
type LineConfig struct {
	// Options applies to every line without an override. A nil Options
	// leaves the lines as they are.
	Options LineOptions
	// Overrides are applied in order, each one uses one of the ten
	// attribute slots of the request.
	Overrides []LineOverride
	// Values are merged into the initial output values and use one slot.
	Values []ValueSource
	// Debounce, when positive, is applied to every line and uses one slot.
	// It is truncated to microseconds.
	Debounce time.Duration
}

// LineRequest describes lines to acquire from a Chip.
type LineRequest struct {
	// Consumer labels the request in the kernel. It defaults to
	// program@pid.
	Consumer string
	Offsets  Offsets
	LineConfig
	// EventBufferSize is a hint for the kernel's event queue size. Zero
	// lets the kernel choose.
	EventBufferSize uint32
}

// lower builds the kernel structure for the request.
func (r *LineRequest) lower() (*gpio_v2_line_request, error) {
	var req gpio_v2_line_request
	label := r.Consumer
	if label == "" {
		label = consumer
	}
	var err error
	if req.consumer, err = encodeName(label); err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	view := r.Offsets.View()
	req.num_lines = uint32(copy(req.offsets[:], view.s))
	if req.config, err = r.LineConfig.lower(view); err != nil {
		return nil, err
	}
	req.event_buffer_size = r.EventBufferSize
	return &req, nil
}

// lower builds the kernel line configuration for the lines of view.
func (cfg *LineConfig) lower(view OffsetsView) (gpio_v2_line_config, error) {
	var lc gpio_v2_line_config
	if cfg.Options != nil {
		lc.flags = uint64(cfg.Options.Flags())
	}
	for _, o := range cfg.Overrides {
		var mask uint64
		var missing []uint32
		for _, offset := range o.Offsets {
			i, ok := view.Index(offset)
			if !ok {
				missing = append(missing, offset)
				continue
			}
			mask |= 1 << uint(i)
		}
		if len(missing) != 0 {
			return lc, fmt.Errorf("override offsets %v are not part of the request: %w", missing, ErrNotFound)
		}
		var flags uint64
		if o.Options != nil {
			flags = uint64(o.Options.Flags())
		}
		attr := gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_FLAGS, value: flags}
		if err := lc.addAttr(attr, mask); err != nil {
			return lc, fmt.Errorf("override for offsets %v: %w", o.Offsets, err)
		}
	}
	if len(cfg.Values) != 0 {
		values, err := mergeSources(view, cfg.Values...)
		if err != nil {
			return lc, fmt.Errorf("output values: %w", err)
		}
		if !values.IsEmpty() {
			attr := gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES, value: values.bits}
			if err := lc.addAttr(attr, values.mask); err != nil {
				return lc, fmt.Errorf("output values: %w", err)
			}
		}
	}
	if cfg.Debounce > 0 {
		us, err := debounceMicros(cfg.Debounce)
		if err != nil {
			return lc, err
		}
		attr := gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_DEBOUNCE}
		attr.setDebounce(us)
		if err := lc.addAttr(attr, view.mask()); err != nil {
			return lc, fmt.Errorf("debounce: %w", err)
		}
	}
	return lc, nil
}

// debounceMicros converts d to the kernel's 32-bit period in microseconds.
func debounceMicros(d time.Duration) (uint32, error) {
	us := d / time.Microsecond
	if us > math.MaxUint32 {
		return 0, fmt.Errorf("debounce period %s: %w", d, ErrCapacityExceeded)
	}
	return uint32(us), nil
}

package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"errors"
	"testing"
	"unsafe"
)

// The kernel rejects requests whose size does not match the ABI, so the
// layout of each structure is checked against linux/gpio.h.
func TestStructSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"gpiochip_info", unsafe.Sizeof(gpiochip_info{}), 68},
		{"gpio_v2_line_attribute", unsafe.Sizeof(gpio_v2_line_attribute{}), 16},
		{"gpio_v2_line_config_attribute", unsafe.Sizeof(gpio_v2_line_config_attribute{}), 24},
		{"gpio_v2_line_config", unsafe.Sizeof(gpio_v2_line_config{}), 272},
		{"gpio_v2_line_request", unsafe.Sizeof(gpio_v2_line_request{}), 592},
		{"gpio_v2_line_values", unsafe.Sizeof(gpio_v2_line_values{}), 16},
		{"gpio_v2_line_info", unsafe.Sizeof(gpio_v2_line_info{}), 256},
		{"gpio_v2_line_event", unsafe.Sizeof(gpio_v2_line_event{}), 48},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("sizeof(%s)=%d, expected %d", test.name, test.got, test.want)
		}
	}
}

func TestIoctlNumbers(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"GPIO_GET_CHIPINFO_IOCTL", reqChipInfo, 0x8044b401},
		{"GPIO_V2_GET_LINEINFO_IOCTL", reqLineInfo, 0xc100b405},
		{"GPIO_V2_GET_LINE_IOCTL", reqLine, 0xc250b407},
		{"GPIO_V2_LINE_SET_CONFIG_IOCTL", reqSetConfig, 0xc110b40d},
		{"GPIO_V2_LINE_GET_VALUES_IOCTL", reqGetValues, 0xc010b40e},
		{"GPIO_V2_LINE_SET_VALUES_IOCTL", reqSetValues, 0xc010b40f},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("%s=%#x, expected %#x", test.name, test.got, test.want)
		}
	}
}

func TestDebounceUnion(t *testing.T) {
	attr := gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_DEBOUNCE, value: ^uint64(0)}
	attr.setDebounce(1500)
	if got := attr.debounce(); got != 1500 {
		t.Errorf("debounce()=%d, expected 1500", got)
	}
	// The rest of the union is cleared whatever the byte order.
	if attr.value != 1500 && attr.value != 1500<<32 {
		t.Errorf("value=%#x after setDebounce(1500)", attr.value)
	}
	var zero gpio_v2_line_attribute
	zero.setDebounce(0)
	if zero.value != 0 {
		t.Errorf("setDebounce(0) left value %#x", zero.value)
	}
}

func TestAddAttrCapacity(t *testing.T) {
	var lc gpio_v2_line_config
	for i := range _GPIO_V2_LINE_NUM_ATTRS_MAX {
		if err := lc.addAttr(gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_FLAGS}, 1<<uint(i)); err != nil {
			t.Fatalf("addAttr(%d): %v", i, err)
		}
	}
	if err := lc.addAttr(gpio_v2_line_attribute{id: _GPIO_V2_LINE_ATTR_ID_FLAGS}, 1); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("addAttr() past the limit returned %v", err)
	}
	if lc.num_attrs != _GPIO_V2_LINE_NUM_ATTRS_MAX {
		t.Errorf("num_attrs=%d", lc.num_attrs)
	}
}

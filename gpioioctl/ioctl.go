package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// This file contains the kernel structures and the ioctl calls of the GPIO
// character device uAPI v2.
//
// Documentation for the ioctl() API is at:
//
// https://docs.kernel.org/userspace-api/gpio/index.html

import (
	"unsafe"
)

// From the linux /usr/include/asm-generic/ioctl.h file.
const (
	_IOC_NONE  = 0
	_IOC_WRITE = 1
	_IOC_READ  = 2

	_IOC_NRBITS   = 8
	_IOC_TYPEBITS = 8
	_IOC_SIZEBITS = 14

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = _IOC_NRSHIFT + _IOC_NRBITS
	_IOC_SIZESHIFT = _IOC_TYPESHIFT + _IOC_TYPEBITS
	_IOC_DIRSHIFT  = _IOC_SIZESHIFT + _IOC_SIZEBITS
)

func _IOC(dir, typ, nr, size uintptr) uintptr {
	return dir<<_IOC_DIRSHIFT |
		typ<<_IOC_TYPESHIFT |
		nr<<_IOC_NRSHIFT |
		size<<_IOC_SIZESHIFT
}

func _IOR(typ, nr, size uintptr) uintptr {
	return _IOC(_IOC_READ, typ, nr, size)
}

func _IOWR(typ, nr, size uintptr) uintptr {
	return _IOC(_IOC_READ|_IOC_WRITE, typ, nr, size)
}

// From the /usr/include/linux/gpio.h header file.
const (
	_GPIO_MAX_NAME_SIZE         = 32
	_GPIO_V2_LINE_NUM_ATTRS_MAX = 10
	_GPIO_V2_LINES_MAX          = 64

	_GPIO_V2_LINE_FLAG_USED                 uint64 = 1 << 0
	_GPIO_V2_LINE_FLAG_ACTIVE_LOW           uint64 = 1 << 1
	_GPIO_V2_LINE_FLAG_INPUT                uint64 = 1 << 2
	_GPIO_V2_LINE_FLAG_OUTPUT               uint64 = 1 << 3
	_GPIO_V2_LINE_FLAG_EDGE_RISING          uint64 = 1 << 4
	_GPIO_V2_LINE_FLAG_EDGE_FALLING         uint64 = 1 << 5
	_GPIO_V2_LINE_FLAG_OPEN_DRAIN           uint64 = 1 << 6
	_GPIO_V2_LINE_FLAG_OPEN_SOURCE          uint64 = 1 << 7
	_GPIO_V2_LINE_FLAG_BIAS_PULL_UP         uint64 = 1 << 8
	_GPIO_V2_LINE_FLAG_BIAS_PULL_DOWN       uint64 = 1 << 9
	_GPIO_V2_LINE_FLAG_BIAS_DISABLED        uint64 = 1 << 10
	_GPIO_V2_LINE_FLAG_EVENT_CLOCK_REALTIME uint64 = 1 << 11
	_GPIO_V2_LINE_FLAG_EVENT_CLOCK_HTE      uint64 = 1 << 12

	_GPIO_V2_LINE_EVENT_RISING_EDGE  uint32 = 1
	_GPIO_V2_LINE_EVENT_FALLING_EDGE uint32 = 2

	_GPIO_V2_LINE_ATTR_ID_FLAGS         uint32 = 1
	_GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES uint32 = 2
	_GPIO_V2_LINE_ATTR_ID_DEBOUNCE      uint32 = 3
)

// MaxLines is the largest number of lines a single request can hold.
const MaxLines = _GPIO_V2_LINES_MAX

// MaxConsumerLen is the longest consumer label, in bytes, the kernel accepts.
const MaxConsumerLen = _GPIO_MAX_NAME_SIZE - 1

type gpiochip_info struct {
	name  [_GPIO_MAX_NAME_SIZE]byte
	label [_GPIO_MAX_NAME_SIZE]byte
	lines uint32
}

type gpio_v2_line_attribute struct {
	id      uint32
	padding uint32
	// value is actually a union who's interpretation is dependent upon
	// the value of id.
	value uint64
}

// debounce returns the debounce_period_us member of the value union. It
// occupies the first four bytes of the union whatever the byte order.
func (a *gpio_v2_line_attribute) debounce() uint32 {
	return *(*uint32)(unsafe.Pointer(&a.value))
}

func (a *gpio_v2_line_attribute) setDebounce(us uint32) {
	a.value = 0
	*(*uint32)(unsafe.Pointer(&a.value)) = us
}

type gpio_v2_line_config_attribute struct {
	attr gpio_v2_line_attribute

	mask uint64
}

type gpio_v2_line_config struct {
	flags     uint64
	num_attrs uint32
	padding   [5]uint32
	attrs     [_GPIO_V2_LINE_NUM_ATTRS_MAX]gpio_v2_line_config_attribute
}

// addAttr appends attr, applying to the lines selected by mask.
func (lc *gpio_v2_line_config) addAttr(attr gpio_v2_line_attribute, mask uint64) error {
	if lc.num_attrs == _GPIO_V2_LINE_NUM_ATTRS_MAX {
		return ErrCapacityExceeded
	}
	lc.attrs[lc.num_attrs] = gpio_v2_line_config_attribute{attr: attr, mask: mask}
	lc.num_attrs++
	return nil
}

type gpio_v2_line_request struct {
	offsets           [_GPIO_V2_LINES_MAX]uint32
	consumer          [_GPIO_MAX_NAME_SIZE]byte
	config            gpio_v2_line_config
	num_lines         uint32
	event_buffer_size uint32
	padding           [5]uint32
	fd                int32
}

type gpio_v2_line_values struct {
	bits uint64
	mask uint64
}

type gpio_v2_line_info struct {
	name      [_GPIO_MAX_NAME_SIZE]byte
	consumer  [_GPIO_MAX_NAME_SIZE]byte
	offset    uint32
	num_attrs uint32
	flags     uint64
	attrs     [_GPIO_V2_LINE_NUM_ATTRS_MAX]gpio_v2_line_attribute
	padding   [4]uint32
}

// gpio_v2_line_event fields are exported so that encoding/binary can fill
// them in.
type gpio_v2_line_event struct {
	Timestamp_ns uint64
	Id           uint32
	Offset       uint32
	Seqno        uint32
	LineSeqno    uint32
	Padding      [6]uint32
}

const (
	_GPIO_GET_CHIPINFO_IOCTL       = 0x01
	_GPIO_V2_GET_LINEINFO_IOCTL    = 0x05
	_GPIO_V2_GET_LINE_IOCTL        = 0x07
	_GPIO_V2_LINE_SET_CONFIG_IOCTL = 0x0d
	_GPIO_V2_LINE_GET_VALUES_IOCTL = 0x0e
	_GPIO_V2_LINE_SET_VALUES_IOCTL = 0x0f
	_GPIO_IOCTL_TYPE               = 0xb4
)

var (
	reqChipInfo   = _IOR(_GPIO_IOCTL_TYPE, _GPIO_GET_CHIPINFO_IOCTL, unsafe.Sizeof(gpiochip_info{}))
	reqLineInfo   = _IOWR(_GPIO_IOCTL_TYPE, _GPIO_V2_GET_LINEINFO_IOCTL, unsafe.Sizeof(gpio_v2_line_info{}))
	reqLine       = _IOWR(_GPIO_IOCTL_TYPE, _GPIO_V2_GET_LINE_IOCTL, unsafe.Sizeof(gpio_v2_line_request{}))
	reqSetConfig  = _IOWR(_GPIO_IOCTL_TYPE, _GPIO_V2_LINE_SET_CONFIG_IOCTL, unsafe.Sizeof(gpio_v2_line_config{}))
	reqGetValues  = _IOWR(_GPIO_IOCTL_TYPE, _GPIO_V2_LINE_GET_VALUES_IOCTL, unsafe.Sizeof(gpio_v2_line_values{}))
	reqSetValues  = _IOWR(_GPIO_IOCTL_TYPE, _GPIO_V2_LINE_SET_VALUES_IOCTL, unsafe.Sizeof(gpio_v2_line_values{}))
	sizeLineEvent = int(unsafe.Sizeof(gpio_v2_line_event{}))
)

func ioctl_gpiochip_info(fd int, data *gpiochip_info) error {
	return ioctl(fd, reqChipInfo, unsafe.Pointer(data))
}

func ioctl_gpio_v2_line_info(fd int, data *gpio_v2_line_info) error {
	return ioctl(fd, reqLineInfo, unsafe.Pointer(data))
}

func ioctl_gpio_v2_line_request(fd int, data *gpio_v2_line_request) error {
	return ioctl(fd, reqLine, unsafe.Pointer(data))
}

func ioctl_gpio_v2_line_config(fd int, data *gpio_v2_line_config) error {
	return ioctl(fd, reqSetConfig, unsafe.Pointer(data))
}

func ioctl_get_gpio_v2_line_values(fd int, data *gpio_v2_line_values) error {
	return ioctl(fd, reqGetValues, unsafe.Pointer(data))
}

func ioctl_set_gpio_v2_line_values(fd int, data *gpio_v2_line_values) error {
	return ioctl(fd, reqSetValues, unsafe.Pointer(data))
}

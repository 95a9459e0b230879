//go:build linux

package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// fakeKernel stands in for the GPIO character device driver. Chip and line
// descriptors are real pipes so that close, poll and read behave as they do
// on hardware.

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

type fakeLine struct {
	name     string
	consumer string
	flags    uint64
	debounce uint32
	held     bool
}

type fakeChip struct {
	path  string
	name  string
	label string
	lines []fakeLine
}

type fakeRequest struct {
	chip *fakeChip
	// raw is the request as the library submitted it.
	raw     gpio_v2_line_request
	configs []gpio_v2_line_config
	// values holds the logical value of each line, indexed by position.
	values uint64
	sets   []gpio_v2_line_values
	fd     int
	w      int
}

type fakeKernel struct {
	t        *testing.T
	mu       sync.Mutex
	chips    map[string]*fakeChip
	chipFds  map[int]*fakeChip
	requests map[int]*fakeRequest
	order    []*fakeRequest
	closed   []int
	pipes    []int
}

func newFakeKernel(t *testing.T) *fakeKernel {
	k := &fakeKernel{
		t:        t,
		chips:    make(map[string]*fakeChip),
		chipFds:  make(map[int]*fakeChip),
		requests: make(map[int]*fakeRequest),
	}
	oldIoctl, oldOpen, oldClose, oldDir := syscall_ioctl_wrapper, syscall_open_wrapper, syscall_close_wrapper, devDir
	syscall_ioctl_wrapper = k.ioctl
	syscall_open_wrapper = k.open
	syscall_close_wrapper = k.close
	devDir = t.TempDir()
	t.Cleanup(func() {
		syscall_ioctl_wrapper, syscall_open_wrapper, syscall_close_wrapper, devDir = oldIoctl, oldOpen, oldClose, oldDir
		for _, fd := range k.pipes {
			_ = unix.Close(fd)
		}
	})
	return k
}

// addChip creates a chip whose lines are named by names and returns the
// path of its device node.
func (k *fakeKernel) addChip(name, label string, names ...string) string {
	k.t.Helper()
	path := filepath.Join(devDir, name)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		k.t.Fatal(err)
	}
	chip := &fakeChip{path: path, name: name, label: label}
	for _, n := range names {
		chip.lines = append(chip.lines, fakeLine{name: n, flags: _GPIO_V2_LINE_FLAG_INPUT})
	}
	k.mu.Lock()
	k.chips[path] = chip
	k.mu.Unlock()
	return path
}

// addAlias makes path open the same chip as target, like a symlink.
func (k *fakeKernel) addAlias(path, target string) {
	k.t.Helper()
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		k.t.Fatal(err)
	}
	k.mu.Lock()
	k.chips[path] = k.chips[target]
	k.mu.Unlock()
}

func (k *fakeKernel) pipe() (r, w int) {
	k.t.Helper()
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		k.t.Fatal(err)
	}
	return p[0], p[1]
}

func (k *fakeKernel) open(path string) (int, error) {
	k.mu.Lock()
	chip, ok := k.chips[path]
	k.mu.Unlock()
	if !ok {
		return -1, unix.ENOENT
	}
	r, w := k.pipe()
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pipes = append(k.pipes, w)
	k.chipFds[r] = chip
	return r, nil
}

func (k *fakeKernel) close(fd int) error {
	k.mu.Lock()
	k.closed = append(k.closed, fd)
	delete(k.chipFds, fd)
	if req, ok := k.requests[fd]; ok {
		delete(k.requests, fd)
		for _, offset := range req.raw.offsets[:req.raw.num_lines] {
			req.chip.lines[offset].held = false
			req.chip.lines[offset].consumer = ""
			req.chip.lines[offset].flags &^= _GPIO_V2_LINE_FLAG_USED
		}
	}
	k.mu.Unlock()
	return unix.Close(fd)
}

func (k *fakeKernel) wasClosed(fd int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, c := range k.closed {
		if c == fd {
			return true
		}
	}
	return false
}

// last returns the most recent line request.
func (k *fakeKernel) last() *fakeRequest {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.order) == 0 {
		k.t.Fatal("no line request was made")
	}
	return k.order[len(k.order)-1]
}

func (k *fakeKernel) ioctl(fd int, req uintptr, arg unsafe.Pointer) unix.Errno {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch req {
	case reqChipInfo:
		chip, ok := k.chipFds[fd]
		if !ok {
			return unix.ENOTTY
		}
		info := (*gpiochip_info)(arg)
		copy(info.name[:], chip.name)
		copy(info.label[:], chip.label)
		info.lines = uint32(len(chip.lines))
	case reqLineInfo:
		chip, ok := k.chipFds[fd]
		if !ok {
			return unix.ENOTTY
		}
		info := (*gpio_v2_line_info)(arg)
		if int(info.offset) >= len(chip.lines) {
			return unix.EINVAL
		}
		line := chip.lines[info.offset]
		*info = gpio_v2_line_info{offset: info.offset, flags: line.flags}
		copy(info.name[:], line.name)
		copy(info.consumer[:], line.consumer)
		if line.debounce != 0 {
			info.attrs[0].id = _GPIO_V2_LINE_ATTR_ID_DEBOUNCE
			info.attrs[0].setDebounce(line.debounce)
			info.num_attrs = 1
		}
	case reqLine:
		chip, ok := k.chipFds[fd]
		if !ok {
			return unix.ENOTTY
		}
		raw := (*gpio_v2_line_request)(arg)
		if raw.num_lines == 0 || raw.num_lines > _GPIO_V2_LINES_MAX {
			return unix.EINVAL
		}
		for _, offset := range raw.offsets[:raw.num_lines] {
			if int(offset) >= len(chip.lines) {
				return unix.EINVAL
			}
			if chip.lines[offset].held {
				return unix.EBUSY
			}
		}
		consumer, _ := decodeName(raw.consumer[:])
		for _, offset := range raw.offsets[:raw.num_lines] {
			chip.lines[offset].held = true
			chip.lines[offset].consumer = consumer
			chip.lines[offset].flags = raw.config.flags | _GPIO_V2_LINE_FLAG_USED
		}
		var p [2]int
		if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
			return err.(unix.Errno)
		}
		req := &fakeRequest{chip: chip, raw: *raw, fd: p[0], w: p[1]}
		for _, attr := range raw.config.attrs[:raw.config.num_attrs] {
			if attr.attr.id == _GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES {
				req.values = (req.values &^ attr.mask) | (attr.attr.value & attr.mask)
			}
		}
		k.pipes = append(k.pipes, p[1])
		k.requests[p[0]] = req
		k.order = append(k.order, req)
		raw.fd = int32(p[0])
	case reqSetConfig:
		req, ok := k.requests[fd]
		if !ok {
			return unix.ENOTTY
		}
		req.configs = append(req.configs, *(*gpio_v2_line_config)(arg))
	case reqGetValues:
		req, ok := k.requests[fd]
		if !ok {
			return unix.ENOTTY
		}
		v := (*gpio_v2_line_values)(arg)
		if v.mask == 0 {
			return unix.EINVAL
		}
		v.bits = req.values & v.mask
	case reqSetValues:
		req, ok := k.requests[fd]
		if !ok {
			return unix.ENOTTY
		}
		v := (*gpio_v2_line_values)(arg)
		if v.mask == 0 {
			return unix.EINVAL
		}
		req.sets = append(req.sets, *v)
		req.values = (req.values &^ v.mask) | (v.bits & v.mask)
	default:
		return unix.ENOTTY
	}
	return 0
}

// inject queues ev on the request descriptor. The first split bytes are
// written by the first call; the rest is returned so the caller can finish
// the event later.
func (r *fakeRequest) inject(t *testing.T, ev gpio_v2_line_event, split int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &ev); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if split <= 0 || split > len(b) {
		split = len(b)
	}
	r.write(t, b[:split])
	return b[split:]
}

func (r *fakeRequest) write(t *testing.T, b []byte) {
	t.Helper()
	if len(b) == 0 {
		return
	}
	if _, err := unix.Write(r.w, b); err != nil {
		t.Fatal(err)
	}
}

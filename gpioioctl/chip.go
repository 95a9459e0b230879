package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// devDir is where the kernel creates the gpiochip character devices.
var devDir = "/dev"

// A Chip is an open GPIO character device. A computer may have more than
// one.
//
// Lines acquired from a Chip keep the device open until they are closed,
// even if the Chip itself is closed first.
type Chip struct {
	path      string
	name      string
	label     string
	lineCount int

	mu     sync.Mutex
	fd     int
	refs   int
	closed bool
	// pins are the periph adapters of the chip's lines, built on first use.
	pins []*GPIOLine
}

// Open opens the GPIO character device at path, for example
// /dev/gpiochip0.
func Open(path string) (*Chip, error) {
	fd, err := syscall_open_wrapper(path)
	if err != nil {
		return nil, &OpError{Op: "open", Path: path, Err: err}
	}
	var info gpiochip_info
	if err := ioctl_gpiochip_info(fd, &info); err != nil {
		_ = syscall_close_wrapper(fd)
		return nil, &OpError{Op: "get chip info", Path: path, Err: err}
	}
	chip := &Chip{path: path, fd: fd, refs: 1, lineCount: int(info.lines)}
	if chip.name, err = decodeName(info.name[:]); err == nil {
		chip.label, err = decodeName(info.label[:])
	}
	if err != nil {
		_ = syscall_close_wrapper(fd)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(chip.label) == 0 {
		chip.label = chip.name
	}
	return chip, nil
}

// ChipPaths returns the GPIO character devices present on the system, in
// lexical order.
func ChipPaths() ([]string, error) {
	items, err := syscall_glob_wrapper(filepath.Join(devDir, "gpiochip*"))
	if err != nil {
		return nil, fmt.Errorf("gpioioctl: %w", err)
	}
	sort.Strings(items)
	return items, nil
}

// OpenChips opens every GPIO chip of the system. Chips that cannot be opened
// are logged and skipped. When the same chip is reachable through several
// device nodes it is only returned once.
//
// Chips labeled pinctrl-, a Raspberry Pi kernel convention, come first and
// the rest are sorted by label. This keeps the order stable when the kernel
// numbers chips differently from one boot to the next.
func OpenChips() ([]*Chip, error) {
	paths, err := ChipPaths()
	if err != nil {
		return nil, err
	}
	var chips []*Chip
	for _, path := range paths {
		chip, err := Open(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("skipping gpio chip")
			continue
		}
		chips = append(chips, chip)
	}
	sort.SliceStable(chips, func(i, j int) bool {
		I := chips[i]
		J := chips[j]
		if strings.HasPrefix(I.Label(), "pinctrl-") {
			if strings.HasPrefix(J.Label(), "pinctrl-") {
				return I.Label() < J.Label()
			}
			return true
		} else if strings.HasPrefix(J.Label(), "pinctrl-") {
			return false
		}
		return I.Label() < J.Label()
	})
	// On a pi, gpiochip0 is also symlinked to gpiochip4.
	seen := make(map[string]struct{})
	unique := chips[:0]
	for _, chip := range chips {
		if _, found := seen[chip.Name()]; found {
			logger.WithFields(logrus.Fields{"path": chip.Path(), "name": chip.Name()}).Debug("duplicate gpio chip")
			_ = chip.Close()
			continue
		}
		seen[chip.Name()] = struct{}{}
		unique = append(unique, chip)
	}
	return unique, nil
}

// OpenChip opens the chip identified by id, which is either a device path, a
// device name such as gpiochip0, the number of the device or its label.
func OpenChip(id string) (*Chip, error) {
	if strings.ContainsRune(id, '/') {
		return Open(id)
	}
	if _, err := strconv.Atoi(id); err == nil {
		return Open(filepath.Join(devDir, "gpiochip"+id))
	}
	if strings.HasPrefix(id, "gpiochip") {
		return Open(filepath.Join(devDir, id))
	}
	chips, err := OpenChips()
	if err != nil {
		return nil, err
	}
	var found *Chip
	for _, chip := range chips {
		if found == nil && chip.Label() == id {
			found = chip
			continue
		}
		_ = chip.Close()
	}
	if found == nil {
		return nil, &OpError{Op: "open", Path: id, Err: os.ErrNotExist}
	}
	return found, nil
}

// Name returns the name of the device as reported by the kernel, for
// example gpiochip0.
func (chip *Chip) Name() string {
	return chip.name
}

// Label returns the functional name of the chip. It is the name if the
// kernel reports no label.
func (chip *Chip) Label() string {
	return chip.label
}

// Path returns the character device path the chip was opened with.
func (chip *Chip) Path() string {
	return chip.path
}

// LineCount returns the number of lines of the chip.
func (chip *Chip) LineCount() int {
	return chip.lineCount
}

// Close releases the chip. The device stays open until every Lines acquired
// from it is closed as well. Closing an already closed Chip is a no-op.
func (chip *Chip) Close() error {
	chip.mu.Lock()
	defer chip.mu.Unlock()
	if chip.closed {
		return nil
	}
	chip.closed = true
	chip.pins = nil
	return chip.releaseLocked()
}

// acquire takes a reference on the chip descriptor for a new Lines.
func (chip *Chip) acquire() (int, error) {
	chip.mu.Lock()
	defer chip.mu.Unlock()
	if chip.closed {
		return -1, ErrClosed
	}
	chip.refs++
	return chip.fd, nil
}

func (chip *Chip) release() error {
	chip.mu.Lock()
	defer chip.mu.Unlock()
	return chip.releaseLocked()
}

func (chip *Chip) releaseLocked() error {
	chip.refs--
	if chip.refs > 0 {
		return nil
	}
	fd := chip.fd
	chip.fd = -1
	if err := syscall_close_wrapper(fd); err != nil {
		return &OpError{Op: "close", Path: chip.path, Err: err}
	}
	return nil
}

// LineInfo returns the current state of the line at offset.
func (chip *Chip) LineInfo(offset uint32) (LineInfo, error) {
	chip.mu.Lock()
	closed := chip.closed
	chip.mu.Unlock()
	if closed {
		return LineInfo{}, ErrClosed
	}
	return chip.lineInfo(offset)
}

// lineInfo queries the kernel without checking that the chip is open. It is
// used by Lines, which hold their own reference.
func (chip *Chip) lineInfo(offset uint32) (LineInfo, error) {
	if int(offset) >= chip.lineCount {
		return LineInfo{}, fmt.Errorf("line %d of %s: %w", offset, chip.name, ErrNotFound)
	}
	raw := gpio_v2_line_info{offset: offset}
	if err := ioctl_gpio_v2_line_info(chip.fd, &raw); err != nil {
		return LineInfo{}, &OpError{Op: "get line info", Path: chip.path, Err: err}
	}
	return newLineInfo(&raw)
}

// LineInfos returns the state of every line of the chip.
func (chip *Chip) LineInfos() ([]LineInfo, error) {
	infos := make([]LineInfo, 0, chip.lineCount)
	for offset := 0; offset < chip.lineCount; offset++ {
		info, err := chip.LineInfo(uint32(offset))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// RequestLines acquires the lines at offsets, all configured with options.
// An empty consumer selects the default label.
func (chip *Chip) RequestLines(consumer string, options LineOptions, offsets ...uint32) (*Lines, error) {
	set, err := NewOffsets(offsets...)
	if err != nil {
		return nil, err
	}
	return chip.Request(&LineRequest{Consumer: consumer, Offsets: set, LineConfig: LineConfig{Options: options}})
}

// RequestAll acquires every line of the chip. It fails with
// ErrCapacityExceeded on chips with more than MaxLines lines.
func (chip *Chip) RequestAll(consumer string, options LineOptions) (*Lines, error) {
	if chip.lineCount > MaxLines {
		return nil, fmt.Errorf("%s has %d lines: %w", chip.name, chip.lineCount, ErrCapacityExceeded)
	}
	var set Offsets
	for offset := 0; offset < chip.lineCount; offset++ {
		set.offsets[offset] = uint32(offset)
	}
	set.n = chip.lineCount
	return chip.Request(&LineRequest{Consumer: consumer, Offsets: set, LineConfig: LineConfig{Options: options}})
}

// Request acquires the lines described by r.
func (chip *Chip) Request(r *LineRequest) (*Lines, error) {
	req, err := r.lower()
	if err != nil {
		return nil, err
	}
	label, err := decodeName(req.consumer[:])
	if err != nil {
		return nil, err
	}
	fd, err := chip.acquire()
	if err != nil {
		return nil, err
	}
	if err := ioctl_gpio_v2_line_request(fd, req); err != nil {
		_ = chip.release()
		return nil, &OpError{Op: "request lines", Path: chip.path, Err: err}
	}
	lfd := int(req.fd)
	if err := syscall_nonblock_wrapper(lfd, true); err != nil {
		_ = syscall_close_wrapper(lfd)
		_ = chip.release()
		return nil, &OpError{Op: "set nonblocking", Path: chip.path, Err: err}
	}
	return &Lines{chip: chip, fd: lfd, consumer: label, offsets: r.Offsets}, nil
}

// GPIOLines returns a gpio.PinIO for every line of the chip. The lines are
// read from the kernel on the first call.
func (chip *Chip) GPIOLines() ([]*GPIOLine, error) {
	chip.mu.Lock()
	pins := chip.pins
	chip.mu.Unlock()
	if pins != nil {
		return pins, nil
	}
	infos, err := chip.LineInfos()
	if err != nil {
		return nil, err
	}
	pins = make([]*GPIOLine, len(infos))
	for i := range infos {
		pins[i] = newGPIOLine(chip, &infos[i])
	}
	chip.mu.Lock()
	defer chip.mu.Unlock()
	if chip.pins == nil && !chip.closed {
		chip.pins = pins
	}
	return pins, nil
}

// ByName returns the line named name, or nil.
func (chip *Chip) ByName(name string) *GPIOLine {
	pins, err := chip.GPIOLines()
	if err != nil {
		logger.WithError(err).WithField("chip", chip.name).Error("reading lines")
		return nil
	}
	for _, line := range pins {
		if line.Name() == name {
			return line
		}
	}
	return nil
}

// ByNumber returns a line by it's offset on the chip, or nil. Note this has
// NO RELATIONSHIP to a pin # on a board.
func (chip *Chip) ByNumber(number int) *GPIOLine {
	pins, err := chip.GPIOLines()
	if err != nil {
		logger.WithError(err).WithField("chip", chip.name).Error("reading lines")
		return nil
	}
	if number < 0 || number >= len(pins) {
		logger.WithField("chip", chip.name).Warnf("ByNumber(%d) with out of range value", number)
		return nil
	}
	return pins[number]
}

// LineSet requests a set of lines by name, all configured the same way.
// For more control, see LineSetFromConfig.
func (chip *Chip) LineSet(defaultDirection LineDir, defaultEdge gpio.Edge, defaultPull gpio.Pull, lines ...string) (*LineSet, error) {
	cfg := &LineSetConfig{Lines: lines, DefaultDirection: defaultDirection, DefaultEdge: defaultEdge, DefaultPull: defaultPull}
	return chip.LineSetFromConfig(cfg)
}

// LineSetFromConfig requests the lines named by config.
func (chip *Chip) LineSetFromConfig(config *LineSetConfig) (*LineSet, error) {
	if len(config.Lines) == 0 {
		return nil, errors.New("gpioioctl: empty line set")
	}
	req, err := config.request(chip)
	if err != nil {
		return nil, fmt.Errorf("LineSetFromConfig: %w", err)
	}
	lines, err := chip.Request(req)
	if err != nil {
		return nil, fmt.Errorf("LineSetFromConfig: %w", err)
	}
	return newLineSet(lines, config), nil
}

func (chip *Chip) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string `json:"Name"`
		Path      string `json:"Path"`
		Label     string `json:"Label"`
		LineCount int    `json:"LineCount"`
	}{
		Name:      chip.Name(),
		Path:      chip.Path(),
		Label:     chip.Label(),
		LineCount: chip.LineCount()})
}

// String returns the chip information in JSON format.
func (chip *Chip) String() string {
	json, _ := json.MarshalIndent(chip, "", "    ")
	return string(json)
}

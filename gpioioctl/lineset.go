package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// LineConfigOverride is an override for a LineSet configuration.
// For example, using this, you could configure a LineSet with
// multiple output lines, and a single input line with edge
// detection.
type LineConfigOverride struct {
	Lines     []string
	Direction LineDir
	Edge      gpio.Edge
	Pull      gpio.Pull
}

// LineSetConfig is used to create a structure for a LineSet request.
// It allows you to specify the default configuration for lines, as well
// as provide overrides for specific lines within the set.
type LineSetConfig struct {
	Lines            []string
	DefaultDirection LineDir
	DefaultEdge      gpio.Edge
	DefaultPull      gpio.Pull
	Overrides        []*LineConfigOverride
}

// AddOverrides adds a set of override values for specified lines. If a line
// specified is not already part of the configuration line set, it's dynamically
// added.
func (cfg *LineSetConfig) AddOverrides(direction LineDir, edge gpio.Edge, pull gpio.Pull, lines ...string) error {
	if len(cfg.Overrides) == _GPIO_V2_LINE_NUM_ATTRS_MAX {
		return fmt.Errorf("a maximum of %d override entries can be configured: %w", _GPIO_V2_LINE_NUM_ATTRS_MAX, ErrCapacityExceeded)
	}
	for _, l := range lines {
		if cfg.getLineOffset(l) < 0 {
			cfg.Lines = append(cfg.Lines, l)
		}
	}
	cfg.Overrides = append(cfg.Overrides, &LineConfigOverride{Lines: lines, Direction: direction, Edge: edge, Pull: pull})
	return nil
}

func (cfg *LineSetConfig) getLineOffset(lineName string) int {
	for ix, name := range cfg.Lines {
		if name == lineName {
			return ix
		}
	}
	return -1
}

// request resolves the line names on chip and returns the matching
// LineRequest.
func (cfg *LineSetConfig) request(chip *Chip) (*LineRequest, error) {
	resolve := func(names []string) ([]uint32, error) {
		offsets := make([]uint32, len(names))
		for ix, name := range names {
			line := chip.ByName(name)
			if line == nil {
				return nil, fmt.Errorf("line %s not found in chip %s: %w", name, chip.Name(), ErrNotFound)
			}
			offsets[ix] = uint32(line.Number())
		}
		return offsets, nil
	}
	offsets, err := resolve(cfg.Lines)
	if err != nil {
		return nil, err
	}
	req := &LineRequest{LineConfig: LineConfig{Options: periphOptions(cfg.DefaultDirection, cfg.DefaultEdge, cfg.DefaultPull)}}
	for _, offset := range offsets {
		if err := req.Offsets.Insert(offset); err != nil {
			return nil, err
		}
	}
	for _, lco := range cfg.Overrides {
		offsets, err := resolve(lco.Lines)
		if err != nil {
			return nil, err
		}
		req.Overrides = append(req.Overrides, LineOverride{Offsets: offsets, Options: periphOptions(lco.Direction, lco.Edge, lco.Pull)})
	}
	return req, nil
}

// periphOptions maps the periph style configuration of a line to LineOptions.
// LineDirNotSet leaves the line as it is.
func periphOptions(dir LineDir, edge gpio.Edge, pull gpio.Pull) LineOptions {
	switch dir {
	case LineInput:
		return Options().Input().WithBias(pull).WithEdgeDetect(edge)
	case LineOutput:
		return Options().Output()
	default:
		return nil
	}
}

// haltPoll bounds how long WaitForEdge takes to notice a Halt.
const haltPoll = 100 * time.Millisecond

// waitEdge waits for the next event on lines. A timeout <= 0 waits until an
// event arrives or halted is set.
func waitEdge(lines *Lines, timeout time.Duration, halted *atomic.Bool) (LineEvent, bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		ev, ok, err := lines.ReadEvent()
		if err != nil || ok {
			return ev, ok, err
		}
		if halted.Load() {
			return LineEvent{}, false, nil
		}
		wait := haltPoll
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return LineEvent{}, false, nil
			}
			wait = min(wait, remaining)
		}
		if _, err := lines.WaitEvent(wait); err != nil {
			return LineEvent{}, false, err
		}
	}
}

// LineSet is a set of GPIO lines that can be manipulated as one device.
// A LineSet is created by calling Chip.LineSet().  Using a LineSet,
// you can write to multiple pins, or read from multiple
// pins as one operation. Additionally, you can configure multiple lines
// for edge detection, and have a single WaitForEdge() call that will
// trigger on a change to any of the lines in the set. According
// to the Linux kernel docs:
//
// "A number of lines may be requested in the one line request, and request
// operations are performed on the requested lines by the kernel as
// atomically as possible. e.g. GPIO_V2_LINE_GET_VALUES_IOCTL will read all
// the requested lines at once."
//
// https://docs.kernel.org/userspace-api/gpio/gpio-v2-get-line-ioctl.html
//
// Lines are ordered by ascending line number. Bit n of the values passed to
// Out and Read is the line returned by ByOffset(n).
type LineSet struct {
	lines  []*LineSetLine
	mu     sync.Mutex
	req    *Lines
	halted atomic.Bool
}

func newLineSet(req *Lines, config *LineSetConfig) *LineSet {
	ls := &LineSet{req: req}
	names := make(map[uint32]string)
	for _, name := range config.Lines {
		if line := req.chip.ByName(name); line != nil {
			names[uint32(line.Number())] = name
		}
	}
	for ix, number := range req.Offsets().All() {
		lsl := &LineSetLine{
			number:    number,
			offset:    uint32(ix),
			name:      names[number],
			parent:    ls,
			direction: config.DefaultDirection,
			pull:      config.DefaultPull,
			edge:      config.DefaultEdge}
		for _, override := range config.Overrides {
			for _, overrideLine := range override.Lines {
				if overrideLine == lsl.name {
					lsl.direction = override.Direction
					lsl.edge = override.Edge
					lsl.pull = override.Pull
				}
			}
		}
		ls.lines = append(ls.lines, lsl)
	}
	return ls
}

// Close releases the lines of the set.
func (ls *LineSet) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.req.Close()
}

// LineCount returns the number of lines in this LineSet.
func (ls *LineSet) LineCount() int {
	return len(ls.lines)
}

// Lines returns the set of LineSetLine that are in
// this set.
func (ls *LineSet) Lines() []*LineSetLine {
	return ls.lines
}

func (ls *LineSet) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(ls.lines))
	for ix, l := range ls.lines {
		pins[ix] = l
	}
	return pins
}

// Interrupt any calls to WaitForEdge().
func (ls *LineSet) Halt() error {
	ls.halted.Store(true)
	return nil
}

// Out writes the set of bits to the LineSet's lines. If mask is 0, then the
// default mask of all bits is used. Note that by using the mask value,
// you can write to a subset of the lines if desired.
//
// bits is the values for each line in the bit set.
//
// mask is a bitmask indicating which bits should be applied.
func (ls *LineSet) Out(bits, mask gpio.GPIOValue) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if mask == 0 {
		mask = gpio.GPIOValue(lowBits(ls.LineCount()))
	}
	_, err := ls.req.Write(NewMaskedBits(uint64(bits), uint64(mask)))
	return err
}

// Read the pins in this LineSet. This is done as one syscall to the
// operating system and will be very fast. mask is a bitmask of set pins
// to read. If 0, then all pins are read.
func (ls *LineSet) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if mask == 0 {
		mask = gpio.GPIOValue(lowBits(ls.LineCount()))
	}
	values, err := ls.req.ReadBits(uint64(mask))
	if err != nil {
		return 0, err
	}
	return gpio.GPIOValue(values.Bits()), nil
}

func (ls *LineSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lines []*LineSetLine `json:"Lines"`
	}{
		Lines: ls.lines})
}

// String returns the LineSet information in JSON, along with the details for
// all of the lines.
func (ls *LineSet) String() string {
	json, _ := json.MarshalIndent(ls, "", "    ")
	return string(json)
}

// WaitForEdge waits for an edge to be triggered on the LineSet.
//
// Returns:
//
// number - the number of the line that was triggered.
//
// edge - The edge value. gpio.Edge. If a timeout or halt occurred,
// then the edge returned will be gpio.NoEdge
//
// err - Error value if any. A timeout or a call to Halt() returns
// os.ErrDeadlineExceeded.
func (ls *LineSet) WaitForEdge(timeout time.Duration) (number int, edge gpio.Edge, err error) {
	ls.halted.Store(false)
	ev, ok, err := waitEdge(ls.req, timeout, &ls.halted)
	if err != nil {
		return 0, gpio.NoEdge, err
	}
	if !ok {
		return 0, gpio.NoEdge, os.ErrDeadlineExceeded
	}
	return int(ev.Offset), ev.Edge, nil
}

// ByOffset returns a line by it's offset in the LineSet.  See ByName() for an
// example that casts the return value to a LineSetLine
func (ls *LineSet) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(ls.lines) {
		return nil
	}
	return ls.lines[offset]
}

// ByName returns a Line by name from the LineSet. To cast the returned value
// to a LineSet line, use:
//
//	var lsl *gpioioctl.LineSetLine
//	lsl, ok := ls.ByNumber(line0.Number()).(*gpioioctl.LineSetLine)
//	if !ok {
//	  log.Fatal("error converting to LineSetLine")
//	}
func (ls *LineSet) ByName(name string) pin.Pin {
	for _, line := range ls.lines {
		if line.Name() == name {
			return line
		}
	}
	return nil
}

// ByNumber returns a line from the LineSet via it's GPIO line
// number. See ByName() for an example that casts the return value to a
// LineSetLine
func (ls *LineSet) ByNumber(number int) pin.Pin {
	for _, line := range ls.lines {
		if line.Number() == number {
			return line
		}
	}
	return nil
}

// LineSetLine is a specific line in a lineset. Using a LineSetLine,
// you can read/write to a single pin in the set using the PinIO
// interface.
type LineSetLine struct {
	// The GPIO Line Number
	number uint32
	// The offset for this LineSet struct
	offset    uint32
	name      string
	parent    *LineSet
	direction LineDir
	pull      gpio.Pull
	edge      gpio.Edge
}

/*
   gpio.Pin
*/

// Number returns the Line's GPIO Line Number. Implements gpio.Pin
func (lsl *LineSetLine) Number() int {
	return int(lsl.number)
}

// Name returns the line's name. Implements gpio.Pin
func (lsl *LineSetLine) Name() string {
	return lsl.name
}

// Deprecated: Use Direction. Function implements pin.Pin.
func (lsl *LineSetLine) Function() string {
	return lsl.direction.String()
}

func (lsl *LineSetLine) Direction() LineDir {
	return lsl.direction
}

func (lsl *LineSetLine) Edge() gpio.Edge {
	return lsl.edge
}

// Out writes to this specific GPIO line.
func (lsl *LineSetLine) Out(l gpio.Level) error {
	var mask, bits gpio.GPIOValue
	mask = 1 << lsl.offset
	if l {
		bits |= mask
	}
	return lsl.parent.Out(bits, mask)
}

// PWM is not implemented because of kernel design.
func (lsl *LineSetLine) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("not implemented")
}

// Halt interrupts a pending WaitForEdge. You can't halt a read
// for a single line in a LineSet, so this returns an error. Use
// LineSet.Halt()
func (lsl *LineSetLine) Halt() error {
	return errors.New("you can't halt an individual line in a LineSet. you must halt the LineSet")
}

// In configures the line for input. Since individual lines in a
// LineSet cannot be re-configured this always returns an error.
func (lsl *LineSetLine) In(pull gpio.Pull, edge gpio.Edge) error {
	return errors.New("a LineSet line cannot be re-configured")
}

// Read returns the value of this specific line.
func (lsl *LineSetLine) Read() gpio.Level {
	var mask gpio.GPIOValue = 1 << lsl.offset
	bits, err := lsl.parent.Read(mask)
	if err != nil {
		logger.WithError(err).WithField("line", lsl.number).Error("LineSetLine.Read()")
		return false
	}

	return (bits & mask) == mask
}

func (lsl *LineSetLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string `json:"Name"`
		Offset    uint32 `json:"Offset"`
		Number    int    `json:"Number"`
		Direction string `json:"Direction"`
		Pull      string `json:"Pull"`
		Edges     string `json:"Edges"`
	}{
		Name:      lsl.Name(),
		Offset:    lsl.Offset(),
		Number:    lsl.Number(),
		Direction: lsl.direction.String(),
		Pull:      lsl.pull.String(),
		Edges:     lsl.edge.String()})
}

// String returns information about the line in JSON format.
func (lsl *LineSetLine) String() string {
	json, _ := json.MarshalIndent(lsl, "", "    ")
	return string(json)
}

// WaitForEdge will always return false for a LineSetLine. You MUST
// use LineSet.WaitForEdge()
func (lsl *LineSetLine) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull returns the configured PullUp/PullDown value for this line.
func (lsl *LineSetLine) Pull() gpio.Pull {
	return lsl.pull
}

// DefaultPull return gpio.PullNoChange.
//
// The GPIO v2 ioctls do not support this.
func (lsl *LineSetLine) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Offset returns the offset if this LineSetLine within the LineSet.
// 0..LineSet.LineCount
func (lsl *LineSetLine) Offset() uint32 {
	return lsl.offset
}

// Ensure that Interfaces for these types are implemented fully.
var _ gpio.Group = &LineSet{}
var _ gpio.PinIO = &LineSetLine{}
var _ gpio.PinIn = &LineSetLine{}
var _ gpio.PinOut = &LineSetLine{}

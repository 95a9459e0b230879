package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// The consumer name to use for line requests. Initialized in init()
var consumer string

// The set of GPIO Chips found on the running device.
var Chips []*Chip

// A GPIOLine represents a specific line of a GPIO Chip. GPIOLine implements
// periph.io/conn/v3/gpio.PinIn, PinIO, and PinOut. A line is obtained by
// calling gpioreg.ByName(), or using the Chip.ByName() or ByNumber()
// methods.
//
// The line is requested from the kernel the first time it is configured
// and held until Close is called.
type GPIOLine struct {
	// The Offset of this line on the chip. Note that this has NO RELATIONSHIP
	// to the pin numbering scheme that may be in use on a board.
	number uint32
	// The name supplied by the OS Driver
	name string
	// If the line is in use, this may be populated with the
	// consuming application's information.
	consumer  string
	edge      gpio.Edge
	pull      gpio.Pull
	direction LineDir
	mu        sync.Mutex
	chip      *Chip
	lines     *Lines
	halted    atomic.Bool
}

func newGPIOLine(chip *Chip, info *LineInfo) *GPIOLine {
	return &GPIOLine{
		number:   info.Offset(),
		name:     info.Name(),
		consumer: info.Consumer(),
		chip:     chip,
	}
}

// Close releases the line.
func (line *GPIOLine) Close() error {
	line.mu.Lock()
	defer line.mu.Unlock()
	var err error
	if line.lines != nil {
		err = line.lines.Close()
	}
	line.lines = nil
	line.consumer = ""
	line.edge = gpio.NoEdge
	line.direction = LineDirNotSet
	line.pull = gpio.PullNoChange
	return err
}

// Consumer returns the name of the consumer specified for a line when
// a line request was performed. The format used by this library is
// program_name@pid.
func (line *GPIOLine) Consumer() string {
	line.mu.Lock()
	defer line.mu.Unlock()
	return line.consumer
}

// DefaultPull - return gpio.PullNoChange. Reviewing the GPIO v2 Kernel IOCTL docs, this isn't possible.
func (line *GPIOLine) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Halt interrupts a pending WaitForEdge() command.
func (line *GPIOLine) Halt() error {
	line.halted.Store(true)
	return nil
}

// Configure the GPIOLine for input. Implements gpio.PinIn.
func (line *GPIOLine) In(pull gpio.Pull, edge gpio.Edge) error {
	line.mu.Lock()
	defer line.mu.Unlock()
	return line.in(pull, edge)
}

// in is In with line.mu held.
func (line *GPIOLine) in(pull gpio.Pull, edge gpio.Edge) error {
	if err := line.configure(Options().Input().WithBias(pull).WithEdgeDetect(edge)); err != nil {
		return fmt.Errorf("GPIOLine.In(): %w", err)
	}
	line.edge = edge
	line.direction = LineInput
	line.pull = pull
	return nil
}

// Info returns the state of the line as reported by the kernel.
func (line *GPIOLine) Info() (LineInfo, error) {
	return line.chip.LineInfo(line.number)
}

// Implements gpio.Pin
func (line *GPIOLine) Name() string {
	return line.name
}

// Number returns the line offset/number within the Chip. Implements gpio.Pin
func (line *GPIOLine) Number() int {
	return int(line.number)
}

// Write the specified level to the line. Implements gpio.PinOut
func (line *GPIOLine) Out(l gpio.Level) error {
	line.mu.Lock()
	defer line.mu.Unlock()
	if line.direction != LineOutput {
		if err := line.configure(Options().Output(), AllLevel(l)); err != nil {
			return fmt.Errorf("GPIOLine.Out(): %w", err)
		}
		line.direction = LineOutput
		line.edge = gpio.NoEdge
		line.pull = gpio.PullNoChange
		return nil
	}
	_, err := line.lines.Write(AllLevel(l))
	return err
}

// Pull returns the configured Line Bias.
func (line *GPIOLine) Pull() gpio.Pull {
	line.mu.Lock()
	defer line.mu.Unlock()
	return line.pull
}

// Not implemented because the kernel PWM is not in the ioctl library
// but a different one.
func (line *GPIOLine) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("PWM() not implemented")
}

// Read the value of this line. Implements gpio.PinIn. A line that was never
// configured is set up as an input first.
func (line *GPIOLine) Read() gpio.Level {
	line.mu.Lock()
	defer line.mu.Unlock()
	if line.direction == LineDirNotSet {
		if err := line.in(gpio.PullNoChange, gpio.NoEdge); err != nil {
			logger.WithError(err).WithField("line", line.name).Error("GPIOLine.Read()")
			return false
		}
	}
	values, err := line.lines.Read()
	if err != nil {
		logger.WithError(err).WithField("line", line.name).Error("GPIOLine.Read()")
		return false
	}
	level, _ := values.Get(line.number)
	return level
}

func (line *GPIOLine) MarshalJSON() ([]byte, error) {
	line.mu.Lock()
	consumer, direction, pull, edge := line.consumer, line.direction, line.pull, line.edge
	line.mu.Unlock()
	return json.Marshal(struct {
		Line      int    `json:"Line"`
		Name      string `json:"Name"`
		Consumer  string `json:"Consumer"`
		Direction string `json:"Direction"`
		Pull      string `json:"Pull"`
		Edges     string `json:"Edges"`
	}{
		Line:      line.Number(),
		Name:      line.Name(),
		Consumer:  consumer,
		Direction: direction.String(),
		Pull:      pull.String(),
		Edges:     edge.String()})
}

// String returns information about the line in valid JSON format.
func (line *GPIOLine) String() string {
	json, _ := json.MarshalIndent(line, "", "    ")
	return string(json)
}

// Wait for this line to trigger and edge event. You must call In() with
// a valid edge for this to work. To interrupt a waiting line, call Halt().
// Implements gpio.PinIn.
//
// Note that this does not return which edge was detected for the
// gpio.EdgeBoth configuration. If you really need the edge,
// LineSet.WaitForEdge() does return the edge that triggered.
//
// timeout for the edge change to occur. If 0 or negative, waits forever.
func (line *GPIOLine) WaitForEdge(timeout time.Duration) bool {
	line.mu.Lock()
	lines := line.lines
	configured := line.edge != gpio.NoEdge && line.direction == LineInput
	line.mu.Unlock()
	if !configured || lines == nil {
		logger.WithField("line", line.name).Warn("call to WaitForEdge() when line hasn't been configured for edge detection.")
		return false
	}
	line.halted.Store(false)
	_, ok, err := waitEdge(lines, timeout, &line.halted)
	if err != nil {
		logger.WithError(err).WithField("line", line.name).Error("GPIOLine.WaitForEdge()")
	}
	return ok
}

// configure requests the line with options, or changes the configuration
// of the line if it is already held. line.mu must be held.
func (line *GPIOLine) configure(options LineOptions, values ...ValueSource) error {
	cfg := LineConfig{Options: options, Values: values}
	if line.lines != nil {
		return line.lines.Reconfigure(cfg)
	}
	set, err := NewOffsets(line.number)
	if err != nil {
		return err
	}
	lines, err := line.chip.Request(&LineRequest{Offsets: set, LineConfig: cfg})
	if err != nil {
		return err
	}
	line.lines = lines
	line.consumer = lines.Consumer()
	return nil
}

// Deprecated: Use PinFunc.Func. Will be removed in v4. Function implements pin.Pin.
func (line *GPIOLine) Function() string {
	return string(line.Func())
}

// Func implements pin.PinFunc.
func (line *GPIOLine) Func() pin.Func {
	line.mu.Lock()
	direction := line.direction
	line.mu.Unlock()
	if direction == LineInput {
		if line.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	} else if direction == LineOutput {
		if line.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	}
	return pin.FuncNone
}

// SupportedFuncs implements pin.PinFunc.
func (line *GPIOLine) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.IN, gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (line *GPIOLine) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return line.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT_HIGH:
		return line.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return line.Out(gpio.Low)
	default:
		return errors.New("unsupported function")
	}
}

// driverGPIO implements periph.Driver.
type driverGPIO struct {
	_ string
}

func (d *driverGPIO) String() string {
	return "ioctl-gpio"
}

func (d *driverGPIO) Prerequisites() []string {
	return nil
}

func (d *driverGPIO) After() []string {
	return nil
}

// Init initializes GPIO ioctl handling code.
//
// # Uses Linux gpio ioctl as described at
//
// https://docs.kernel.org/userspace-api/gpio/chardev.html
func (d *driverGPIO) Init() (bool, error) {
	if runtime.GOOS != "linux" {
		return false, errors.New("gpio character devices require linux")
	}
	chips, err := OpenChips()
	if err != nil {
		return true, err
	}
	if len(chips) == 0 {
		return false, errors.New("no GPIO chips found")
	}

	// Get a list of already registered GPIO Line names.
	registeredPins := make(map[string]struct{})
	for _, pin := range gpioreg.All() {
		registeredPins[pin.Name()] = struct{}{}
	}

	// Now, iterate over the chips we found and add their lines to conn/gpio/gpioreg
	for _, chip := range chips {
		Chips = append(Chips, chip)
		lines, err := chip.GPIOLines()
		if err != nil {
			logger.WithError(err).WithField("chip", chip.Name()).Error("reading lines")
			continue
		}
		for _, line := range lines {
			// If the line has some sort of reasonable name...
			if len(line.name) > 0 && line.name != "_" && line.name != "-" {
				// See if the name is already registered. On the Pi5, there are at
				// least two chips that export "2712_WAKE" as the line name.
				if _, ok := registeredPins[line.Name()]; ok {
					// This is a duplicate name. Prefix the line name with the
					// chip name.
					line.name = chip.Name() + "-" + line.Name()
					if _, found := registeredPins[line.Name()]; found {
						// It's still not unique. Skip it.
						continue
					}
				}
				registeredPins[line.Name()] = struct{}{}
				if err = gpioreg.Register(line); err != nil {
					logger.WithError(err).WithFields(logrus.Fields{"chip": chip.Name(), "line": line.Name()}).Warn("gpioreg.Register(line)")
				}
			}
		}
	}
	return len(Chips) > 0, nil
}

var drvGPIO driverGPIO

func init() {
	// Init our consumer name. It's used when a line is requested, and
	// allows utility programs like gpioinfo to find out who has a line
	// open.
	consumer = truncateName(fmt.Sprintf("%s@%d", path.Base(os.Args[0]), os.Getpid()))

	driverreg.MustRegister(&drvGPIO)
}

// Ensure that Interfaces for these types are implemented fully.
var _ gpio.PinIO = &GPIOLine{}
var _ gpio.PinIn = &GPIOLine{}
var _ gpio.PinOut = &GPIOLine{}
var _ pin.PinFunc = &GPIOLine{}

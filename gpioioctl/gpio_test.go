//go:build linux

package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/pin"
)

const (
	_OUT_LINE = "GPIO5"
	_IN_LINE  = "GPIO13"
)

func TestConsumer(t *testing.T) {
	_, chip := newTestChip(t)
	l := chip.ByName(_OUT_LINE)
	if l == nil {
		t.Fatalf("Error retrieving GPIO Line %s", _OUT_LINE)
	}
	defer l.Close()
	// Consumer isn't written until the line is configured.
	if l.Consumer() != "" {
		t.Errorf("unconfigured line has consumer %q", l.Consumer())
	}
	err := l.Out(true)
	if err != nil {
		t.Errorf("l.Out() %s", err)
	}
	if l.Consumer() != consumer {
		t.Errorf("Incorrect consumer name. Expected consumer name %s on line. received %s", consumer, l.Consumer())
	}
	info, err := l.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Consumer() != consumer || !info.IsUsed() {
		t.Errorf("kernel reports %s", info.String())
	}
}

func TestNumber(t *testing.T) {
	_, chip := newTestChip(t)
	l := chip.ByName(_OUT_LINE)
	if l == nil {
		t.Fatalf("Error retrieving GPIO Line %s", _OUT_LINE)
	}
	if l.Number() < 0 || l.Number() >= chip.LineCount() {
		t.Errorf("line.Number() returned value (%d) out of range", l.Number())
	}
	l2 := chip.ByNumber(l.Number())
	if l2 == nil {
		t.Errorf("retrieve Line from chip by number %d failed.", l.Number())
	}
}

func TestString(t *testing.T) {
	_, chip := newTestChip(t)
	line := chip.ByName(_OUT_LINE)
	if line == nil {
		t.Fatalf("Error retrieving GPIO Line %s", _OUT_LINE)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line.String()), &decoded); err != nil {
		t.Fatalf("GPIOLine.String() is not JSON: %v", err)
	}
	if decoded["Name"] != _OUT_LINE || decoded["Direction"] != "NotSet" {
		t.Errorf("unexpected JSON %s", line.String())
	}
}

func TestWriteReadSinglePin(t *testing.T) {
	k, chip := newTestChip(t)
	outLine := chip.ByName(_OUT_LINE)
	defer outLine.Close()
	if err := outLine.Out(true); err != nil {
		t.Fatalf("outLine.Out() %s", err)
	}
	req := k.last()
	if LineFlag(req.raw.config.flags) != FlagOutput {
		t.Errorf("line requested with %s", LineFlag(req.raw.config.flags))
	}
	// The first level is sent with the request itself.
	if req.values != 1 || len(req.sets) != 0 {
		t.Errorf("kernel holds %#b after %d writes", req.values, len(req.sets))
	}
	if val := outLine.Read(); !val {
		t.Error("Error reading/writing GPIO Pin. Expected true, received false!")
	}
	if err := outLine.Out(false); err != nil {
		t.Errorf("outLine.Out() %s", err)
	}
	if val := outLine.Read(); val {
		t.Error("Error reading/writing GPIO Pin. Expected false, received true!")
	}
	if f := outLine.Func(); f != gpio.OUT_LOW {
		t.Errorf("Func()=%s", f)
	}

	// Lines change direction without being released.
	if err := outLine.In(gpio.PullUp, gpio.NoEdge); err != nil {
		t.Fatal(err)
	}
	if len(req.configs) != 1 || LineFlag(req.configs[0].flags) != FlagInput|FlagBiasPullUp {
		t.Errorf("kernel received configurations %+v", req.configs)
	}
	if outLine.Pull() != gpio.PullUp {
		t.Errorf("Pull() returned %s expected %s", outLine.Pull(), gpio.PullUp)
	}
	if f := outLine.Func(); f != gpio.IN_LOW {
		t.Errorf("Func()=%s", f)
	}
}

func TestReadConfiguresInput(t *testing.T) {
	k, chip := newTestChip(t)
	inLine := chip.ByName(_IN_LINE)
	defer inLine.Close()
	if inLine.Func() != pin.FuncNone {
		t.Errorf("unconfigured line reports %s", inLine.Func())
	}
	_ = inLine.Read()
	req := k.last()
	if LineFlag(req.raw.config.flags) != FlagInput|FlagBiasDisabled {
		t.Errorf("line requested with %s", LineFlag(req.raw.config.flags))
	}
	if err := inLine.Close(); err != nil {
		t.Fatal(err)
	}
	info, err := chip.LineInfo(uint32(inLine.Number()))
	if err != nil {
		t.Fatal(err)
	}
	if info.IsUsed() {
		t.Error("line still held after Close()")
	}
}

// Run with -race: readers and reconfiguration share line.mu.
func TestConcurrentAccess(t *testing.T) {
	_, chip := newTestChip(t)
	line := chip.ByName(_IN_LINE)
	defer line.Close()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = line.Read()
				_ = line.Pull()
				_ = line.Consumer()
				_ = line.Func()
				_ = line.String()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			if err := line.In(gpio.PullDown, gpio.NoEdge); err != nil {
				t.Error(err)
				return
			}
			if err := line.Close(); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestSetFunc(t *testing.T) {
	k, chip := newTestChip(t)
	line := chip.ByName(_OUT_LINE)
	defer line.Close()
	if err := line.SetFunc(gpio.OUT_HIGH); err != nil {
		t.Fatal(err)
	}
	if k.last().values != 1 {
		t.Error("SetFunc(OUT_HIGH) did not drive the line high")
	}
	if err := line.SetFunc(gpio.IN); err != nil {
		t.Fatal(err)
	}
	if err := line.SetFunc(pin.FuncNone); err == nil {
		t.Error("SetFunc(FuncNone) succeeded")
	}
}

// Test detection of rising and falling edges.
func TestWaitForEdgeSinglePin(t *testing.T) {
	tests := []struct {
		edge gpio.Edge
		id   uint32
	}{
		{edge: gpio.RisingEdge, id: _GPIO_V2_LINE_EVENT_RISING_EDGE},
		{edge: gpio.FallingEdge, id: _GPIO_V2_LINE_EVENT_FALLING_EDGE},
		{edge: gpio.BothEdges, id: _GPIO_V2_LINE_EVENT_RISING_EDGE},
		{edge: gpio.BothEdges, id: _GPIO_V2_LINE_EVENT_FALLING_EDGE},
	}
	k, chip := newTestChip(t)
	line := chip.ByName(_IN_LINE)
	defer line.Close()

	for _, test := range tests {
		if err := line.In(gpio.PullUp, test.edge); err != nil {
			t.Fatalf("line.In() %s", err)
		}
		k.last().inject(t, gpio_v2_line_event{Id: test.id, Offset: uint32(line.Number())}, 0)
		if edgeReceived := line.WaitForEdge(time.Second); !edgeReceived {
			t.Errorf("Expected Edge %s was not received", test.edge)
		}
	}
}

func TestWaitForEdgeNotConfigured(t *testing.T) {
	_, chip := newTestChip(t)
	line := chip.ByName(_IN_LINE)
	defer line.Close()
	if line.WaitForEdge(time.Millisecond) {
		t.Error("WaitForEdge() on an unconfigured line returned true")
	}
	if err := line.In(gpio.PullUp, gpio.NoEdge); err != nil {
		t.Fatal(err)
	}
	if line.WaitForEdge(time.Millisecond) {
		t.Error("WaitForEdge() without edge detection returned true")
	}
}

func TestWaitForEdgeTimeout(t *testing.T) {
	_, chip := newTestChip(t)
	line := chip.ByName(_IN_LINE)
	defer line.Close()
	err := line.In(gpio.PullUp, gpio.BothEdges)
	if err != nil {
		t.Error(err)
	}
	tStart := time.Now().UnixMilli()
	line.WaitForEdge(500 * time.Millisecond)
	tEnd := time.Now().UnixMilli()
	tDiff := tEnd - tStart
	if tDiff < 450 || tDiff > 1500 {
		t.Errorf("timeout duration failure. Expected duration: 500, Actual duration: %d", tDiff)
	}
}

func TestHalt(t *testing.T) {
	_, chip := newTestChip(t)
	line := chip.ByName(_IN_LINE)
	defer line.Close()
	err := line.In(gpio.PullUp, gpio.BothEdges)
	if err != nil {
		t.Fatalf("TestHalt() %s", err)
	}
	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = line.Halt()
	}()
	tStart := time.Now().UnixMilli()
	// A zero timeout waits until halted.
	if line.WaitForEdge(0) {
		t.Error("WaitForEdge() returned true without an event")
	}
	tEnd := time.Now().UnixMilli()
	tDiff := tEnd - tStart
	if tDiff > 2000 {
		t.Errorf("error calling halt to interrupt WaitForEdge() Duration %d exceeded expected value.", tDiff)
	}
}

func TestDriverInit(t *testing.T) {
	k := newFakeKernel(t)
	k.addChip("gpiochip0", "pinctrl-rp1", "DRVTEST_A", "DRVTEST_WAKE", "", "-")
	k.addChip("gpiochip1", "aon-gpio", "DRVTEST_B", "DRVTEST_WAKE")
	oldChips := Chips
	Chips = nil
	t.Cleanup(func() {
		for _, name := range []string{"DRVTEST_A", "DRVTEST_WAKE", "DRVTEST_B", "gpiochip1-DRVTEST_WAKE"} {
			_ = gpioreg.Unregister(name)
		}
		for _, chip := range Chips {
			_ = chip.Close()
		}
		Chips = oldChips
	})

	var d driverGPIO
	ok, err := d.Init()
	if !ok || err != nil {
		t.Fatalf("Init() returned %t, %v", ok, err)
	}
	if len(Chips) != 2 || Chips[0].Label() != "pinctrl-rp1" {
		t.Fatalf("Chips=%v", Chips)
	}
	for _, name := range []string{"DRVTEST_A", "DRVTEST_WAKE", "DRVTEST_B", "gpiochip1-DRVTEST_WAKE"} {
		p := gpioreg.ByName(name)
		if p == nil {
			t.Errorf("%s is not registered", name)
			continue
		}
		if _, ok := p.(*GPIOLine); !ok {
			t.Errorf("%s is a %T", name, p)
		}
	}
	if p := gpioreg.ByName("-"); p != nil {
		t.Errorf("unnamed line registered as %s", p)
	}
}

func TestDriverInitNoChips(t *testing.T) {
	newFakeKernel(t)
	oldChips := Chips
	Chips = nil
	t.Cleanup(func() { Chips = oldChips })
	var d driverGPIO
	if ok, err := d.Init(); ok || err == nil {
		t.Errorf("Init() without chips returned %t, %v", ok, err)
	}
}

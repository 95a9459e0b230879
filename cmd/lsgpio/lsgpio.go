// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/gpiocdev/gpioioctl"
)

// lineInfo is the part of gpioioctl.LineInfo printed by lsgpio.
type lineInfo interface {
	Offset() uint32
	Name() string
	Consumer() string
	IsUsed() bool
	Direction() gpioioctl.LineDir
	IsActiveLow() bool
	Drive() gpioioctl.Drive
	Bias() gpio.Pull
	Edge() gpio.Edge
	Debounce() (time.Duration, bool)
}

type lineRow struct {
	Offset   uint32
	Name     string
	Consumer string
	Bias     string
	Edge     string
	Debounce string
	Flags    []string
}

func newLineRow(info lineInfo) lineRow {
	row := lineRow{
		Offset:   info.Offset(),
		Name:     info.Name(),
		Consumer: info.Consumer(),
	}
	if row.Name == "" {
		row.Name = "unnamed"
	}
	if row.Consumer == "" {
		row.Consumer = "unused"
	}
	if info.IsUsed() {
		row.Flags = append(row.Flags, "used")
	}
	if info.Direction() == gpioioctl.LineOutput {
		row.Flags = append(row.Flags, "output")
	}
	if info.IsActiveLow() {
		row.Flags = append(row.Flags, "active-low")
	}
	switch info.Drive() {
	case gpioioctl.DriveOpenDrain:
		row.Flags = append(row.Flags, "open-drain")
	case gpioioctl.DriveOpenSource:
		row.Flags = append(row.Flags, "open-source")
	}
	if bias := info.Bias(); bias != gpio.PullNoChange {
		row.Bias = bias.String()
	}
	if edge := info.Edge(); edge != gpio.NoEdge {
		row.Edge = edge.String()
	}
	if d, ok := info.Debounce(); ok {
		row.Debounce = d.String()
	}
	return row
}

func chipTitle(name, label string, lines int) string {
	return fmt.Sprintf("GPIO chip: %q, %q, %d GPIO lines", name, label, lines)
}

func renderChip(w io.Writer, title string, rows []lineRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("%s", title)
	t.AppendHeader(table.Row{"Line", "Name", "Consumer", "Bias", "Edge", "Debounce", "Flags"})
	for _, row := range rows {
		var flags string
		if len(row.Flags) != 0 {
			flags = "[" + strings.Join(row.Flags, " ") + "]"
		}
		t.AppendRow(table.Row{row.Offset, row.Name, row.Consumer, row.Bias, row.Edge, row.Debounce, flags})
	}
	t.Render()
}

// listChip prints every line of chip, as a table or as JSON.
func listChip(w io.Writer, chip *gpioioctl.Chip, asJSON bool) error {
	infos, err := chip.LineInfos()
	if err != nil {
		return errors.Wrapf(err, "reading lines of %s", chip.Name())
	}
	if asJSON {
		b, err := json.MarshalIndent(struct {
			Chip  *gpioioctl.Chip
			Lines []gpioioctl.LineInfo
		}{chip, infos}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encoding chip")
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	rows := make([]lineRow, len(infos))
	for i := range infos {
		rows[i] = newLineRow(infos[i])
	}
	renderChip(w, chipTitle(chip.Name(), chip.Label(), chip.LineCount()), rows)
	return nil
}

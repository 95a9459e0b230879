// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/gpiocdev/gpioioctl"
)

// levelWriter is implemented by *gpioioctl.Lines.
type levelWriter interface {
	Write(sources ...gpioioctl.ValueSource) (gpioioctl.LineValues, error)
}

// blink toggles every line of w each period until ctx is done, then leaves
// them inactive. It returns the number of writes.
func blink(ctx context.Context, w levelWriter, period time.Duration, logger *logrus.Entry) (int, error) {
	if period <= 0 {
		return 0, errors.Errorf("period must be positive, got %s", period)
	}
	t := time.NewTicker(period)
	defer t.Stop()
	level := gpio.Low
	writes := 0
	for {
		select {
		case <-ctx.Done():
			if level == gpio.High {
				if _, err := w.Write(gpioioctl.AllLevel(gpio.Low)); err != nil {
					return writes, errors.Wrap(err, "turning lines off")
				}
				writes++
			}
			return writes, nil
		case <-t.C:
		}
		level = !level
		if _, err := w.Write(gpioioctl.AllLevel(level)); err != nil {
			return writes, errors.Wrapf(err, "writing %s", level)
		}
		writes++
		logger.WithField("level", level).Debug("toggled")
	}
}

// outputOptions builds the line configuration selected on the command line.
func outputOptions(drive string, activeLow bool) (gpioioctl.LineOptions, error) {
	active := gpioioctl.ActiveHigh
	if activeLow {
		active = gpioioctl.ActiveLow
	}
	out := gpioioctl.Options().Output().WithActive(active)
	switch drive {
	case "", "push-pull":
		return out, nil
	case "open-drain":
		return out.WithDriveOpen(gpioioctl.DriveOpenDrain), nil
	case "open-source":
		return out.WithDriveOpen(gpioioctl.DriveOpenSource), nil
	default:
		return nil, errors.Errorf("unknown drive %q, expected push-pull, open-drain or open-source", drive)
	}
}

// parseLines resolves each argument as an offset or, failing that, as a line
// name.
func parseLines(args []string, lookup func(name string) (uint32, bool)) ([]uint32, error) {
	if len(args) == 0 {
		return nil, errors.New("no line given")
	}
	offsets := make([]uint32, 0, len(args))
	for _, arg := range args {
		if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
			offsets = append(offsets, uint32(n))
			continue
		}
		offset, ok := lookup(arg)
		if !ok {
			return nil, errors.Errorf("no line named %q", arg)
		}
		offsets = append(offsets, offset)
	}
	return offsets, nil
}

// chipLookup finds lines of chip by name.
func chipLookup(chip *gpioioctl.Chip) (func(string) (uint32, bool), error) {
	infos, err := chip.LineInfos()
	if err != nil {
		return nil, errors.Wrapf(err, "reading lines of %s", chip.Name())
	}
	return func(name string) (uint32, bool) {
		for i := range infos {
			if infos[i].Name() == name {
				return infos[i].Offset(), true
			}
		}
		return 0, false
	}, nil
}

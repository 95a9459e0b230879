// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// lsgpio lists the GPIO chips of the system and the state of their lines.
//
// With --watch it keeps running and lists chips as they are plugged in.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"periph.io/x/gpiocdev/gpioioctl"
	"periph.io/x/gpiocdev/logconfig"
	"periph.io/x/gpiocdev/netlink"
)

const (
	flagChip     = "chip"
	flagJSON     = "json"
	flagWatch    = "watch"
	flagLogLevel = "log-level"
	flagNoColor  = "no-color"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lsgpio: %v\n", err)
		os.Exit(1)
	}
}

func newApp(w io.Writer) *cli.App {
	var logger *logrus.Entry
	return &cli.App{
		Name:      "lsgpio",
		Usage:     "list GPIO chips and lines",
		Writer:    w,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    flagChip,
				Aliases: []string{"c"},
				Usage:   "only list `CHIP`, given as a path, name, number or label",
				EnvVars: []string{"GPIOCDEV_CHIP"},
			},
			&cli.BoolFlag{
				Name:  flagJSON,
				Usage: "print JSON instead of tables",
			},
			&cli.BoolFlag{
				Name:    flagWatch,
				Aliases: []string{"w"},
				Usage:   "keep running and list chips as they appear",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Value:   "warning",
				Usage:   "logrus level name or number from 0 to 6",
				EnvVars: []string{"GPIOCDEV_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    flagNoColor,
				Usage:   "disable colored logs",
				EnvVars: []string{"GPIOCDEV_NO_COLOR"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			logger, err = logconfig.New(logconfig.Config{Level: c.String(flagLogLevel), NoColor: c.Bool(flagNoColor)}, "lsgpio")
			if err != nil {
				return err
			}
			gpioioctl.SetLogger(logger.WithField("prefix", "gpioioctl"))
			return nil
		},
		Action: func(c *cli.Context) error {
			if err := list(c.App.Writer, c.StringSlice(flagChip), c.Bool(flagJSON)); err != nil {
				return err
			}
			if !c.Bool(flagWatch) {
				return nil
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()
			return watch(ctx, c.App.Writer, logger, c.Bool(flagJSON))
		},
	}
}

func list(w io.Writer, ids []string, asJSON bool) error {
	var chips []*gpioioctl.Chip
	if len(ids) == 0 {
		var err error
		if chips, err = gpioioctl.OpenChips(); err != nil {
			return errors.Wrap(err, "listing chips")
		}
	} else {
		for _, id := range ids {
			chip, err := gpioioctl.OpenChip(id)
			if err != nil {
				closeAll(chips)
				return errors.Wrapf(err, "opening %s", id)
			}
			chips = append(chips, chip)
		}
	}
	defer closeAll(chips)
	for _, chip := range chips {
		if err := listChip(w, chip, asJSON); err != nil {
			return err
		}
	}
	return nil
}

func closeAll(chips []*gpioioctl.Chip) {
	for _, chip := range chips {
		_ = chip.Close()
	}
}

func watch(ctx context.Context, w io.Writer, logger *logrus.Entry, asJSON bool) error {
	m, err := netlink.NewMonitor()
	if err != nil {
		return errors.Wrap(err, "watching chips")
	}
	defer m.Close()
	for {
		ev, err := m.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "watching chips")
		}
		if !ev.IsGPIOChip() {
			continue
		}
		logger.WithFields(logrus.Fields{"action": ev.Action, "devpath": ev.DevPath}).Debug("uevent")
		switch ev.Action {
		case netlink.ActionAdd:
			chip, err := gpioioctl.Open(ev.DevNode())
			if err != nil {
				logger.WithError(err).WithField("path", ev.DevNode()).Warn("new chip cannot be opened")
				continue
			}
			err = listChip(w, chip, asJSON)
			_ = chip.Close()
			if err != nil {
				logger.WithError(err).Warn("listing new chip")
			}
		case netlink.ActionRemove:
			fmt.Fprintf(w, "GPIO chip removed: %s\n", ev.DevNode())
		}
	}
}

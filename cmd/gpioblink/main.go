// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// gpioblink toggles one or more GPIO lines at a fixed period.
//
//	gpioblink --chip gpiochip0 --period 250ms --duration 10s GPIO17 27
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/gpiocdev/gpioioctl"
	"periph.io/x/gpiocdev/logconfig"
)

const (
	flagChip      = "chip"
	flagPeriod    = "period"
	flagDuration  = "duration"
	flagActiveLow = "active-low"
	flagDrive     = "drive"
	flagConsumer  = "consumer"
	flagLogLevel  = "log-level"
	flagNoColor   = "no-color"
)

const defaultPeriod = 500 * time.Millisecond

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gpioblink: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var logger *logrus.Entry
	return &cli.App{
		Name:      "gpioblink",
		Usage:     "toggle GPIO lines",
		ArgsUsage: "LINE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagChip,
				Aliases: []string{"c"},
				Value:   "gpiochip0",
				Usage:   "`CHIP` holding the lines, given as a path, name, number or label",
				EnvVars: []string{"GPIOCDEV_CHIP"},
			},
			&cli.DurationFlag{
				Name:    flagPeriod,
				Aliases: []string{"p"},
				Value:   defaultPeriod,
				Usage:   "time between two toggles",
			},
			&cli.DurationFlag{
				Name:    flagDuration,
				Aliases: []string{"d"},
				Usage:   "stop after this long, 0 runs until interrupted",
			},
			&cli.BoolFlag{
				Name:  flagActiveLow,
				Usage: "treat the lines as active low",
			},
			&cli.StringFlag{
				Name:  flagDrive,
				Value: "push-pull",
				Usage: "push-pull, open-drain or open-source",
			},
			&cli.StringFlag{
				Name:  flagConsumer,
				Value: "gpioblink",
				Usage: "consumer label reported by the kernel",
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
			logger, err = logconfig.New(logconfig.Config{Level: c.String(flagLogLevel), NoColor: c.Bool(flagNoColor)}, "gpioblink")
			if err != nil {
				return err
			}
			gpioioctl.SetLogger(logger.WithField("prefix", "gpioioctl"))
			return nil
		},
		Action: func(c *cli.Context) error {
			options, err := outputOptions(c.String(flagDrive), c.Bool(flagActiveLow))
			if err != nil {
				return err
			}
			chip, err := gpioioctl.OpenChip(c.String(flagChip))
			if err != nil {
				return errors.Wrapf(err, "opening %s", c.String(flagChip))
			}
			defer chip.Close()
			lookup, err := chipLookup(chip)
			if err != nil {
				return err
			}
			offsets, err := parseLines(c.Args().Slice(), lookup)
			if err != nil {
				return err
			}
			set, err := gpioioctl.NewOffsets(offsets...)
			if err != nil {
				return errors.Wrap(err, "invalid lines")
			}
			lines, err := chip.Request(&gpioioctl.LineRequest{
				Consumer: c.String(flagConsumer),
				Offsets:  set,
				LineConfig: gpioioctl.LineConfig{
					Options: options,
					Values:  []gpioioctl.ValueSource{gpioioctl.AllLevel(gpio.Low)},
				},
			})
			if err != nil {
				return errors.Wrapf(err, "requesting lines %s", set.String())
			}
			defer lines.Close()
			logger.WithFields(logrus.Fields{"chip": chip.Name(), "lines": set.String()}).Info("blinking")

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()
			if d := c.Duration(flagDuration); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			writes, err := blink(ctx, lines, c.Duration(flagPeriod), logger)
			logger.WithField("writes", writes).Info("done")
			return err
		},
	}
}

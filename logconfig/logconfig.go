// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logconfig builds the logrus loggers used by the gpiocdev tools.
package logconfig

import (
	"io"
	"strconv"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config selects the level and output of a logger.
type Config struct {
	// Level is a logrus level name ("warning", "debug") or its number, 0 to 6.
	Level string
	// NoColor disables ANSI colors even on a terminal.
	NoColor bool
	// Out defaults to stderr.
	Out io.Writer
}

// ParseLevel accepts both the names known to logrus and the numeric levels
// from 0 (panic) to 6 (trace).
func ParseLevel(s string) (logrus.Level, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < int(logrus.PanicLevel) || n > int(logrus.TraceLevel) {
			return 0, errors.Errorf("log level %d out of range 0-6", n)
		}
		return logrus.Level(n), nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return 0, errors.Wrap(err, "invalid log level")
	}
	return level, nil
}

// New returns an entry tagged with prefix, which the formatter prints in
// front of every message.
func New(cfg Config, prefix string) (*logrus.Entry, error) {
	level := logrus.WarnLevel
	if cfg.Level != "" {
		var err error
		if level, err = ParseLevel(cfg.Level); err != nil {
			return nil, err
		}
	}
	logrus.ErrorKey = "$error"
	logger := logrus.New()
	logger.SetLevel(level)
	if cfg.Out != nil {
		logger.SetOutput(cfg.Out)
	}
	formatter := new(prefixed.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	formatter.PrefixPadding = 12
	formatter.SpacePadding = 40
	formatter.DisableColors = cfg.NoColor
	logger.SetFormatter(formatter)
	return logger.WithField("prefix", prefix), nil
}

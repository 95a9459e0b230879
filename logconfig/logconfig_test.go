// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package logconfig

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{in: "debug", want: logrus.DebugLevel},
		{in: "warning", want: logrus.WarnLevel},
		{in: "0", want: logrus.PanicLevel},
		{in: "6", want: logrus.TraceLevel},
		{in: "7", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "loud", wantErr: true},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.in)
		if test.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q)=%s, expected an error", test.in, got)
			}
			continue
		}
		if err != nil || got != test.want {
			t.Errorf("ParseLevel(%q)=%s, %v expected %s", test.in, got, err, test.want)
		}
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	entry, err := New(Config{Level: "info", NoColor: true, Out: &buf}, "lsgpio")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("level=%s", entry.Logger.GetLevel())
	}
	entry.Debug("hidden")
	entry.WithField("chip", "gpiochip0").Info("opened")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message written at info level: %q", out)
	}
	for _, want := range []string{"lsgpio", "opened", "chip=gpiochip0"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q missing from %q", want, out)
		}
	}
}

func TestNewDefaultLevel(t *testing.T) {
	entry, err := New(Config{}, "x")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("level=%s", entry.Logger.GetLevel())
	}
	if _, err := New(Config{Level: "nope"}, "x"); err == nil {
		t.Error("New() accepted an invalid level")
	}
}

package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("prefix", "gpioioctl")

// SetLogger replaces the logger used to report problems this package
// recovers from, such as a chip that cannot be opened during Init. It must
// be called before the driver is initialized.
func SetLogger(l *logrus.Entry) {
	logger = l
}

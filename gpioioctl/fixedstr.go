package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// encodeName copies s into a NUL padded kernel name field. The result always
// keeps room for the terminating NUL.
func encodeName(s string) ([_GPIO_MAX_NAME_SIZE]byte, error) {
	var b [_GPIO_MAX_NAME_SIZE]byte
	if len(s) > MaxConsumerLen {
		return b, fmt.Errorf("name %q is %d bytes, at most %d fit: %w", s, len(s), MaxConsumerLen, ErrCapacityExceeded)
	}
	if !utf8.ValidString(s) || strings.IndexByte(s, 0) >= 0 {
		return b, fmt.Errorf("name %q: %w", s, ErrMalformed)
	}
	copy(b[:], s)
	return b, nil
}

// decodeName returns the string held in a kernel name field. A field
// without any NUL is taken whole.
func decodeName(b []byte) (string, error) {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	for _, c := range b[n:] {
		if c != 0 {
			return "", fmt.Errorf("name %q has data after its terminator: %w", b[:n], ErrMalformed)
		}
	}
	if !utf8.Valid(b[:n]) {
		return "", fmt.Errorf("name %q is not valid UTF-8: %w", b[:n], ErrMalformed)
	}
	return string(b[:n]), nil
}

// truncateName shortens s to fit a kernel name field without splitting a
// UTF-8 sequence and drops anything after an embedded NUL.
func truncateName(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	s = strings.ToValidUTF8(s, "")
	for len(s) > MaxConsumerLen {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"fmt"
	"iter"
	"math/bits"
	"strings"

	"periph.io/x/conn/v3/gpio"
)

// MaskedBits holds up to MaxLines logical values. Bit i of Mask() tells
// whether bit i of Bits() is meaningful. Bit i addresses the line at
// position i of the request's Offsets.
//
// Bits outside the mask are always zero, so MaskedBits values can be
// compared with ==. Indices outside [0, MaxLines) are ignored.
type MaskedBits struct {
	bits uint64
	mask uint64
}

// NewMaskedBits returns the MaskedBits made of bits restricted to mask.
func NewMaskedBits(bits, mask uint64) MaskedBits {
	return MaskedBits{bits: bits & mask, mask: mask}
}

// Bits returns the value bits. Bits outside Mask() are zero.
func (m MaskedBits) Bits() uint64 {
	return m.bits
}

// Mask returns the set of meaningful bits.
func (m MaskedBits) Mask() uint64 {
	return m.mask
}

// Len returns the number of meaningful bits.
func (m MaskedBits) Len() int {
	return bits.OnesCount64(m.mask)
}

// IsEmpty reports whether no bit is meaningful.
func (m MaskedBits) IsEmpty() bool {
	return m.mask == 0
}

// Get returns the value of bit i. ok is false when the bit is not part of
// the mask.
func (m MaskedBits) Get(i int) (value, ok bool) {
	if i < 0 || i >= MaxLines || m.mask&(1<<uint(i)) == 0 {
		return false, false
	}
	return m.bits&(1<<uint(i)) != 0, true
}

// Set marks bit i as meaningful and sets it to value.
func (m *MaskedBits) Set(i int, value bool) {
	if i < 0 || i >= MaxLines {
		return
	}
	b := uint64(1) << uint(i)
	m.mask |= b
	if value {
		m.bits |= b
	} else {
		m.bits &^= b
	}
}

// Clear marks bit i as meaningful and clears it.
func (m *MaskedBits) Clear(i int) {
	m.Set(i, false)
}

// With returns a copy of m with bit i set to value.
func (m MaskedBits) With(i int, value bool) MaskedBits {
	m.Set(i, value)
	return m
}

// All iterates over the meaningful bits in ascending order.
func (m MaskedBits) All() iter.Seq2[int, bool] {
	return func(yield func(int, bool) bool) {
		for mask := m.mask; mask != 0; mask &= mask - 1 {
			i := bits.TrailingZeros64(mask)
			if !yield(i, m.bits&(1<<uint(i)) != 0) {
				return
			}
		}
	}
}

// Merge returns the union of m and other. It fails with ErrConflict when a
// bit is meaningful in both and the values differ.
func (m MaskedBits) Merge(other MaskedBits) (MaskedBits, error) {
	if diff := (m.bits ^ other.bits) & m.mask & other.mask; diff != 0 {
		return MaskedBits{}, fmt.Errorf("bits %#x: %w", diff, ErrConflict)
	}
	return MaskedBits{bits: m.bits | other.bits, mask: m.mask | other.mask}, nil
}

func (m MaskedBits) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, v := range m.All() {
		if sb.Len() > 1 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:%t", i, v)
	}
	sb.WriteByte('}')
	return sb.String()
}

func (m MaskedBits) maskedBits(offsets OffsetsView) (MaskedBits, error) {
	return NewMaskedBits(m.bits, m.mask&offsets.mask()), nil
}

func (m MaskedBits) lineValues() gpio_v2_line_values {
	return gpio_v2_line_values{bits: m.bits, mask: m.mask}
}

// LineValues is the state of the lines of a request, keyed by offset.
type LineValues struct {
	offsets OffsetsView
	values  MaskedBits
}

// Offsets returns the offsets the values refer to.
func (lv LineValues) Offsets() OffsetsView {
	return lv.offsets
}

// Bits returns the values indexed by position within Offsets().
func (lv LineValues) Bits() MaskedBits {
	return lv.values
}

// Get returns the level of the line at offset. ok is false when the offset
// is not part of the request or its value was not transferred.
func (lv LineValues) Get(offset uint32) (level gpio.Level, ok bool) {
	i, found := lv.offsets.Index(offset)
	if !found {
		return gpio.Low, false
	}
	v, ok := lv.values.Get(i)
	return gpio.Level(v), ok
}

// All iterates over the transferred values in ascending offset order.
func (lv LineValues) All() iter.Seq2[uint32, gpio.Level] {
	return func(yield func(uint32, gpio.Level) bool) {
		for i, v := range lv.values.All() {
			if i >= lv.offsets.Len() {
				return
			}
			if !yield(lv.offsets.At(i), gpio.Level(v)) {
				return
			}
		}
	}
}

func (lv LineValues) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for offset, l := range lv.All() {
		if sb.Len() > 1 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:%s", offset, l)
	}
	sb.WriteByte('}')
	return sb.String()
}

// ValueSource describes values to write to the lines of a request. It is
// implemented by AllLevel, OffsetLevels and MaskedBits.
type ValueSource interface {
	maskedBits(offsets OffsetsView) (MaskedBits, error)
}

// AllLevel sets every line of a request to the same level.
type AllLevel gpio.Level

func (l AllLevel) maskedBits(offsets OffsetsView) (MaskedBits, error) {
	mask := offsets.mask()
	if l {
		return MaskedBits{bits: mask, mask: mask}, nil
	}
	return MaskedBits{mask: mask}, nil
}

// OffsetLevel is the level of a single line, addressed by offset.
type OffsetLevel struct {
	Offset uint32
	Level  gpio.Level
}

// OffsetLevels sets lines addressed by offset. Every offset must be part of
// the request; listing an offset twice with different levels is a conflict.
type OffsetLevels []OffsetLevel

func (ol OffsetLevels) maskedBits(offsets OffsetsView) (MaskedBits, error) {
	var m MaskedBits
	var missing []uint32
	for _, v := range ol {
		i, ok := offsets.Index(v.Offset)
		if !ok {
			missing = append(missing, v.Offset)
			continue
		}
		if prev, set := m.Get(i); set && prev != bool(v.Level) {
			return MaskedBits{}, fmt.Errorf("offset %d: %w", v.Offset, ErrConflict)
		}
		m.Set(i, bool(v.Level))
	}
	if len(missing) != 0 {
		return MaskedBits{}, fmt.Errorf("offsets %v are not part of the request: %w", missing, ErrNotFound)
	}
	return m, nil
}

// mergeSources resolves and merges sources against offsets.
func mergeSources(offsets OffsetsView, sources ...ValueSource) (MaskedBits, error) {
	var out MaskedBits
	for _, src := range sources {
		m, err := src.maskedBits(offsets)
		if err != nil {
			return MaskedBits{}, err
		}
		if out, err = out.Merge(m); err != nil {
			return MaskedBits{}, err
		}
	}
	return out, nil
}

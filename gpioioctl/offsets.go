package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"fmt"
	"iter"
	"slices"
)

// Offsets is a sorted set of line offsets holding at most MaxLines entries.
// The position of an offset in the set is the bit index used for that line
// in MaskedBits exchanged with the kernel.
//
// The zero value is an empty set. Offsets values can be compared with ==.
type Offsets struct {
	offsets [MaxLines]uint32
	n       int
}

// NewOffsets returns the set holding offsets. Duplicates are dropped. It
// fails with ErrCapacityExceeded when more than MaxLines offsets are passed,
// even if some of them are duplicates.
func NewOffsets(offsets ...uint32) (Offsets, error) {
	return OffsetsFromSeq(slices.Values(offsets))
}

// OffsetsFromSeq is the iterator form of NewOffsets. It stops pulling from
// seq as soon as it produced more than MaxLines values.
func OffsetsFromSeq(seq iter.Seq[uint32]) (Offsets, error) {
	var o Offsets
	n := 0
	for offset := range seq {
		if n == MaxLines {
			return Offsets{}, fmt.Errorf("more than %d offsets: %w", MaxLines, ErrCapacityExceeded)
		}
		o.offsets[n] = offset
		n++
	}
	s := o.offsets[:n]
	slices.Sort(s)
	// Compact zeroes the tail it drops, keeping == meaningful.
	o.n = len(slices.Compact(s))
	return o, nil
}

// Len returns the number of offsets in the set.
func (o *Offsets) Len() int {
	return o.n
}

// At returns the offset at position i. It panics if i is out of range.
func (o *Offsets) At(i int) uint32 {
	return o.offsets[:o.n][i]
}

// Slice returns a copy of the offsets in ascending order.
func (o *Offsets) Slice() []uint32 {
	return slices.Clone(o.offsets[:o.n])
}

// View returns a read-only view of the set. The view shares storage with o
// and reflects later changes only up to its original length.
func (o *Offsets) View() OffsetsView {
	return OffsetsView{s: o.offsets[:o.n:o.n]}
}

// Index returns the position of offset in the set.
func (o *Offsets) Index(offset uint32) (int, bool) {
	return slices.BinarySearch(o.offsets[:o.n], offset)
}

// Contains reports whether offset is in the set.
func (o *Offsets) Contains(offset uint32) bool {
	_, ok := o.Index(offset)
	return ok
}

// Insert adds offset to the set.
func (o *Offsets) Insert(offset uint32) error {
	i, found := o.Index(offset)
	if found {
		return fmt.Errorf("insert %d: %w", offset, ErrAlreadyExists)
	}
	if o.n == MaxLines {
		return fmt.Errorf("insert %d: set holds %d offsets: %w", offset, MaxLines, ErrCapacityExceeded)
	}
	copy(o.offsets[i+1:o.n+1], o.offsets[i:o.n])
	o.offsets[i] = offset
	o.n++
	return nil
}

// Remove deletes offset from the set.
func (o *Offsets) Remove(offset uint32) error {
	i, found := o.Index(offset)
	if !found {
		return fmt.Errorf("remove %d: %w", offset, ErrNotFound)
	}
	copy(o.offsets[i:o.n-1], o.offsets[i+1:o.n])
	o.n--
	o.offsets[o.n] = 0
	return nil
}

// Join merges other into o. If the union holds more than MaxLines offsets
// it fails with ErrCapacityExceeded and o is left unchanged.
func (o *Offsets) Join(other OffsetsView) error {
	var out [MaxLines]uint32
	a, b := o.offsets[:o.n], other.s
	n := 0
	for len(a) > 0 && len(b) > 0 {
		if n == MaxLines {
			return fmt.Errorf("join: %w", ErrCapacityExceeded)
		}
		switch {
		case a[0] == b[0]:
			out[n] = a[0]
			a, b = a[1:], b[1:]
		case a[0] < b[0]:
			out[n] = a[0]
			a = a[1:]
		default:
			out[n] = b[0]
			b = b[1:]
		}
		n++
	}
	rest := a
	if len(b) > 0 {
		rest = b
	}
	if n+len(rest) > MaxLines {
		return fmt.Errorf("join: %w", ErrCapacityExceeded)
	}
	n += copy(out[n:], rest)
	o.offsets = out
	o.n = n
	return nil
}

// Extend adds offsets to the set with the same all or nothing semantics
// as Join.
func (o *Offsets) Extend(offsets ...uint32) error {
	add, err := NewOffsets(offsets...)
	if err != nil {
		return err
	}
	return o.Join(add.View())
}

// All iterates over the set in ascending order, yielding the position and
// the offset.
func (o *Offsets) All() iter.Seq2[int, uint32] {
	return o.View().All()
}

func (o Offsets) String() string {
	return fmt.Sprint(o.offsets[:o.n])
}

// OffsetsView is a borrowed, read-only view of an Offsets.
type OffsetsView struct {
	s []uint32
}

// Len returns the number of offsets in the view.
func (v OffsetsView) Len() int {
	return len(v.s)
}

// At returns the offset at position i. It panics if i is out of range.
func (v OffsetsView) At(i int) uint32 {
	return v.s[i]
}

// Index returns the position of offset in the view.
func (v OffsetsView) Index(offset uint32) (int, bool) {
	return slices.BinarySearch(v.s, offset)
}

// Contains reports whether offset is in the view.
func (v OffsetsView) Contains(offset uint32) bool {
	_, ok := v.Index(offset)
	return ok
}

// Slice returns a copy of the offsets in ascending order.
func (v OffsetsView) Slice() []uint32 {
	return slices.Clone(v.s)
}

// Owned returns an independent copy of the viewed set.
func (v OffsetsView) Owned() Offsets {
	var o Offsets
	o.n = copy(o.offsets[:], v.s)
	return o
}

// All iterates over the view in ascending order, yielding the position and
// the offset.
func (v OffsetsView) All() iter.Seq2[int, uint32] {
	return func(yield func(int, uint32) bool) {
		for i, offset := range v.s {
			if !yield(i, offset) {
				return
			}
		}
	}
}

func (v OffsetsView) String() string {
	return fmt.Sprint(v.s)
}

// mask returns the MaskedBits mask covering every line of the view.
func (v OffsetsView) mask() uint64 {
	return lowBits(len(v.s))
}

func lowBits(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(n) - 1
}

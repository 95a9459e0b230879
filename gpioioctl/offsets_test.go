package gpioioctl

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func rangeOffsets(t *testing.T, start, end uint32) Offsets {
	t.Helper()
	var o Offsets
	for offset := start; offset < end; offset++ {
		if err := o.Insert(offset); err != nil {
			t.Fatalf("Insert(%d): %v", offset, err)
		}
	}
	return o
}

func TestNewOffsets(t *testing.T) {
	tests := []struct {
		in   []uint32
		want []uint32
	}{
		{nil, nil},
		{[]uint32{7, 2, 5}, []uint32{2, 5, 7}},
		{[]uint32{3, 3, 1, 3}, []uint32{1, 3}},
		{[]uint32{0xffffffff, 0}, []uint32{0, 0xffffffff}},
	}
	for _, test := range tests {
		o, err := NewOffsets(test.in...)
		if err != nil {
			t.Errorf("NewOffsets(%v): %v", test.in, err)
			continue
		}
		if diff := cmp.Diff(test.want, o.Slice(), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("NewOffsets(%v) mismatch (-want +got):\n%s", test.in, diff)
		}
		if o.Len() != len(test.want) {
			t.Errorf("NewOffsets(%v).Len()=%d, expected %d", test.in, o.Len(), len(test.want))
		}
	}
}

func TestNewOffsetsCapacity(t *testing.T) {
	in := make([]uint32, MaxLines+1)
	for i := range in {
		in[i] = uint32(i)
	}
	if _, err := NewOffsets(in...); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("NewOffsets(65 values) returned %v", err)
	}
	// The limit applies to the input, duplicates included.
	dups := make([]uint32, MaxLines+1)
	if _, err := NewOffsets(dups...); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("NewOffsets(65 duplicates) returned %v", err)
	}
	if o, err := NewOffsets(in[:MaxLines]...); err != nil || o.Len() != MaxLines {
		t.Errorf("NewOffsets(64 values)=%d, %v", o.Len(), err)
	}
}

func TestOffsetsFromSeqStopsPulling(t *testing.T) {
	pulled := 0
	endless := func(yield func(uint32) bool) {
		for i := uint32(0); ; i++ {
			pulled++
			if !yield(i) {
				return
			}
		}
	}
	if _, err := OffsetsFromSeq(endless); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("OffsetsFromSeq() returned %v", err)
	}
	if pulled != MaxLines+1 {
		t.Errorf("pulled %d values, expected %d", pulled, MaxLines+1)
	}
}

func TestOffsetsInsertRemove(t *testing.T) {
	o, _ := NewOffsets(1, 3)
	before := o
	if err := o.Insert(2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{1, 2, 3}, o.Slice()); diff != "" {
		t.Errorf("Insert(2) mismatch (-want +got):\n%s", diff)
	}
	if err := o.Insert(2); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Insert(2) returned %v", err)
	}
	if err := o.Remove(2); err != nil {
		t.Fatal(err)
	}
	if o != before {
		t.Errorf("Insert then Remove changed the set: %v != %v", o.Slice(), before.Slice())
	}
	if err := o.Remove(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove() of a missing offset returned %v", err)
	}
	if err := o.Remove(1); err != nil {
		t.Fatal(err)
	}
	if err := o.Remove(3); err != nil {
		t.Fatal(err)
	}
	if o != (Offsets{}) {
		t.Errorf("emptied set is not the zero value: %v", o.Slice())
	}
}

func TestOffsetsInsertFull(t *testing.T) {
	o := rangeOffsets(t, 0, MaxLines)
	if err := o.Insert(MaxLines); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Insert() into a full set returned %v", err)
	}
	if err := o.Insert(3); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Insert() of a member into a full set returned %v", err)
	}
}

func TestOffsetsJoin(t *testing.T) {
	tests := []struct {
		a, b []uint32
		want []uint32
	}{
		{[]uint32{1, 2, 3}, []uint32{3, 4}, []uint32{1, 2, 3, 4}},
		{nil, []uint32{9}, []uint32{9}},
		{[]uint32{9}, nil, []uint32{9}},
		{[]uint32{0, 10, 20}, []uint32{5, 15, 25}, []uint32{0, 5, 10, 15, 20, 25}},
	}
	for _, test := range tests {
		a, _ := NewOffsets(test.a...)
		b, _ := NewOffsets(test.b...)
		if err := a.Join(b.View()); err != nil {
			t.Errorf("%v.Join(%v): %v", test.a, test.b, err)
			continue
		}
		if diff := cmp.Diff(test.want, a.Slice()); diff != "" {
			t.Errorf("%v.Join(%v) mismatch (-want +got):\n%s", test.a, test.b, diff)
		}
	}
}

func TestOffsetsJoinOverflow(t *testing.T) {
	full := rangeOffsets(t, 0, MaxLines)
	before := full
	extra, _ := NewOffsets(MaxLines)
	if err := full.Join(extra.View()); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Join() returned %v", err)
	}
	if full != before {
		t.Error("failed Join() modified the set")
	}

	// Overlapping sets that fit are fine.
	half := rangeOffsets(t, 32, 64)
	if err := full.Join(half.View()); err != nil {
		t.Errorf("Join() of a subset returned %v", err)
	}

	a := rangeOffsets(t, 0, 40)
	b := rangeOffsets(t, 30, 70)
	beforeA := a
	if err := a.Join(b.View()); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Join() of 70 offsets returned %v", err)
	}
	if a != beforeA {
		t.Error("failed Join() modified the set")
	}
}

func TestOffsetsExtend(t *testing.T) {
	o, _ := NewOffsets(4)
	if err := o.Extend(8, 0, 4); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{0, 4, 8}, o.Slice()); diff != "" {
		t.Errorf("Extend() mismatch (-want +got):\n%s", diff)
	}
}

func TestOffsetsString(t *testing.T) {
	o, _ := NewOffsets(7, 2, 5)
	if s := o.String(); s != "[2 5 7]" {
		t.Errorf("String()=%q", s)
	}
	if s := fmt.Sprint(o); s != "[2 5 7]" {
		t.Errorf("fmt.Sprint()=%q", s)
	}
}

func TestOffsetsView(t *testing.T) {
	o, _ := NewOffsets(2, 5, 7)
	v := o.View()
	if v.Len() != 3 || v.At(1) != 5 {
		t.Errorf("view %v has unexpected content", v)
	}
	if i, ok := v.Index(7); !ok || i != 2 {
		t.Errorf("Index(7)=%d, %t", i, ok)
	}
	if v.Contains(6) {
		t.Error("Contains(6) is true")
	}
	if owned := v.Owned(); owned != o {
		t.Errorf("Owned()=%v, expected %v", owned.Slice(), o.Slice())
	}
	var positions []int
	var offsets []uint32
	for i, offset := range v.All() {
		positions = append(positions, i)
		offsets = append(offsets, offset)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, positions); diff != "" {
		t.Errorf("All() positions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{2, 5, 7}, offsets); diff != "" {
		t.Errorf("All() offsets mismatch (-want +got):\n%s", diff)
	}
	if s := v.String(); s != "[2 5 7]" {
		t.Errorf("String()=%q", s)
	}
	if m := v.mask(); m != 0b111 {
		t.Errorf("mask()=%#b", m)
	}
}

func TestLowBits(t *testing.T) {
	tests := []struct {
		n    int
		want uint64
	}{
		{0, 0},
		{1, 1},
		{3, 0b111},
		{63, 1<<63 - 1},
		{64, ^uint64(0)},
	}
	for _, test := range tests {
		if got := lowBits(test.n); got != test.want {
			t.Errorf("lowBits(%d)=%#x, expected %#x", test.n, got, test.want)
		}
	}
}

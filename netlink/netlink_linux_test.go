// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package netlink

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMonitor(t *testing.T) *Monitor {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("uevent socket unavailable: %v", err)
	}
	return m
}

func TestMonitorContext(t *testing.T) {
	m := newTestMonitor(t)
	defer m.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	tStart := time.Now()
	for {
		// Real uevents may arrive while the test runs.
		if _, err := m.Next(ctx); err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("Next() returned %v", err)
			}
			break
		}
	}
	if d := time.Since(tStart); d > 2*time.Second {
		t.Errorf("Next() took %s to notice the deadline", d)
	}
}

func TestMonitorClose(t *testing.T) {
	m := newTestMonitor(t)
	done := make(chan error, 1)
	go func() {
		for {
			if _, err := m.Next(context.Background()); err != nil {
				done <- err
				return
			}
		}
	}()
	time.Sleep(50 * time.Millisecond)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Next() returned %v after Close()", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() still blocked after Close()")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() returned %v", err)
	}
}

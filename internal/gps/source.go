// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Source is anything that can report the latest position fix.
// Implementations: NMEA serial receiver, gpsd, mock.
type Source interface {
	Name() string
	// Connect acquires the underlying device or service. A failed Connect
	// is not fatal: Poll keeps retrying on its own.
	Connect(ctx context.Context) error
	// Poll returns the newest fix, or NoFix when none is available. It never
	// returns errors and never blocks longer than the configured timeout.
	Poll(ctx context.Context) Fix
	Close() error
}

// Options selects and configures a Source.
type Options struct {
	Kind       string // "nmea", "gpsd" or "mock"
	Device     string // serial device path or "auto"
	Baud       int
	GPSDAddr   string
	Timeout    time.Duration
	MockCenter Coordinate
}

const defaultPollTimeout = 500 * time.Millisecond

// NewSource builds the Source described by opts.
func NewSource(opts Options) (Source, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPollTimeout
	}
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "nmea":
		return NewNMEA(NMEAConfig{Device: opts.Device, Baud: opts.Baud, Timeout: opts.Timeout}), nil
	case "gpsd":
		return NewGPSD(GPSDConfig{Addr: opts.GPSDAddr, Timeout: opts.Timeout}), nil
	case "mock":
		return NewMockSource(opts.MockCenter), nil
	default:
		return nil, fmt.Errorf("unknown GPS source %q", opts.Kind)
	}
}

// latestFix holds at most one unconsumed fix. A newer fix replaces an older
// one, so Poll never sees a historical buffer. Single writer only.
type latestFix struct {
	ch chan Fix
}

func newLatestFix() *latestFix {
	return &latestFix{ch: make(chan Fix, 1)}
}

func (l *latestFix) put(f Fix) {
	select {
	case <-l.ch:
	default:
	}
	select {
	case l.ch <- f:
	default:
	}
}

func (l *latestFix) take(ctx context.Context, timeout time.Duration) Fix {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-l.ch:
		return f
	case <-t.C:
		return NoFix
	case <-ctx.Done():
		return NoFix
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	mockSourceName = "mock"
	walkSpeedMS    = 1.4
	walkLengthM    = 300.0
	metersPerDeg   = 111_195.0
)

// MockSource walks back and forth along a 300 m east-west line starting at
// the configured centre, at walking pace.
type MockSource struct {
	center Coordinate
	start  time.Time
	now    func() time.Time

	mu sync.Mutex
	// DropEvery makes every n-th poll return NoFix; 0 disables it.
	DropEvery int
	polls     int
}

// NewMockSource creates a mock source centred on center.
func NewMockSource(center Coordinate) *MockSource {
	return &MockSource{center: center, start: time.Now(), now: time.Now}
}

func (m *MockSource) Name() string { return mockSourceName }

func (m *MockSource) Connect(context.Context) error { return nil }

func (m *MockSource) Poll(ctx context.Context) Fix {
	if ctx.Err() != nil {
		return NoFix
	}
	m.mu.Lock()
	m.polls++
	drop := m.DropEvery > 0 && m.polls%m.DropEvery == 0
	m.mu.Unlock()
	if drop {
		return NoFix
	}

	now := m.now()
	elapsed := now.Sub(m.start).Seconds()

	// triangle wave: out to walkLengthM and back
	d := math.Mod(elapsed*walkSpeedMS, 2*walkLengthM)
	if d > walkLengthM {
		d = 2*walkLengthM - d
	}
	lonScale := metersPerDeg * math.Cos(m.center.Latitude*math.Pi/180)
	if lonScale < 1 {
		lonScale = 1
	}

	pos := Coordinate{
		Latitude:  m.center.Latitude + 3*math.Sin(elapsed/10)/metersPerDeg,
		Longitude: m.center.Longitude + d/lonScale,
	}
	return Fix{
		Position: pos,
		Time:     now,
		Valid:    pos.Validate() == nil,
		Mode:     3,
		Source:   mockSourceName,
	}
}

func (m *MockSource) Close() error { return nil }

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCoordinate is returned for latitudes outside -90..90 or
// longitudes outside -180..180. Coordinates are never clamped.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate reports whether c lies inside the valid lat/lon ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Fix is one position sample produced by a Source. A Fix is never mutated
// after it is returned; the next poll produces a new one.
type Fix struct {
	Position Coordinate `json:"position"`
	Time     time.Time  `json:"time"`
	Valid    bool       `json:"valid"`
	Mode     int        `json:"mode,omitempty"` // 2 = 2D, 3 = 3D
	Source   string     `json:"source,omitempty"`
}

// NoFix is returned by a Source when no usable position is available.
var NoFix = Fix{}

// Usable reports whether the fix may be used to place tee, pin or drive
// markers. A fix with an out-of-range position is never usable.
func (f Fix) Usable() bool {
	return f.Valid && f.Position.Validate() == nil
}

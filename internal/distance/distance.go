// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package distance computes great-circle distances between coordinates.
package distance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

// EarthRadiusM is the mean Earth radius used by the haversine formula.
const EarthRadiusM = 6371.0 * 1000

// YardsPerMeter converts meters to yards.
const YardsPerMeter = 1.09361

// Unit selects the output unit of Between.
type Unit int

const (
	Meters Unit = iota
	Yards
)

func (u Unit) String() string {
	switch u {
	case Meters:
		return "m"
	case Yards:
		return "yd"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// ParseUnit accepts "m", "meters", "yd", "yards" (any case).
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "meter", "meters", "metres":
		return Meters, nil
	case "yd", "yds", "yard", "yards":
		return Yards, nil
	default:
		return Meters, fmt.Errorf("unknown distance unit %q", s)
	}
}

// Between returns the great-circle distance from a to b in unit.
// Both coordinates must be valid; out-of-range input is an error, never
// clamped. Between(a, a) is exactly 0.
func Between(a, b gps.Coordinate, unit Unit) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	m := haversine(a, b)
	switch unit {
	case Meters:
		return m, nil
	case Yards:
		return m * YardsPerMeter, nil
	default:
		return 0, fmt.Errorf("unknown distance unit %s", unit)
	}
}

func haversine(a, b gps.Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can leave h just outside [0, 1] for near-antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// Bearing returns the initial great-circle bearing from a to b in degrees
// clockwise from true north, in [0, 360).
func Bearing(a, b gps.Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360), nil
}

// Format renders a distance with two decimals, e.g. "243.17".
func Format(d float64) string {
	return strconv.FormatFloat(d, 'f', 2, 64)
}

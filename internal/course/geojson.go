// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package course

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

func point(c gps.Coordinate) orb.Point {
	// GeoJSON is lon, lat
	return orb.Point{c.Longitude, c.Latitude}
}

// GeoJSON returns the tee and pins of c as point features. Each feature
// carries "course" and "kind" ("tee" or "pin"); pins also carry "hole".
func (c Course) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if c.Tee != nil {
		f := geojson.NewFeature(point(*c.Tee))
		f.Properties["course"] = c.Name
		f.Properties["kind"] = "tee"
		fc.Append(f)
	}
	for _, h := range c.PinHoles() {
		f := geojson.NewFeature(point(c.Pins[h]))
		f.Properties["course"] = c.Name
		f.Properties["kind"] = "pin"
		f.Properties["hole"] = h
		fc.Append(f)
	}
	return fc
}

// Bound returns the bounding box of every recorded location. ok is false
// when the course has neither tee nor pins.
func (c Course) Bound() (b orb.Bound, ok bool) {
	var pts orb.MultiPoint
	if c.Tee != nil {
		pts = append(pts, point(*c.Tee))
	}
	for _, h := range c.PinHoles() {
		pts = append(pts, point(c.Pins[h]))
	}
	if len(pts) == 0 {
		return orb.Bound{}, false
	}
	return pts.Bound(), true
}

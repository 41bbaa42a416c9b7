// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package course

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

// LegacyHole is one row of an older holes(id, name, lat, lon) database.
type LegacyHole struct {
	ID       int
	Name     string
	Position gps.Coordinate
}

// ReadLegacyHoles reads every row of the holes table in id order.
func ReadLegacyHoles(ctx context.Context, path string) ([]LegacyHole, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("legacy db: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open legacy db: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, name, lat, lon FROM holes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query holes: %w", err)
	}
	defer rows.Close()

	var out []LegacyHole
	for rows.Next() {
		var h LegacyHole
		var name sql.NullString
		if err := rows.Scan(&h.ID, &name, &h.Position.Latitude, &h.Position.Longitude); err != nil {
			return nil, fmt.Errorf("scan hole: %w", err)
		}
		h.Name = name.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// ImportLegacyHoles copies the holes of a legacy database into course name
// as pins, hole number taken from the row id. Rows outside 1..18 or with
// bad coordinates are skipped. It returns the number of pins imported.
func ImportLegacyHoles(ctx context.Context, s *Store, path, name string) (int, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	holes, err := ReadLegacyHoles(ctx, path)
	if err != nil {
		return 0, err
	}

	c, err := s.Load(name)
	if err != nil {
		c = Course{Name: name, Pins: make(map[int]gps.Coordinate)}
	}
	imported := 0
	for _, h := range holes {
		if checkHole(h.ID) != nil {
			log.Printf("course: legacy hole %d (%s) skipped: out of range", h.ID, h.Name)
			continue
		}
		if err := h.Position.Validate(); err != nil {
			log.Printf("course: legacy hole %d (%s) skipped: %v", h.ID, h.Name, err)
			continue
		}
		c.Pins[h.ID] = h.Position
		imported++
	}
	if imported == 0 {
		return 0, nil
	}
	if err := s.Save(name, c); err != nil {
		return imported, err
	}
	log.Printf("course: imported %d pin(s) from %s into %q", imported, path, name)
	return imported, nil
}

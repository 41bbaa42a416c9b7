// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package round

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRoundNotFound is returned by Archive.Load for an unknown id.
var ErrRoundNotFound = errors.New("round not found")

// Archive persists finished or paused rounds in SQLite.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// Summary describes one archived round.
type Summary struct {
	ID      int64     `json:"id"`
	Label   string    `json:"label"`
	SavedAt time.Time `json:"saved_at"`
	Players []string  `json:"players"`
}

// OpenArchive opens (creating if needed) the round archive at path.
func OpenArchive(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Archive{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			page INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS round_players (
			round_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (round_id, position),
			FOREIGN KEY (round_id) REFERENCES rounds(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			round_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			hole_number INTEGER NOT NULL,
			strokes INTEGER NOT NULL,
			PRIMARY KEY (round_id, position, hole_number),
			FOREIGN KEY (round_id) REFERENCES rounds(id) ON DELETE CASCADE
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// Close closes the database handle.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Save stores a snapshot of r under label and returns its id. Holes with a
// score of 0 are not written; they load back as 0.
func (a *Archive) Save(ctx context.Context, label string, r *Round) (int64, error) {
	snap := r.Snapshot()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "INSERT INTO rounds (label, saved_at, page) VALUES (?, ?, ?)",
		strings.TrimSpace(label), a.now().UTC().UnixMilli(), int(snap.Page))
	if err != nil {
		return 0, fmt.Errorf("insert round: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("round id: %w", err)
	}

	for pos, card := range snap.Players {
		if _, err := tx.ExecContext(ctx, "INSERT INTO round_players (round_id, position, name) VALUES (?, ?, ?)",
			id, pos, card.Name); err != nil {
			return 0, fmt.Errorf("insert player %q: %w", card.Name, err)
		}
		for i, strokes := range card.Scores {
			if strokes == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO scores (round_id, position, hole_number, strokes) VALUES (?, ?, ?, ?)",
				id, pos, i+1, strokes); err != nil {
				return 0, fmt.Errorf("insert score: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Load rebuilds the round stored under id.
func (a *Archive) Load(ctx context.Context, id int64) (*Round, error) {
	var page int
	err := a.db.QueryRowContext(ctx, "SELECT page FROM rounds WHERE id = ?", id).Scan(&page)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load round %d: %w", id, err)
	}

	snap := Snapshot{Page: Page(page)}
	rows, err := a.db.QueryContext(ctx, "SELECT name FROM round_players WHERE round_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Players = append(snap.Players, Card{Name: name})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = a.db.QueryContext(ctx, "SELECT position, hole_number, strokes FROM scores WHERE round_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pos, hole, strokes int
		if err := rows.Scan(&pos, &hole, &strokes); err != nil {
			return nil, err
		}
		if pos < 0 || pos >= len(snap.Players) || hole < 1 || hole > Holes {
			return nil, fmt.Errorf("round %d: corrupt score row (player %d, hole %d)", id, pos, hole)
		}
		snap.Players[pos].Scores[hole-1] = strokes
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return FromSnapshot(snap)
}

// List returns archived rounds, newest first.
func (a *Archive) List(ctx context.Context) ([]Summary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT r.id, r.label, r.saved_at, p.name
		FROM rounds r
		LEFT JOIN round_players p ON p.round_id = r.id
		ORDER BY r.saved_at DESC, r.id DESC, p.position`)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			id      int64
			label   string
			savedAt int64
			name    sql.NullString
		)
		if err := rows.Scan(&id, &label, &savedAt, &name); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, Summary{ID: id, Label: label, SavedAt: time.UnixMilli(savedAt).UTC()})
		}
		if name.Valid {
			last := &out[len(out)-1]
			last.Players = append(last.Players, name.String)
		}
	}
	return out, rows.Err()
}

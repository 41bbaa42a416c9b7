package course

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func writeLegacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golf_holes.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	stmts := []string{
		`CREATE TABLE holes (id INTEGER PRIMARY KEY, name TEXT, lat REAL, lon REAL)`,
		`INSERT INTO holes VALUES (1, 'First', 40.0, -74.0)`,
		`INSERT INTO holes VALUES (2, 'Second', 40.001, -74.001)`,
		`INSERT INTO holes VALUES (25, 'Practice', 40.002, -74.002)`,
		`INSERT INTO holes VALUES (3, 'Broken', 95.0, 0.0)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return path
}

func TestReadLegacyHoles(t *testing.T) {
	holes, err := ReadLegacyHoles(context.Background(), writeLegacyDB(t))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(holes) != 4 || holes[0].Name != "First" || holes[3].ID != 25 {
		t.Fatalf("holes = %+v", holes)
	}
}

func TestImportLegacyHoles(t *testing.T) {
	s, _ := openStore(t, "courses.json")
	_ = s.SetPin("Home", 9, coord(1, 1))

	n, err := ImportLegacyHoles(context.Background(), s, writeLegacyDB(t), "Home")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}
	c, _ := s.Load("Home")
	if len(c.Pins) != 3 || c.Pins[2] != coord(40.001, -74.001) {
		t.Fatalf("pins = %+v", c.Pins)
	}
}

func TestReadLegacyHoles_MissingFile(t *testing.T) {
	if _, err := ReadLegacyHoles(context.Background(), filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Fatalf("expected error for missing db")
	}
}

package round

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchive_SaveLoad(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	r, _ := New("Ann", "Bob")
	_ = r.SetScore("Ann", 1, 4)
	_ = r.SetScore("Ann", 18, 6)
	_ = r.SetScore("Bob", 9, 10)
	r.SwitchPage()

	id, err := a.Save(ctx, "Sunday medal", r)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := a.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := r.Snapshot()
	have := got.Snapshot()
	if len(have.Players) != len(want.Players) || have.Page != want.Page {
		t.Fatalf("round mismatch: %+v vs %+v", have, want)
	}
	for i := range want.Players {
		if have.Players[i] != want.Players[i] {
			t.Fatalf("player %d: %+v vs %+v", i, have.Players[i], want.Players[i])
		}
	}
}

func TestArchive_LoadMissing(t *testing.T) {
	a := openTestArchive(t)
	if _, err := a.Load(context.Background(), 99); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}

func TestArchive_ListNewestFirst(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	a.now = func() time.Time { return base }
	r1, _ := New("Ann")
	id1, _ := a.Save(ctx, "first", r1)

	a.now = func() time.Time { return base.Add(time.Hour) }
	r2, _ := New("Bob", "Cid")
	id2, _ := a.Save(ctx, "second", r2)

	list, err := a.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len=%d", len(list))
	}
	if list[0].ID != id2 || list[1].ID != id1 {
		t.Fatalf("order: %+v", list)
	}
	if len(list[0].Players) != 2 || list[0].Players[0] != "Bob" {
		t.Fatalf("players: %+v", list[0].Players)
	}
	if !list[1].SavedAt.Equal(base) {
		t.Fatalf("saved_at=%v", list[1].SavedAt)
	}
}

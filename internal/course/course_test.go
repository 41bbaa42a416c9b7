package course

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

func openStore(t *testing.T, name string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, path
}

func coord(lat, lon float64) gps.Coordinate {
	return gps.Coordinate{Latitude: lat, Longitude: lon}
}

func sample(name string) Course {
	tee := coord(51.5000, -0.1000)
	return Course{
		Name: name,
		Tee:  &tee,
		Pins: map[int]gps.Coordinate{
			1:  coord(51.5010, -0.1010),
			10: coord(51.5020, -0.1020),
			18: coord(51.5030, -0.1030),
		},
	}
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, path := openStore(t, "courses.json")
	if names := s.ListNames(); len(names) != 0 {
		t.Fatalf("expected empty catalogue, got %v", names)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("open must not create the file, stat err=%v", err)
	}
}

func TestSaveLoad_RoundTripAcrossReopen(t *testing.T) {
	for _, ext := range []string{"json", "yaml", "yml"} {
		t.Run(ext, func(t *testing.T) {
			s, path := openStore(t, "courses."+ext)
			want := sample("Pebble")
			if err := s.Save("Pebble", want); err != nil {
				t.Fatalf("save: %v", err)
			}
			noTee := Course{Pins: map[int]gps.Coordinate{3: coord(1, 2)}}
			if err := s.Save("Links", noTee); err != nil {
				t.Fatalf("save: %v", err)
			}

			re, err := Open(path)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			got, err := re.Load("Pebble")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !got.Equal(want) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}
			links, err := re.Load("Links")
			if err != nil {
				t.Fatalf("load links: %v", err)
			}
			if links.Tee != nil || len(links.Pins) != 1 {
				t.Fatalf("unexpected links record: %+v", links)
			}
			if names := re.ListNames(); !reflect.DeepEqual(names, []string{"Pebble", "Links"}) {
				t.Fatalf("names = %v", names)
			}
		})
	}
}

func TestSave_EmptyName(t *testing.T) {
	s, path := openStore(t, "courses.json")
	for _, name := range []string{"", "   "} {
		if err := s.Save(name, sample("x")); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("Save(%q): expected ErrEmptyName, got %v", name, err)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("nothing should have been written")
	}
}

func TestSave_ReplacesWholeRecord(t *testing.T) {
	s, _ := openStore(t, "courses.json")
	_ = s.Save("A", sample("A"))
	if err := s.Save("A", Course{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.Load("A")
	if got.Tee != nil || len(got.Pins) != 0 {
		t.Fatalf("expected empty record after replace, got %+v", got)
	}
	if n := s.ListNames(); len(n) != 1 {
		t.Fatalf("replace must not duplicate the name: %v", n)
	}
}

func TestLoad_NotFound(t *testing.T) {
	s, _ := openStore(t, "courses.json")
	if _, err := s.Load("Nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_ReturnsCopy(t *testing.T) {
	s, _ := openStore(t, "courses.json")
	_ = s.Save("A", sample("A"))
	c, _ := s.Load("A")
	c.Pins[2] = coord(0, 0)
	c.Tee.Latitude = 10

	again, _ := s.Load("A")
	if _, ok := again.Pins[2]; ok || again.Tee.Latitude == 10 {
		t.Fatalf("caller mutated the stored record: %+v", again)
	}
}

func TestSetPin_HoleRange(t *testing.T) {
	s, _ := openStore(t, "courses.json")
	for _, hole := range []int{0, 19, -1} {
		if err := s.SetPin("A", hole, coord(1, 1)); !errors.Is(err, ErrHoleOutOfRange) {
			t.Fatalf("SetPin hole %d: expected ErrHoleOutOfRange, got %v", hole, err)
		}
	}
	if len(s.ListNames()) != 0 {
		t.Fatalf("rejected pins must not create a course")
	}
	for hole := 1; hole <= Holes; hole++ {
		if err := s.SetPin("A", hole, coord(float64(hole), 1)); err != nil {
			t.Fatalf("SetPin hole %d: %v", hole, err)
		}
	}
	c, _ := s.Load("A")
	if len(c.Pins) != Holes {
		t.Fatalf("expected %d pins, got %d", Holes, len(c.Pins))
	}
}

func TestSetPin_CreatesCourseAndKeepsOthers(t *testing.T) {
	s, path := openStore(t, "courses.json")
	if err := s.SetPin("New", 7, coord(10, 20)); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := s.SetTee("New", coord(10.5, 20.5)); err != nil {
		t.Fatalf("set tee: %v", err)
	}
	if err := s.SetPin("New", 7, coord(11, 21)); err != nil {
		t.Fatalf("overwrite pin: %v", err)
	}

	re, _ := Open(path)
	c, err := re.Load("New")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Tee == nil || *c.Tee != coord(10.5, 20.5) {
		t.Fatalf("tee lost: %+v", c.Tee)
	}
	if c.Pins[7] != coord(11, 21) || len(c.Pins) != 1 {
		t.Fatalf("pins = %+v", c.Pins)
	}
}

func TestSetPin_InvalidCoordinate(t *testing.T) {
	s, _ := openStore(t, "courses.json")
	if err := s.SetPin("A", 1, coord(91, 0)); !errors.Is(err, gps.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s, path := openStore(t, "courses.json")
	_ = s.Save("A", sample("A"))
	_ = s.Save("B", sample("B"))
	if err := s.Delete("A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("A"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	re, _ := Open(path)
	if n := re.ListNames(); !reflect.DeepEqual(n, []string{"B"}) {
		t.Fatalf("names after delete = %v", n)
	}
}

func TestOpen_CorruptFileStartsEmptyAndKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courses.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open corrupt: %v", err)
	}
	if len(s.ListNames()) != 0 {
		t.Fatalf("expected empty catalogue")
	}
	if err := s.SetPin("A", 1, coord(1, 1)); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(bak) != "{not json" {
		t.Fatalf("backup content = %q", bak)
	}
}

func TestOpen_DropsBadPinKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	raw := `{
  "A": {
    "tee_location": [1, 2],
    "pins": {"0": [1, 1], "5": [5, 5], "19": [1, 1], "x": [1, 1], "6": [1]}
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := Open(path)
	c, err := s.Load("A")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Pins) != 1 || c.Pins[5] != coord(5, 5) {
		t.Fatalf("pins = %+v", c.Pins)
	}
	if c.Tee == nil || *c.Tee != coord(1, 2) {
		t.Fatalf("tee = %+v", c.Tee)
	}
}

func TestJSONEncode_NullTeeAndOrderedPins(t *testing.T) {
	s, path := openStore(t, "courses.json")
	_ = s.SetPin("Z", 10, coord(1, 1))
	_ = s.SetPin("Z", 2, coord(2, 2))
	_ = s.SetPin("A", 1, coord(3, 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, `"tee_location": null`) {
		t.Fatalf("expected null tee:\n%s", text)
	}
	if strings.Index(text, `"2"`) > strings.Index(text, `"10"`) {
		t.Fatalf("pins not in hole order:\n%s", text)
	}
	if strings.Index(text, `"Z"`) > strings.Index(text, `"A"`) {
		t.Fatalf("courses not in save order:\n%s", text)
	}
}

func TestYAMLEncode_NullTee(t *testing.T) {
	s, path := openStore(t, "courses.yaml")
	_ = s.SetPin("A", 1, coord(3, 3))
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "tee_location: null") {
		t.Fatalf("expected null tee:\n%s", data)
	}
	re, _ := Open(path)
	c, err := re.Load("A")
	if err != nil || c.Tee != nil || c.Pins[1] != coord(3, 3) {
		t.Fatalf("reload = %+v, %v", c, err)
	}
}

func TestSave_WriteFailureKeepsMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "courses.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetPin("A", 1, coord(1, 1)); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	c, err := s.Load("A")
	if err != nil || c.Pins[1] != coord(1, 1) {
		t.Fatalf("in-memory catalogue lost the update: %+v, %v", c, err)
	}
}

func TestGeoJSON(t *testing.T) {
	fc := sample("Pebble").GeoJSON()
	if len(fc.Features) != 4 {
		t.Fatalf("expected 4 features, got %d", len(fc.Features))
	}
	tee := fc.Features[0]
	if tee.Properties["kind"] != "tee" {
		t.Fatalf("first feature should be the tee: %+v", tee.Properties)
	}
	last := fc.Features[3]
	if last.Properties["hole"] != 18 {
		t.Fatalf("last feature should be hole 18: %+v", last.Properties)
	}

	b, ok := sample("Pebble").Bound()
	if !ok {
		t.Fatalf("expected a bound")
	}
	if b.Min.Lat() != 51.5 || b.Max.Lat() != 51.503 {
		t.Fatalf("bound = %+v", b)
	}
	if _, ok := (Course{}).Bound(); ok {
		t.Fatalf("empty course has no bound")
	}
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/golf_rangefinder/internal/course"
	"github.com/relabs-tech/golf_rangefinder/internal/gps"
	"github.com/relabs-tech/golf_rangefinder/internal/round"
	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

// fixedSource always reports the same fix.
type fixedSource struct {
	mu  sync.Mutex
	fix gps.Fix
}

func (f *fixedSource) Name() string                  { return "fixed" }
func (f *fixedSource) Connect(context.Context) error { return nil }
func (f *fixedSource) Close() error                  { return nil }

func (f *fixedSource) Poll(context.Context) gps.Fix {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fix
}

type testEnv struct {
	web     *WebServer
	coord   *session.Coordinator
	courses *course.Store
	round   *round.Round
}

func newTestEnv(t *testing.T, fix gps.Fix, archive *round.Archive) *testEnv {
	t.Helper()
	store, err := course.Open(filepath.Join(t.TempDir(), "courses.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	r, err := round.New("Ann", "Bob")
	if err != nil {
		t.Fatalf("new round: %v", err)
	}
	coord := session.New(&fixedSource{fix: fix}, store, session.Options{Interval: 5 * time.Millisecond})
	web := NewWebServer(coord, store, r, archive)

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = coord.Stop() })

	if fix.Usable() {
		deadline := time.Now().Add(2 * time.Second)
		for {
			if _, ok := coord.CurrentFix(); ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("coordinator never published a fix")
			}
			time.Sleep(2 * time.Millisecond)
		}
	}
	return &testEnv{web: web, coord: coord, courses: store, round: r}
}

func validFix(lat, lon float64) gps.Fix {
	return gps.Fix{Position: gps.Coordinate{Latitude: lat, Longitude: lon}, Valid: true, Mode: 3, Time: time.Now()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	e.web.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestWeb_NoFix(t *testing.T) {
	e := newTestEnv(t, gps.NoFix, nil)

	rec := e.do(t, http.MethodGet, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	v := decode[session.View](t, rec)
	if v.State != "idle" || v.Drive != session.NotAvailable || v.RangeToPin != session.NotAvailable || v.Fix != nil {
		t.Fatalf("view = %+v", v)
	}

	for _, path := range []string{"/api/session/tee", "/api/session/drive"} {
		rec = e.do(t, http.MethodPost, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status %d, want 503", path, rec.Code)
		}
	}
}

func TestWeb_TeeDriveAndPins(t *testing.T) {
	e := newTestEnv(t, validFix(51.5, -0.1), nil)

	rec := e.do(t, http.MethodPost, "/api/session/drive", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("drive before tee: status %d, want 409", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/session/tee", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tee: status %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/api/session/drive", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("drive: status %d %s", rec.Code, rec.Body)
	}
	if d := decode[driveResponse](t, rec); d.Formatted != "0.00" {
		t.Fatalf("drive = %+v", d)
	}

	rec = e.do(t, http.MethodPost, "/api/session/pin", `{"hole":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("pin without course: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/session/course", `{"name":"Home"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select course: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/session/pin", `{"hole":19}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("pin 19: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/session/pin", `{"hole":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pin: status %d %s", rec.Code, rec.Body)
	}
	v := decode[markResponse](t, rec).View
	if v.RangeToPin != "0.00" || v.Course != "Home" {
		t.Fatalf("view after pin = %+v", v)
	}

	rec = e.do(t, http.MethodPost, "/api/session/hole", `{"hole":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("hole 0: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/session/reset", "")
	if v := decode[session.View](t, rec); v.State != "idle" {
		t.Fatalf("reset view = %+v", v)
	}
	rec = e.do(t, http.MethodPost, "/api/session/pin", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: status %d", rec.Code)
	}
}

func TestWeb_Courses(t *testing.T) {
	e := newTestEnv(t, gps.NoFix, nil)

	rec := e.do(t, http.MethodGet, "/api/courses/Nowhere", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing course: status %d", rec.Code)
	}

	body := `{"tee_location":{"lat":51.5,"lon":-0.1},"pins":{"1":{"lat":51.501,"lon":-0.101},"18":{"lat":51.502,"lon":-0.102}}}`
	rec = e.do(t, http.MethodPut, "/api/courses/Links", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d %s", rec.Code, rec.Body)
	}
	saved := decode[course.Course](t, rec)
	if saved.Name != "Links" || saved.Tee == nil || len(saved.Pins) != 2 {
		t.Fatalf("saved = %+v", saved)
	}

	rec = e.do(t, http.MethodPut, "/api/courses/Bad", `{"pins":{"19":{"lat":1,"lon":1}}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("pin 19: status %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/courses", "")
	if names := decode[[]string](t, rec); len(names) != 1 || names[0] != "Links" {
		t.Fatalf("names = %v", names)
	}

	rec = e.do(t, http.MethodGet, "/api/courses/Links/geojson", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "FeatureCollection") {
		t.Fatalf("geojson: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, http.MethodDelete, "/api/courses/Links", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodDelete, "/api/courses/Links", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status %d", rec.Code)
	}
}

func TestWeb_ScoreCard(t *testing.T) {
	e := newTestEnv(t, gps.NoFix, nil)

	for _, s := range []string{
		`{"player":"Ann","hole":1,"value":4}`,
		`{"player":"Ann","hole":2,"value":5}`,
		`{"player":"Ann","hole":3,"value":3}`,
	} {
		if rec := e.do(t, http.MethodPost, "/api/round/score", s); rec.Code != http.StatusOK {
			t.Fatalf("score %s: status %d", s, rec.Code)
		}
	}
	rec := e.do(t, http.MethodPost, "/api/round/score", `{"player":"Ann","hole":3,"value":3}`)
	if got := decode[scoreResponse](t, rec); got.Total != 12 {
		t.Fatalf("total = %d, want 12", got.Total)
	}

	if rec := e.do(t, http.MethodPost, "/api/round/score", `{"player":"Ann","hole":1,"value":11}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("score 11: status %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/round/score", `{"player":"Zed","hole":1,"value":1}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown player: status %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/round/page", "")
	if snap := decode[round.Snapshot](t, rec); snap.Page != round.BackNine {
		t.Fatalf("page = %v", snap.Page)
	}

	if rec := e.do(t, http.MethodPost, "/api/round/players", `{"name":"Bob"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate player: status %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/round/players/Bob", ""); rec.Code != http.StatusOK {
		t.Fatalf("remove player: status %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/round/players/Ann", ""); rec.Code != http.StatusConflict {
		t.Fatalf("remove last player: status %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/round/reset", "")
	snap := decode[round.Snapshot](t, rec)
	if snap.Players[0].Total != 0 {
		t.Fatalf("reset left scores: %+v", snap.Players[0])
	}

	if rec := e.do(t, http.MethodPost, "/api/round/save", `{"label":"x"}`); rec.Code != http.StatusNotImplemented {
		t.Fatalf("save without archive: status %d", rec.Code)
	}
}

func TestWeb_RoundArchive(t *testing.T) {
	archive, err := round.OpenArchive(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })
	e := newTestEnv(t, gps.NoFix, archive)

	_ = e.round.SetScore("Bob", 7, 6)
	rec := e.do(t, http.MethodPost, "/api/round/save", `{"label":"Sunday"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: status %d %s", rec.Code, rec.Body)
	}
	id := decode[saveRoundResponse](t, rec).ID

	rec = e.do(t, http.MethodGet, "/api/rounds", "")
	if list := decode[[]round.Summary](t, rec); len(list) != 1 || list[0].Label != "Sunday" {
		t.Fatalf("list = %+v", list)
	}

	rec = e.do(t, http.MethodGet, "/api/rounds/"+strconv.FormatInt(id, 10), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load: status %d", rec.Code)
	}
	snap := decode[round.Snapshot](t, rec)
	if len(snap.Players) != 2 || snap.Players[1].Scores[6] != 6 {
		t.Fatalf("loaded = %+v", snap)
	}

	if rec := e.do(t, http.MethodGet, "/api/rounds/999", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing round: status %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/rounds/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
}

func TestWeb_WebSocketStreamsViews(t *testing.T) {
	e := newTestEnv(t, validFix(40, -74), nil)
	srv := httptest.NewServer(e.web.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first session.View
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if first.Unit != "yd" {
		t.Fatalf("first frame = %+v", first)
	}

	// the poll loop keeps pushing views; one of them carries the fix
	for i := 0; i < 20; i++ {
		var v session.View
		if err := conn.ReadJSON(&v); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if v.Fix != nil && v.Fix.Position.Latitude == 40 {
			return
		}
	}
	t.Fatalf("no frame carried the current fix")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		session.ErrNoFixAvailable:    http.StatusServiceUnavailable,
		course.ErrNotFound:           http.StatusNotFound,
		session.ErrNoPin:             http.StatusConflict,
		course.ErrHoleOutOfRange:     http.StatusBadRequest,
		gps.ErrInvalidCoordinate:     http.StatusBadRequest,
		course.ErrStorageUnavailable: http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/golf_rangefinder/internal/course"
	"github.com/relabs-tech/golf_rangefinder/internal/distance"
	"github.com/relabs-tech/golf_rangefinder/internal/gps"
	"github.com/relabs-tech/golf_rangefinder/internal/round"
	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from the same device
	},
}

const wsSendBuffer = 16

// WebServer exposes the session, the course store and the score card over
// HTTP, and streams session views over /ws/session.
type WebServer struct {
	coord   *session.Coordinator
	courses *course.Store
	round   *round.Round
	archive *round.Archive // optional

	mux *http.ServeMux

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWebServer wires the handlers. archive may be nil. The server registers
// itself as a session observer so every fix reaches WebSocket clients.
func NewWebServer(coord *session.Coordinator, courses *course.Store, r *round.Round, archive *round.Archive) *WebServer {
	s := &WebServer{
		coord:   coord,
		courses: courses,
		round:   r,
		archive: archive,
		mux:     http.NewServeMux(),
		clients: make(map[*wsClient]struct{}),
	}
	coord.AddObserver(s)

	// session
	s.mux.HandleFunc("GET /api/session", s.handleView)
	s.mux.HandleFunc("POST /api/session/tee", s.handleMarkTee)
	s.mux.HandleFunc("POST /api/session/drive", s.handleMarkDrive)
	s.mux.HandleFunc("POST /api/session/pin", s.handleMarkPin)
	s.mux.HandleFunc("POST /api/session/course-tee", s.handleMarkCourseTee)
	s.mux.HandleFunc("POST /api/session/course", s.handleSelectCourse)
	s.mux.HandleFunc("POST /api/session/hole", s.handleSetHole)
	s.mux.HandleFunc("POST /api/session/reset", s.handleReset)
	s.mux.HandleFunc("GET /ws/session", s.handleWS)

	// courses
	s.mux.HandleFunc("GET /api/courses", s.handleListCourses)
	s.mux.HandleFunc("GET /api/courses/{name}", s.handleLoadCourse)
	s.mux.HandleFunc("PUT /api/courses/{name}", s.handleSaveCourse)
	s.mux.HandleFunc("DELETE /api/courses/{name}", s.handleDeleteCourse)
	s.mux.HandleFunc("GET /api/courses/{name}/geojson", s.handleCourseGeoJSON)

	// score card
	s.mux.HandleFunc("GET /api/round", s.handleRound)
	s.mux.HandleFunc("POST /api/round/score", s.handleSetScore)
	s.mux.HandleFunc("POST /api/round/page", s.handleSwitchPage)
	s.mux.HandleFunc("POST /api/round/reset", s.handleResetRound)
	s.mux.HandleFunc("POST /api/round/players", s.handleAddPlayer)
	s.mux.HandleFunc("DELETE /api/round/players/{name}", s.handleRemovePlayer)
	s.mux.HandleFunc("POST /api/round/save", s.handleSaveRound)
	s.mux.HandleFunc("GET /api/rounds", s.handleListRounds)
	s.mux.HandleFunc("GET /api/rounds/{id}", s.handleLoadRound)

	return s
}

// Handler returns the HTTP handler.
func (s *WebServer) Handler() http.Handler { return s.mux }

// Serve listens on addr until ctx is cancelled.
func (s *WebServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		s.closeClients()
	}()
	log.Printf("web: listening on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ---- helpers ----

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoFixAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, course.ErrNotFound),
		errors.Is(err, round.ErrUnknownPlayer),
		errors.Is(err, round.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoTee),
		errors.Is(err, session.ErrNoDrive),
		errors.Is(err, session.ErrNoCourse),
		errors.Is(err, session.ErrNoPin),
		errors.Is(err, round.ErrDuplicatePlayer),
		errors.Is(err, round.ErrLastPlayer):
		return http.StatusConflict
	case errors.Is(err, round.ErrOutOfRange),
		errors.Is(err, round.ErrInvalidName),
		errors.Is(err, course.ErrEmptyName),
		errors.Is(err, course.ErrHoleOutOfRange),
		errors.Is(err, gps.ErrInvalidCoordinate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("web: %v", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad request: " + err.Error()})
		return false
	}
	return true
}

type holeRequest struct {
	Hole int `json:"hole"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// ---- session ----

func (s *WebServer) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.View())
}

type markResponse struct {
	Position gps.Coordinate `json:"position"`
	View     session.View   `json:"view"`
}

func (s *WebServer) handleMarkTee(w http.ResponseWriter, r *http.Request) {
	pos, err := s.coord.MarkTee()
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastView()
	writeJSON(w, http.StatusOK, markResponse{Position: pos, View: s.coord.View()})
}

type driveResponse struct {
	Drive     session.Drive `json:"drive"`
	Formatted string        `json:"formatted"`
}

func (s *WebServer) handleMarkDrive(w http.ResponseWriter, r *http.Request) {
	d, err := s.coord.MarkDriveEnd()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driveResponse{Drive: d, Formatted: distance.Format(d.Yards)})
}

func (s *WebServer) handleMarkPin(w http.ResponseWriter, r *http.Request) {
	var req holeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pos, err := s.coord.MarkPin(req.Hole)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastView()
	writeJSON(w, http.StatusOK, markResponse{Position: pos, View: s.coord.View()})
}

func (s *WebServer) handleMarkCourseTee(w http.ResponseWriter, r *http.Request) {
	pos, err := s.coord.MarkCourseTee()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markResponse{Position: pos, View: s.coord.View()})
}

func (s *WebServer) handleSelectCourse(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.coord.SelectCourse(req.Name); err != nil {
		writeError(w, err)
		return
	}
	s.broadcastView()
	writeJSON(w, http.StatusOK, s.coord.View())
}

func (s *WebServer) handleSetHole(w http.ResponseWriter, r *http.Request) {
	var req holeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.coord.SetHole(req.Hole); err != nil {
		writeError(w, err)
		return
	}
	s.broadcastView()
	writeJSON(w, http.StatusOK, s.coord.View())
}

func (s *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	s.coord.Reset()
	s.broadcastView()
	writeJSON(w, http.StatusOK, s.coord.View())
}

// ---- courses ----

func (s *WebServer) handleListCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.courses.ListNames())
}

func (s *WebServer) handleLoadCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.courses.Load(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *WebServer) handleSaveCourse(w http.ResponseWriter, r *http.Request) {
	var c course.Course
	if !decodeBody(w, r, &c) {
		return
	}
	if err := s.courses.Save(r.PathValue("name"), c); err != nil {
		writeError(w, err)
		return
	}
	saved, err := s.courses.Load(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *WebServer) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.courses.Delete(r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) handleCourseGeoJSON(w http.ResponseWriter, r *http.Request) {
	c, err := s.courses.Load(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := c.GeoJSON().MarshalJSON()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// ---- score card ----

func (s *WebServer) handleRound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.round.Snapshot())
}

type scoreRequest struct {
	Player string `json:"player"`
	Hole   int    `json:"hole"`
	Value  int    `json:"value"`
}

type scoreResponse struct {
	Player string `json:"player"`
	Hole   int    `json:"hole"`
	Value  int    `json:"value"`
	Total  int    `json:"total"`
}

func (s *WebServer) handleSetScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.round.SetScore(req.Player, req.Hole, req.Value); err != nil {
		writeError(w, err)
		return
	}
	total, err := s.round.TotalFor(req.Player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Player: req.Player, Hole: req.Hole, Value: req.Value, Total: total})
}

func (s *WebServer) handleSwitchPage(w http.ResponseWriter, r *http.Request) {
	s.round.SwitchPage()
	writeJSON(w, http.StatusOK, s.round.Snapshot())
}

func (s *WebServer) handleResetRound(w http.ResponseWriter, r *http.Request) {
	s.round.ResetAll()
	writeJSON(w, http.StatusOK, s.round.Snapshot())
}

func (s *WebServer) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.round.AddPlayer(req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.round.Snapshot())
}

func (s *WebServer) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.round.RemovePlayer(r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.round.Snapshot())
}

type saveRoundRequest struct {
	Label string `json:"label"`
}

type saveRoundResponse struct {
	ID int64 `json:"id"`
}

var errNoArchive = errors.New("round archive not configured")

func (s *WebServer) handleSaveRound(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: errNoArchive.Error()})
		return
	}
	var req saveRoundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := s.archive.Save(r.Context(), req.Label, s.round)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveRoundResponse{ID: id})
}

func (s *WebServer) handleListRounds(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: errNoArchive.Error()})
		return
	}
	list, err := s.archive.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *WebServer) handleLoadRound(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: errNoArchive.Error()})
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad round id"})
		return
	}
	saved, err := s.archive.Load(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved.Snapshot())
}

// ---- websocket ----

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	// first frame is the current view
	if data, err := json.Marshal(s.coord.View()); err == nil {
		client.send <- data
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("web: ws client connected (%d total)", n)

	go func() {
		defer conn.Close()
		for msg := range client.send {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	go func() {
		defer s.removeClient(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *WebServer) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	n := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("web: ws client disconnected (%d total)", n)
}

func (s *WebServer) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *WebServer) broadcastView() {
	data, err := json.Marshal(s.coord.View())
	if err != nil {
		log.Printf("web: view marshal error: %v", err)
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// slow client; it gets the next frame
		}
	}
}

// OnFix pushes a fresh view to WebSocket clients.
func (s *WebServer) OnFix(gps.Fix) { s.broadcastView() }

// OnDrive pushes a fresh view to WebSocket clients.
func (s *WebServer) OnDrive(session.Drive) { s.broadcastView() }

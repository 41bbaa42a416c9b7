// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session polls a fix source on an interval and turns the current
// fix into tee, drive and pin markers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/golf_rangefinder/internal/course"
	"github.com/relabs-tech/golf_rangefinder/internal/distance"
	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

const DefaultInterval = time.Second

var (
	ErrNoFixAvailable = errors.New("no valid fix available")
	ErrNoTee          = errors.New("no tee marked")
	ErrNoDrive        = errors.New("no drive measured")
	ErrNoCourse       = errors.New("no course selected")
	ErrNoPin          = errors.New("no pin recorded for hole")
)

// State of the tee/drive machine.
type State int

const (
	Idle State = iota
	TeeMarked
	DriveMeasured
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TeeMarked:
		return "tee_marked"
	case DriveMeasured:
		return "drive_measured"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CourseStore is the part of course.Store the coordinator needs.
type CourseStore interface {
	Load(name string) (course.Course, error)
	SetPin(name string, hole int, at gps.Coordinate) error
	SetTee(name string, at gps.Coordinate) error
}

// Drive is one tee-to-ball measurement.
type Drive struct {
	Tee   gps.Coordinate `json:"tee"`
	End   gps.Coordinate `json:"end"`
	Yards float64        `json:"yards"`
	At    time.Time      `json:"at"`
}

// Observer is told about every poll result and every measured drive.
// Callbacks run on the polling goroutine or the caller of MarkDriveEnd and
// must not block.
type Observer interface {
	OnFix(fix gps.Fix)
	OnDrive(d Drive)
}

// Options configures a Coordinator.
type Options struct {
	Interval time.Duration
	Course   string
	Hole     int
}

// Coordinator is the sole writer of the current fix. Mark operations read
// the fix once at call time.
type Coordinator struct {
	source   gps.Source
	store    CourseStore
	interval time.Duration
	now      func() time.Time

	current atomic.Pointer[gps.Fix]

	mu     sync.Mutex
	state  State
	tee    *gps.Coordinate
	drive  *Drive
	course string
	hole   int

	obsMu     sync.RWMutex
	observers []Observer

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a coordinator around an owned source and a course store.
func New(source gps.Source, store CourseStore, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Hole < 1 || opts.Hole > course.Holes {
		opts.Hole = 1
	}
	return &Coordinator{
		source:   source,
		store:    store,
		interval: opts.Interval,
		now:      time.Now,
		course:   strings.TrimSpace(opts.Course),
		hole:     opts.Hole,
	}
}

// AddObserver registers o for fix and drive notifications.
func (c *Coordinator) AddObserver(o Observer) {
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

func (c *Coordinator) notifyFix(f gps.Fix) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.OnFix(f)
	}
}

func (c *Coordinator) notifyDrive(d Drive) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.OnDrive(d)
	}
}

// Start connects the source and starts the polling loop. The loop runs
// until ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return errors.New("session already started")
	}
	if err := c.source.Connect(ctx); err != nil {
		// Poll keeps retrying; a missing receiver at startup is not fatal
		log.Printf("session: %s connect: %v", c.source.Name(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx)
	}()
	log.Printf("session: polling %s every %s", c.source.Name(), c.interval)
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

// pollOnce publishes the result of one poll. A fix that is not usable
// clears the current fix.
func (c *Coordinator) pollOnce(ctx context.Context) {
	fix := c.source.Poll(ctx)
	if ctx.Err() != nil {
		return
	}
	if fix.Usable() {
		c.current.Store(&fix)
	} else {
		c.current.Store(nil)
	}
	c.notifyFix(fix)
}

// Stop ends the polling loop, waits for it and closes the source.
func (c *Coordinator) Stop() error {
	c.runMu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	c.wg.Wait()
	c.current.Store(nil)
	return c.source.Close()
}

// CurrentFix returns the latest usable fix.
func (c *Coordinator) CurrentFix() (gps.Fix, bool) {
	f := c.current.Load()
	if f == nil {
		return gps.NoFix, false
	}
	return *f, true
}

func (c *Coordinator) position() (gps.Coordinate, error) {
	f, ok := c.CurrentFix()
	if !ok {
		return gps.Coordinate{}, ErrNoFixAvailable
	}
	return f.Position, nil
}

// State returns the tee/drive state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkTee latches the current position as the tee.
func (c *Coordinator) MarkTee() (gps.Coordinate, error) {
	pos, err := c.position()
	if err != nil {
		return gps.Coordinate{}, err
	}
	c.mu.Lock()
	c.tee = &pos
	c.drive = nil
	c.state = TeeMarked
	c.mu.Unlock()
	log.Printf("session: tee marked at %s", pos)
	return pos, nil
}

// MarkDriveEnd measures tee to the current position in yards. A later
// call overwrites the previous measurement.
func (c *Coordinator) MarkDriveEnd() (Drive, error) {
	pos, err := c.position()
	if err != nil {
		return Drive{}, err
	}

	c.mu.Lock()
	if c.state == Idle || c.tee == nil {
		c.mu.Unlock()
		return Drive{}, ErrNoTee
	}
	yards, err := distance.Between(*c.tee, pos, distance.Yards)
	if err != nil {
		c.mu.Unlock()
		return Drive{}, err
	}
	d := Drive{Tee: *c.tee, End: pos, Yards: yards, At: c.now()}
	c.drive = &d
	c.state = DriveMeasured
	c.mu.Unlock()

	log.Printf("session: drive %s yd", distance.Format(yards))
	c.notifyDrive(d)
	return d, nil
}

// Reset discards tee and drive and returns to Idle.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.state = Idle
	c.tee = nil
	c.drive = nil
	c.mu.Unlock()
}

// SelectCourse makes name the course that pins are read from and written
// to. The course does not need to exist yet.
func (c *Coordinator) SelectCourse(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return course.ErrEmptyName
	}
	c.mu.Lock()
	c.course = name
	c.hole = 1
	c.mu.Unlock()
	return nil
}

// SetHole selects the hole whose pin RangeToPin and PinFromDrive use.
func (c *Coordinator) SetHole(hole int) error {
	if hole < 1 || hole > course.Holes {
		return fmt.Errorf("%w: hole %d", course.ErrHoleOutOfRange, hole)
	}
	c.mu.Lock()
	c.hole = hole
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) selection() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.course, c.hole
}

// MarkPin stores the current position as the pin of hole on the selected
// course. It does not touch the tee/drive state.
func (c *Coordinator) MarkPin(hole int) (gps.Coordinate, error) {
	pos, err := c.position()
	if err != nil {
		return gps.Coordinate{}, err
	}
	name, _ := c.selection()
	if name == "" {
		return gps.Coordinate{}, ErrNoCourse
	}
	if err := c.store.SetPin(name, hole, pos); err != nil {
		return gps.Coordinate{}, err
	}
	log.Printf("session: pin %d of %q at %s", hole, name, pos)
	return pos, nil
}

// MarkCourseTee stores the current position as the selected course's tee.
func (c *Coordinator) MarkCourseTee() (gps.Coordinate, error) {
	pos, err := c.position()
	if err != nil {
		return gps.Coordinate{}, err
	}
	name, _ := c.selection()
	if name == "" {
		return gps.Coordinate{}, ErrNoCourse
	}
	if err := c.store.SetTee(name, pos); err != nil {
		return gps.Coordinate{}, err
	}
	return pos, nil
}

func (c *Coordinator) pin() (gps.Coordinate, error) {
	return c.pinFor(c.selection())
}

// pinFor looks up the pin of hole on course name; callers pass a selection
// they have already read so one operation sees one hole.
func (c *Coordinator) pinFor(name string, hole int) (gps.Coordinate, error) {
	if name == "" {
		return gps.Coordinate{}, ErrNoCourse
	}
	rec, err := c.store.Load(name)
	if errors.Is(err, course.ErrNotFound) {
		return gps.Coordinate{}, fmt.Errorf("%w %d", ErrNoPin, hole)
	}
	if err != nil {
		return gps.Coordinate{}, err
	}
	p, ok := rec.Pins[hole]
	if !ok {
		return gps.Coordinate{}, fmt.Errorf("%w %d", ErrNoPin, hole)
	}
	return p, nil
}

// RangeToPin is the distance in yards from the current position to the pin
// of the selected hole.
func (c *Coordinator) RangeToPin() (float64, error) {
	pos, err := c.position()
	if err != nil {
		return 0, err
	}
	p, err := c.pin()
	if err != nil {
		return 0, err
	}
	return distance.Between(pos, p, distance.Yards)
}

// PinFromDrive is the distance in yards left from the end of the last
// drive to the pin of the selected hole.
func (c *Coordinator) PinFromDrive() (float64, error) {
	c.mu.Lock()
	var end *gps.Coordinate
	if c.drive != nil {
		e := c.drive.End
		end = &e
	}
	name, hole := c.course, c.hole
	c.mu.Unlock()
	if end == nil {
		return 0, ErrNoDrive
	}
	p, err := c.pinFor(name, hole)
	if err != nil {
		return 0, err
	}
	return distance.Between(*end, p, distance.Yards)
}

// NotAvailable is shown in place of a distance that cannot be computed.
const NotAvailable = "N/A"

// View is a consistent snapshot for presentation. Distances are formatted
// with two decimals, or "N/A".
type View struct {
	State        string          `json:"state"`
	Fix          *gps.Fix        `json:"fix"`
	Course       string          `json:"course"`
	Hole         int             `json:"hole"`
	Tee          *gps.Coordinate `json:"tee"`
	Drive        string          `json:"drive"`
	RangeToPin   string          `json:"range_to_pin"`
	PinFromDrive string          `json:"pin_from_drive"`
	Unit         string          `json:"unit"`
}

// View snapshots the session.
func (c *Coordinator) View() View {
	v := View{
		Drive:        NotAvailable,
		RangeToPin:   NotAvailable,
		PinFromDrive: NotAvailable,
		Unit:         distance.Yards.String(),
	}
	if f, ok := c.CurrentFix(); ok {
		v.Fix = &f
	}

	c.mu.Lock()
	v.State = c.state.String()
	v.Course = c.course
	v.Hole = c.hole
	if c.tee != nil {
		tee := *c.tee
		v.Tee = &tee
	}
	var end *gps.Coordinate
	if c.drive != nil {
		v.Drive = distance.Format(c.drive.Yards)
		e := c.drive.End
		end = &e
	}
	c.mu.Unlock()

	if v.Fix == nil && end == nil {
		return v
	}
	p, err := c.pinFor(v.Course, v.Hole)
	if err != nil {
		return v
	}
	if v.Fix != nil {
		if d, err := distance.Between(v.Fix.Position, p, distance.Yards); err == nil {
			v.RangeToPin = distance.Format(d)
		}
	}
	if end != nil {
		if d, err := distance.Between(*end, p, distance.Yards); err == nil {
			v.PinFromDrive = distance.Format(d)
		}
	}
	return v
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package course stores per-course tee and pin locations in a catalogue
// file that is always rewritten as a whole.
package course

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

// Holes is the number of holes a pin may be recorded for.
const Holes = 18

var (
	ErrEmptyName          = errors.New("course name is empty")
	ErrNotFound           = errors.New("course not found")
	ErrHoleOutOfRange     = errors.New("hole out of range")
	ErrStorageUnavailable = errors.New("course storage unavailable")
)

// Course is the reference data of one course. Tee is nil when no tee has
// been recorded; Pins only holds holes 1..18.
type Course struct {
	Name string                 `json:"name"`
	Tee  *gps.Coordinate        `json:"tee_location"`
	Pins map[int]gps.Coordinate `json:"pins"`
}

// Clone returns a deep copy.
func (c Course) Clone() Course {
	out := Course{Name: c.Name, Pins: make(map[int]gps.Coordinate, len(c.Pins))}
	if c.Tee != nil {
		tee := *c.Tee
		out.Tee = &tee
	}
	for h, p := range c.Pins {
		out.Pins[h] = p
	}
	return out
}

// Equal compares two courses field by field.
func (c Course) Equal(o Course) bool {
	if c.Name != o.Name || len(c.Pins) != len(o.Pins) {
		return false
	}
	if (c.Tee == nil) != (o.Tee == nil) || (c.Tee != nil && *c.Tee != *o.Tee) {
		return false
	}
	for h, p := range c.Pins {
		if q, ok := o.Pins[h]; !ok || q != p {
			return false
		}
	}
	return true
}

// PinHoles returns the holes that have a pin, ascending.
func (c Course) PinHoles() []int {
	holes := make([]int, 0, len(c.Pins))
	for h := range c.Pins {
		holes = append(holes, h)
	}
	sort.Ints(holes)
	return holes
}

func checkHole(hole int) error {
	if hole < 1 || hole > Holes {
		return fmt.Errorf("%w: hole %d must be between 1 and %d", ErrHoleOutOfRange, hole, Holes)
	}
	return nil
}

func (c Course) validate() error {
	if c.Tee != nil {
		if err := c.Tee.Validate(); err != nil {
			return fmt.Errorf("tee: %w", err)
		}
	}
	for h, p := range c.Pins {
		if err := checkHole(h); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pin %d: %w", h, err)
		}
	}
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// Store is the Course Reference Store. The in-memory catalogue is
// authoritative for the process; every mutation rewrites the whole file.
type Store struct {
	path  string
	codec codec

	mu      sync.Mutex
	courses map[string]Course
	order   []string
	// corrupt is set when the file on disk could not be decoded; it is
	// moved aside to path+".bak" before the first overwrite.
	corrupt bool
}

// Open loads the catalogue at path. A missing or malformed file yields an
// empty catalogue and a nil error. An unreadable file also yields a usable,
// empty store, together with an error wrapping ErrStorageUnavailable.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		codec:   codecFor(path),
		courses: make(map[string]Course),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("course: no catalogue at %s, starting empty", path)
		return s, nil
	case err != nil:
		return s, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, path, err)
	}

	entries, err := s.codec.decode(data)
	if err != nil {
		log.Printf("course: catalogue %s is malformed, starting empty: %v", path, err)
		s.corrupt = true
		return s, nil
	}
	for _, e := range entries {
		c, dropped := e.course()
		if c.Name == "" {
			log.Printf("course: dropped course with empty name")
			continue
		}
		for _, msg := range dropped {
			log.Printf("course: %s: dropped %s", e.name, msg)
		}
		if _, ok := s.courses[c.Name]; !ok {
			s.order = append(s.order, c.Name)
		}
		s.courses[c.Name] = c
	}
	log.Printf("course: loaded %d course(s) from %s", len(s.order), path)
	return s, nil
}

// Path returns the catalogue file path.
func (s *Store) Path() string { return s.path }

// Save replaces the whole record stored under name.
func (s *Store) Save(name string, c Course) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	rec := c.Clone()
	rec.Name = name
	if err := rec.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(rec)
	return s.persistLocked()
}

func (s *Store) putLocked(c Course) {
	if _, ok := s.courses[c.Name]; !ok {
		s.order = append(s.order, c.Name)
	}
	s.courses[c.Name] = c
}

// Load returns a copy of the course stored under name.
func (s *Store) Load(name string) (Course, error) {
	name, err := cleanName(name)
	if err != nil {
		return Course{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[name]
	if !ok {
		return Course{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.Clone(), nil
}

// SetPin records the pin of hole on course name, creating an empty course
// record when name is not in the catalogue yet.
func (s *Store) SetPin(name string, hole int, at gps.Coordinate) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := checkHole(hole); err != nil {
		return err
	}
	if err := at.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[name]
	if ok {
		c = c.Clone()
	} else {
		c = Course{Name: name, Pins: make(map[int]gps.Coordinate)}
	}
	c.Pins[hole] = at
	s.putLocked(c)
	return s.persistLocked()
}

// SetTee records the tee location of course name, creating the course when
// needed.
func (s *Store) SetTee(name string, at gps.Coordinate) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := at.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[name]
	if ok {
		c = c.Clone()
	} else {
		c = Course{Name: name, Pins: make(map[int]gps.Coordinate)}
	}
	c.Tee = &at
	s.putLocked(c)
	return s.persistLocked()
}

// Delete removes course name from the catalogue.
func (s *Store) Delete(name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.courses, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persistLocked()
}

// ListNames returns all course names in order of first save.
func (s *Store) ListNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// persistLocked writes the whole catalogue. On failure the in-memory
// catalogue keeps the change and the error wraps ErrStorageUnavailable.
func (s *Store) persistLocked() error {
	entries := make([]entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, entryFor(s.courses[name]))
	}
	data, err := s.codec.encode(entries)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}

	if s.corrupt {
		if err := os.Rename(s.path, s.path+".bak"); err == nil {
			log.Printf("course: malformed catalogue kept as %s.bak", s.path)
		}
		s.corrupt = false
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, s.path, err)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the same directory so the
// rename is atomic and a crash never leaves a half-written catalogue.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

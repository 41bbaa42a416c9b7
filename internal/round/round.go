// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package round keeps per-player, per-hole scores for one round.
package round

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	Holes    = 18
	MinScore = 0
	MaxScore = 10
)

var (
	ErrOutOfRange      = errors.New("out of range")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrDuplicatePlayer = errors.New("duplicate player")
	ErrInvalidName     = errors.New("player name is empty")
	ErrNoPlayers       = errors.New("a round needs at least one player")
	ErrLastPlayer      = errors.New("cannot remove the last player")
)

// Page is the score-card page in view: front or back nine.
type Page int

const (
	FrontNine Page = 0
	BackNine  Page = 1
)

// Holes returns the first and last hole shown on the page.
func (p Page) Holes() (first, last int) {
	if p == BackNine {
		return 10, 18
	}
	return 1, 9
}

func (p Page) String() string {
	if p == BackNine {
		return "back"
	}
	return "front"
}

// Player is one golfer's score card. Scores[i] is hole i+1.
type Player struct {
	Name   string     `json:"name"`
	Scores [Holes]int `json:"scores"`
}

func (p *Player) total(first, last int) int {
	sum := 0
	for h := first; h <= last; h++ {
		sum += p.Scores[h-1]
	}
	return sum
}

// Round owns the players of one round and the current page. It is safe for
// concurrent use.
type Round struct {
	mu      sync.RWMutex
	players []*Player
	page    Page
}

// New creates a round with the named players, all scores 0.
func New(names ...string) (*Round, error) {
	if len(names) == 0 {
		return nil, ErrNoPlayers
	}
	r := &Round{}
	for _, n := range names {
		if err := r.addLocked(n); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Round) addLocked(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if r.findLocked(name) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicatePlayer, name)
	}
	r.players = append(r.players, &Player{Name: name})
	return nil
}

func (r *Round) findLocked(name string) *Player {
	name = strings.TrimSpace(name)
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Round) playerLocked(name string) (*Player, error) {
	p := r.findLocked(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	return p, nil
}

// AddPlayer joins a new player with an empty card.
func (r *Round) AddPlayer(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(name)
}

// RemovePlayer drops a player. The last player cannot be removed.
func (r *Round) RemovePlayer(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.players {
		if p.Name != strings.TrimSpace(name) {
			continue
		}
		if len(r.players) == 1 {
			return ErrLastPlayer
		}
		r.players = append(r.players[:i], r.players[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
}

// Players returns the player names in join order.
func (r *Round) Players() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.Name
	}
	return names
}

func checkHole(hole int) error {
	if hole < 1 || hole > Holes {
		return fmt.Errorf("%w: hole %d must be between 1 and %d", ErrOutOfRange, hole, Holes)
	}
	return nil
}

// SetScore records value for player on hole, replacing any earlier value.
// Out-of-range input leaves the card untouched.
func (r *Round) SetScore(player string, hole, value int) error {
	if err := checkHole(hole); err != nil {
		return err
	}
	if value < MinScore || value > MaxScore {
		return fmt.Errorf("%w: score %d must be between %d and %d", ErrOutOfRange, value, MinScore, MaxScore)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.playerLocked(player)
	if err != nil {
		return err
	}
	p.Scores[hole-1] = value
	return nil
}

// Score returns player's score on hole.
func (r *Round) Score(player string, hole int) (int, error) {
	if err := checkHole(hole); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.playerLocked(player)
	if err != nil {
		return 0, err
	}
	return p.Scores[hole-1], nil
}

// TotalFor sums all 18 holes of player's card.
func (r *Round) TotalFor(player string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.playerLocked(player)
	if err != nil {
		return 0, err
	}
	return p.total(1, Holes), nil
}

// NineTotal sums the holes of one page for player.
func (r *Round) NineTotal(player string, page Page) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.playerLocked(player)
	if err != nil {
		return 0, err
	}
	first, last := page.Holes()
	return p.total(first, last), nil
}

// SwitchPage toggles between front and back nine and returns the new page.
// Scores are not affected.
func (r *Round) SwitchPage() Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.page == FrontNine {
		r.page = BackNine
	} else {
		r.page = FrontNine
	}
	return r.page
}

// Page returns the page in view.
func (r *Round) Page() Page {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.page
}

// ResetAll zeroes every hole of every player.
func (r *Round) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		p.Scores = [Holes]int{}
	}
}

// Card is a read-only copy of one player's card with subtotals.
type Card struct {
	Name   string     `json:"name"`
	Scores [Holes]int `json:"scores"`
	Front  int        `json:"front"`
	Back   int        `json:"back"`
	Total  int        `json:"total"`
}

// Snapshot is a consistent copy of the whole round.
type Snapshot struct {
	Players []Card `json:"players"`
	Page    Page   `json:"page"`
}

// Snapshot copies the round under one lock.
func (r *Round) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Snapshot{Page: r.page, Players: make([]Card, len(r.players))}
	for i, p := range r.players {
		out.Players[i] = Card{
			Name:   p.Name,
			Scores: p.Scores,
			Front:  p.total(1, 9),
			Back:   p.total(10, 18),
			Total:  p.total(1, Holes),
		}
	}
	return out
}

// FromSnapshot rebuilds a round, validating every stored score.
func FromSnapshot(s Snapshot) (*Round, error) {
	names := make([]string, len(s.Players))
	for i, c := range s.Players {
		names[i] = c.Name
	}
	r, err := New(names...)
	if err != nil {
		return nil, err
	}
	for _, c := range s.Players {
		for i, v := range c.Scores {
			if err := r.SetScore(c.Name, i+1, v); err != nil {
				return nil, err
			}
		}
	}
	if s.Page == BackNine {
		r.page = BackNine
	}
	return r, nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	gpsdDefaultAddr = "127.0.0.1:2947"
	gpsdSourceName  = "gpsd"
)

// GPSDConfig configures the gpsd client.
type GPSDConfig struct {
	Addr    string
	Timeout time.Duration
}

// GPSDSource asks a local gpsd for the current position on every poll
// (?POLL; request/response). A failed poll drops the connection and the
// next poll dials again.
type GPSDSource struct {
	addr    string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	lastErr string
}

// NewGPSD creates a gpsd source.
func NewGPSD(cfg GPSDConfig) *GPSDSource {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = gpsdDefaultAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPollTimeout
	}
	return &GPSDSource{addr: addr, timeout: cfg.Timeout, now: time.Now}
}

func (s *GPSDSource) Name() string { return gpsdSourceName }

// Connect dials gpsd and enables watcher mode, which ?POLL requires.
func (s *GPSDSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	return s.connectLocked(ctx, s.now().Add(s.timeout))
}

func (s *GPSDSource) connectLocked(ctx context.Context, deadline time.Time) error {
	d := &net.Dialer{Deadline: deadline}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gpsd dial %s: %w", s.addr, err)
	}
	_ = conn.SetWriteDeadline(deadline)
	if _, err := conn.Write([]byte("?WATCH={\"enable\":true}\n")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("gpsd watch: %w", err)
	}
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	log.Printf("gps: connected to gpsd at %s", s.addr)
	return nil
}

func (s *GPSDSource) dropLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.reader = nil
}

type gpsdMsgBase struct {
	Class string `json:"class"`
}

type gpsdTPV struct {
	Mode *int     `json:"mode"`
	Time string   `json:"time"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

type gpsdPoll struct {
	Class string    `json:"class"`
	TPV   []gpsdTPV `json:"tpv"`
}

// Poll sends ?POLL; and waits for the POLL report. Any error yields NoFix.
func (s *GPSDSource) Poll(ctx context.Context) Fix {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	fix, err := s.pollLocked(ctx, deadline)
	if err != nil {
		s.dropLocked()
		if msg := err.Error(); msg != s.lastErr {
			log.Printf("gps: %v", err)
			s.lastErr = msg
		}
		return NoFix
	}
	s.lastErr = ""
	return fix
}

func (s *GPSDSource) pollLocked(ctx context.Context, deadline time.Time) (Fix, error) {
	if s.conn == nil {
		if err := s.connectLocked(ctx, deadline); err != nil {
			return NoFix, err
		}
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return NoFix, err
	}
	if _, err := s.conn.Write([]byte("?POLL;\n")); err != nil {
		return NoFix, fmt.Errorf("gpsd poll: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return NoFix, err
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return NoFix, fmt.Errorf("gpsd read: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var base gpsdMsgBase
		if err := json.Unmarshal([]byte(line), &base); err != nil {
			return NoFix, fmt.Errorf("gpsd json parse failed: %v", err)
		}
		// VERSION/DEVICES/WATCH chatter precedes the first POLL reply
		if !strings.EqualFold(base.Class, "POLL") {
			continue
		}
		var poll gpsdPoll
		if err := json.Unmarshal([]byte(line), &poll); err != nil {
			return NoFix, fmt.Errorf("gpsd poll parse failed: %v", err)
		}
		return fixFromPoll(poll, s.now().UTC()), nil
	}
}

func fixFromPoll(poll gpsdPoll, nowUTC time.Time) Fix {
	for _, tpv := range poll.TPV {
		if tpv.Lat == nil || tpv.Lon == nil {
			continue
		}
		fix := Fix{
			Position: Coordinate{Latitude: *tpv.Lat, Longitude: *tpv.Lon},
			Time:     nowUTC,
			Source:   gpsdSourceName,
		}
		if tpv.Mode != nil {
			fix.Mode = *tpv.Mode
		}
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(tpv.Time)); err == nil {
			fix.Time = t.UTC()
		}
		fix.Valid = fix.Mode >= 2 && fix.Position.Validate() == nil
		return fix
	}
	return NoFix
}

// Close drops the gpsd connection. A later Poll reconnects.
func (s *GPSDSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
	return nil
}

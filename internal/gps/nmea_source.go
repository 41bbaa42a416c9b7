// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

const (
	defaultBaud      = 9600
	reconnectMin     = 250 * time.Millisecond
	reconnectMax     = 10 * time.Second
	autoDetectDevice = "auto"
	nmeaSourceName   = "nmea"
)

// NMEAConfig configures a serial NMEA receiver.
type NMEAConfig struct {
	Device  string // e.g. /dev/ttyACM0, /dev/serial0, or "auto"
	Baud    int
	Timeout time.Duration
}

// NMEASource reads NMEA sentences from a serial receiver in the background
// and hands Poll the newest RMC fix that has not been polled yet.
type NMEASource struct {
	device  string
	baud    int
	timeout time.Duration

	// open is swapped out in tests.
	open func() (io.ReadCloser, error)
	now  func() time.Time

	latest *latestFix

	mu     sync.Mutex
	cancel context.CancelFunc
	port   io.Closer
	wg     sync.WaitGroup
}

// NewNMEA creates an NMEA source. Nothing is opened until Connect.
func NewNMEA(cfg NMEAConfig) *NMEASource {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPollTimeout
	}
	s := &NMEASource{
		device:  strings.TrimSpace(cfg.Device),
		baud:    cfg.Baud,
		timeout: cfg.Timeout,
		now:     time.Now,
		latest:  newLatestFix(),
	}
	s.open = s.openSerial
	return s
}

func (s *NMEASource) Name() string { return nmeaSourceName }

func (s *NMEASource) openSerial() (io.ReadCloser, error) {
	device := s.device
	if device == "" || device == autoDetectDevice {
		d, err := DetectSerialPort()
		if err != nil {
			return nil, err
		}
		device = d
	}

	opts := serial.OpenOptions{
		PortName:              device,
		BaudRate:              uint(s.baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	log.Printf("gps: serial port opened on %s at %d baud", device, s.baud)
	return port, nil
}

// Connect starts the background reader. The reader reopens the port with
// exponential backoff whenever it fails or disconnects.
func (s *NMEASource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(childCtx)
	}()
	return nil
}

func (s *NMEASource) run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		port, err := s.open()
		if err != nil {
			log.Printf("gps: open failed: %v (retry in %s)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < reconnectMax {
				backoff *= 2
				if backoff > reconnectMax {
					backoff = reconnectMax
				}
			}
			continue
		}
		backoff = reconnectMin

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			_ = port.Close()
			return
		}
		s.port = port
		s.mu.Unlock()

		err = s.readLines(ctx, port)
		_ = port.Close()

		s.mu.Lock()
		s.port = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		log.Printf("gps: read stopped: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectMin):
		}
	}
}

func (s *NMEASource) readLines(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.ReadString('\n')
		if fix, ok := parseRMC(line, s.now()); ok {
			s.latest.put(fix)
		}
		if err != nil {
			return err
		}
	}
}

// parseRMC turns one NMEA line into a Fix. Lines that are not RMC sentences,
// or that fail to parse, report ok=false.
func parseRMC(line string, at time.Time) (Fix, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return NoFix, false
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy receivers emit partial sentences all the time
		return NoFix, false
	}
	if sentence.DataType() != nmea.TypeRMC {
		return NoFix, false
	}
	m := sentence.(nmea.RMC)

	fix := Fix{
		Position: Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
		Time:     at,
		Valid:    m.Validity == nmea.ValidRMC,
		Source:   nmeaSourceName,
	}
	if fix.Valid {
		fix.Mode = 2
	}
	if fix.Position.Validate() != nil {
		fix.Valid = false
	}
	return fix, true
}

// Poll returns the newest fix read since the previous poll, waiting at most
// the configured timeout for one to arrive.
func (s *NMEASource) Poll(ctx context.Context) Fix {
	return s.latest.take(ctx, s.timeout)
}

// Close stops the reader and closes the port.
func (s *NMEASource) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	port := s.port
	s.mu.Unlock()

	if port != nil {
		// unblocks a pending read
		_ = port.Close()
	}
	s.wg.Wait()
	return nil
}

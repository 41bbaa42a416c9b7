// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/golf_rangefinder/internal/config"
	"github.com/relabs-tech/golf_rangefinder/internal/course"
	"github.com/relabs-tech/golf_rangefinder/internal/gps"
	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

// RunMockConsole walks the mock source around MOCK_CENTER_LAT/LON, marks
// the tee on the first fix and prints the distance walked on every tick.
// It needs no receiver and no broker.
func RunMockConsole(cfg *config.Config) error {
	src := gps.NewMockSource(gps.Coordinate{Latitude: cfg.MockCenterLat, Longitude: cfg.MockCenterLon})
	store, err := course.Open(cfg.CourseCatalogue)
	if err != nil {
		return err
	}
	coord := session.New(src, store, session.Options{Interval: cfg.PollInterval()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := coord.Start(ctx); err != nil {
		return err
	}
	defer coord.Stop()

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		printMockTick(coord)
	}
}

func printMockTick(coord *session.Coordinator) {
	fix, ok := coord.CurrentFix()
	if !ok {
		fmt.Println("waiting for fix")
		return
	}
	if coord.State() == session.Idle {
		if _, err := coord.MarkTee(); err == nil {
			fmt.Printf("TEE   %s\n", fix.Position)
		}
		return
	}
	d, err := coord.MarkDriveEnd()
	if errors.Is(err, session.ErrNoFixAvailable) {
		fmt.Println("fix lost")
		return
	}
	if err != nil {
		fmt.Printf("drive error: %v\n", err)
		return
	}
	fmt.Printf("POS   %s  walked=%6.2f yd\n", d.End, d.Yards)
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/golf_rangefinder/internal/config"
	"github.com/relabs-tech/golf_rangefinder/internal/course"
	"github.com/relabs-tech/golf_rangefinder/internal/round"
	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

// RangefinderOptions are the command-line extras of the rangefinder.
type RangefinderOptions struct {
	// ImportHoles is a legacy holes database imported into Course before
	// the session starts.
	ImportHoles string
	// Course is selected at startup.
	Course string
}

// RunRangefinder runs the session against the configured fix source,
// serves the web UI/API and, when MQTT_BROKER is set, mirrors fixes and
// drives to MQTT. With DISPLAY_I2C_ADDR set it also drives an SSD1306
// OLED. It returns after SIGINT or SIGTERM.
func RunRangefinder(opts RangefinderOptions) error {
	cfg := config.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- 1) Course catalogue ----
	store, err := course.Open(cfg.CourseCatalogue)
	if err != nil {
		// keeps running on the in-memory catalogue
		log.Printf("rangefinder: %v", err)
	}
	if opts.ImportHoles != "" {
		if opts.Course == "" {
			return fmt.Errorf("-import-holes needs -course")
		}
		n, err := course.ImportLegacyHoles(ctx, store, opts.ImportHoles, opts.Course)
		if err != nil {
			return fmt.Errorf("import %s: %w", opts.ImportHoles, err)
		}
		log.Printf("rangefinder: %d pin(s) imported", n)
	}

	// ---- 2) Score card and optional archive ----
	card, err := round.New(cfg.Players...)
	if err != nil {
		return err
	}
	var archive *round.Archive
	if cfg.RoundArchive != "" {
		archive, err = round.OpenArchive(cfg.RoundArchive)
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	// ---- 3) Session ----
	src, err := SourceFromConfig(cfg)
	if err != nil {
		return err
	}
	coord := session.New(src, store, session.Options{
		Interval: cfg.PollInterval(),
		Course:   opts.Course,
	})

	if cfg.MQTTBroker != "" {
		client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDSession)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		coord.AddObserver(NewMQTTPublisher(client, cfg.TopicGPS, cfg.TopicDrive))
	}

	web := NewWebServer(coord, store, card, archive)

	if err := coord.Start(ctx); err != nil {
		return err
	}
	defer coord.Stop()

	if cfg.DisplayI2CAddr != 0 {
		dev, closeBus, err := openDisplay(uint16(cfg.DisplayI2CAddr))
		if err != nil {
			log.Printf("rangefinder: display disabled: %v", err)
		} else {
			done := make(chan struct{})
			go func() {
				defer close(done)
				runDisplay(ctx, dev, coord, cfg.DisplayInterval())
			}()
			defer func() {
				stop()
				<-done
				closeBus()
			}()
		}
	}

	// ---- 4) Serve until signalled ----
	err = web.Serve(ctx, fmt.Sprintf(":%d", cfg.WebServerPort))
	log.Println("rangefinder: shutting down")
	return err
}

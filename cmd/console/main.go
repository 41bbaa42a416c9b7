// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"errors"
	"log"
	"os"

	"github.com/relabs-tech/golf_rangefinder/internal/app"
	"github.com/relabs-tech/golf_rangefinder/internal/config"
)

func main() {
	log.Println("starting golf rangefinder (mock console)")

	cfg := config.Default()
	if err := config.InitGlobal("golf_config.txt"); err == nil {
		cfg = config.Get()
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load config: %v", err)
	} else {
		cfg.MockCenterLat, cfg.MockCenterLon = 51.5007, -0.1246
		cfg.CourseCatalogue = "mock_courses.json"
	}

	if err := app.RunMockConsole(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/golf_rangefinder/internal/app"
	"github.com/relabs-tech/golf_rangefinder/internal/config"
)

func main() {
	configPath := flag.String("config", "golf_config.txt", "path to the KEY=VALUE config file")
	importHoles := flag.String("import-holes", "", "legacy holes database to import as pins of -course")
	courseName := flag.String("course", "", "course selected at startup")
	flag.Parse()

	log.Println("starting golf rangefinder")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := app.RangefinderOptions{ImportHoles: *importHoles, Course: *courseName}
	if err := app.RunRangefinder(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

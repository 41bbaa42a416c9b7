package main

import (
	"log"

	"github.com/relabs-tech/golf_rangefinder/internal/app"
	"github.com/relabs-tech/golf_rangefinder/internal/config"
)

func main() {
	log.Println("starting golf console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("golf_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

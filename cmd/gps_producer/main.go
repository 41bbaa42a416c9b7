package main

import (
	"log"

	"github.com/relabs-tech/golf_rangefinder/internal/app"
	"github.com/relabs-tech/golf_rangefinder/internal/config"
)

func main() {
	log.Println("starting golf GPS producer (fix source → MQTT)")

	// Load configuration
	if err := config.InitGlobal("golf_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if config.Get().MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is required for the GPS producer")
	}

	if err := app.RunGPSProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/golf_rangefinder/internal/config"
	"github.com/relabs-tech/golf_rangefinder/internal/gps"
)

// SourceFromConfig builds the fix source selected by GPS_SOURCE.
func SourceFromConfig(cfg *config.Config) (gps.Source, error) {
	return gps.NewSource(gps.Options{
		Kind:     cfg.GPSSource,
		Device:   cfg.GPSSerialPort,
		Baud:     cfg.GPSBaudRate,
		GPSDAddr: cfg.GPSDAddr,
		Timeout:  cfg.PollTimeout(),
		MockCenter: gps.Coordinate{
			Latitude:  cfg.MockCenterLat,
			Longitude: cfg.MockCenterLon,
		},
	})
}

// RunGPSProducer polls the configured fix source every GPS_POLL_INTERVAL
// and publishes each result as JSON on TOPIC_GPS. It runs until SIGINT or
// SIGTERM.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := NewMQTTPublisher(client, cfg.TopicGPS, "")

	// ---- 2) Open the fix source ----
	src, err := SourceFromConfig(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := src.Connect(ctx); err != nil {
		log.Printf("gps producer: %s connect: %v (will retry)", src.Name(), err)
	}
	defer src.Close()

	// ---- 3) Poll and publish ----
	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()
	var lastUsable bool
	for ctx.Err() == nil {
		fix := src.Poll(ctx)
		if ctx.Err() != nil {
			break
		}
		pub.OnFix(fix)
		if fix.Usable() != lastUsable {
			if fix.Usable() {
				log.Printf("gps producer: fix acquired at %s", fix.Position)
			} else {
				log.Printf("gps producer: fix lost")
			}
			lastUsable = fix.Usable()
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	log.Println("gps producer: shutting down")
	return nil
}

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/golf_rangefinder/internal/config"
)

// formatFixLine renders a TOPIC_GPS payload as one console line.
func formatFixLine(payload []byte) (string, error) {
	var m FixMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	if !m.Available || m.Fix == nil {
		return "[GPS ]  no fix", nil
	}
	return fmt.Sprintf(
		"[GPS ]  time=%s lat=%.6f lon=%.6f mode=%d source=%s",
		m.Fix.Time.Format("15:04:05"), m.Fix.Position.Latitude, m.Fix.Position.Longitude, m.Fix.Mode, m.Fix.Source,
	), nil
}

// formatDriveLine renders a TOPIC_DRIVE payload as one console line.
func formatDriveLine(payload []byte) (string, error) {
	var m DriveMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[DRIVE] %s yd  tee=%s end=%s",
		m.Formatted, m.Tee, m.End,
	), nil
}

func subscribePrinter(client mqtt.Client, topic string, format func([]byte) (string, error)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := format(msg.Payload())
		if err != nil {
			log.Printf("console: %s unmarshal error: %v", topic, err)
			return
		}
		fmt.Println(line)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)
	return nil
}

// RunConsoleMQTT prints fixes and drives published by the rangefinder or
// the GPS producer.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	if err := subscribePrinter(client, cfg.TopicGPS, formatFixLine); err != nil {
		return err
	}
	if err := subscribePrinter(client, cfg.TopicDrive, formatDriveLine); err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/golf_rangefinder/internal/distance"
	"github.com/relabs-tech/golf_rangefinder/internal/gps"
	"github.com/relabs-tech/golf_rangefinder/internal/session"
)

const publishTimeout = 2 * time.Second

// connectMQTT connects to broker and returns the client.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	log.Printf("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}

// publisher is the part of mqtt.Client used for publishing.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// FixMessage is the payload published on the GPS topic. Fix is null when
// the poll produced no usable fix, so no position is ever sent for it.
type FixMessage struct {
	Fix       *gps.Fix `json:"fix"`
	Available bool     `json:"available"`
}

func newFixMessage(f gps.Fix) FixMessage {
	if !f.Usable() {
		return FixMessage{}
	}
	return FixMessage{Fix: &f, Available: true}
}

// DriveMessage is the payload published on the drive topic.
type DriveMessage struct {
	session.Drive
	Formatted string `json:"formatted"`
}

// MQTTPublisher mirrors session fixes and drives onto MQTT topics. It never
// blocks the session: publish results are checked in the background.
type MQTTPublisher struct {
	client     publisher
	topicGPS   string
	topicDrive string
}

// NewMQTTPublisher creates a publisher. Empty topics disable that stream.
func NewMQTTPublisher(client publisher, topicGPS, topicDrive string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topicGPS: topicGPS, topicDrive: topicDrive}
}

func (p *MQTTPublisher) publish(topic string, retained bool, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshal for %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			log.Printf("mqtt: publish to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: publish to %s: %v", topic, err)
		}
	}()
}

// OnFix publishes every poll result, usable or not.
func (p *MQTTPublisher) OnFix(f gps.Fix) {
	p.publish(p.topicGPS, true, newFixMessage(f))
}

// OnDrive publishes a measured drive.
func (p *MQTTPublisher) OnDrive(d session.Drive) {
	p.publish(p.topicDrive, false, newDriveMessage(d))
}

func newDriveMessage(d session.Drive) DriveMessage {
	return DriveMessage{Drive: d, Formatted: distance.Format(d.Yards)}
}

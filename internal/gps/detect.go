// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	bugst "go.bug.st/serial"
)

// ErrNoSerialPort is returned when auto-detection finds no candidate port.
var ErrNoSerialPort = errors.New("no serial port found")

// DetectSerialPort picks the most likely GNSS receiver among the serial
// ports the OS reports. USB CDC-ACM devices (u-blox and friends) win over
// USB-serial adapters, which win over anything else.
func DetectSerialPort() (string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	port := pickSerialPort(ports)
	if port == "" {
		return "", ErrNoSerialPort
	}
	return port, nil
}

func pickSerialPort(ports []string) string {
	if len(ports) == 0 {
		return ""
	}
	sorted := append([]string(nil), ports...)
	sort.Strings(sorted)
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB", "/dev/serial"} {
		for _, p := range sorted {
			if strings.HasPrefix(p, prefix) {
				return p
			}
		}
	}
	return sorted[0]
}

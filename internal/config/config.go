package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every key when reading environment overrides,
// e.g. GOLF_GPS_SOURCE.
const EnvPrefix = "GOLF_"

// Config holds all application configuration values.
type Config struct {
	// GPS
	GPSSource       string  `env:"GPS_SOURCE"`
	GPSSerialPort   string  `env:"GPS_SERIAL_PORT"`
	GPSBaudRate     int     `env:"GPS_BAUD_RATE"`
	GPSDAddr        string  `env:"GPSD_ADDR"`
	GPSPollInterval int     `env:"GPS_POLL_INTERVAL"` // milliseconds
	GPSPollTimeout  int     `env:"GPS_POLL_TIMEOUT"`  // milliseconds
	MockCenterLat   float64 `env:"MOCK_CENTER_LAT"`
	MockCenterLon   float64 `env:"MOCK_CENTER_LON"`

	// Storage
	CourseCatalogue string   `env:"COURSE_CATALOGUE"`
	RoundArchive    string   `env:"ROUND_ARCHIVE"`
	Players         []string `env:"PLAYERS"`

	// MQTT; an empty broker disables publishing
	MQTTBroker          string `env:"MQTT_BROKER"`
	MQTTClientIDSession string `env:"MQTT_CLIENT_ID_SESSION"`
	MQTTClientIDGPS     string `env:"MQTT_CLIENT_ID_GPS"`
	MQTTClientIDConsole string `env:"MQTT_CLIENT_ID_CONSOLE"`

	// Topics
	TopicGPS   string `env:"TOPIC_GPS"`
	TopicDrive string `env:"TOPIC_DRIVE"`

	// Web Server
	WebServerPort int `env:"WEB_SERVER_PORT"`

	// OLED display; address 0 disables it
	DisplayI2CAddr        I2CAddr `env:"DISPLAY_I2C_ADDR"`
	DisplayUpdateInterval int     `env:"DISPLAY_UPDATE_INTERVAL"` // milliseconds
}

// I2CAddr is a bus address written in decimal, hex (0x3C) or octal.
type I2CAddr uint16

// UnmarshalText parses the address for both the file and GOLF_* overrides.
func (a *I2CAddr) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(strings.TrimSpace(string(text)), 0, 16)
	if err != nil {
		return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", text, err)
	}
	*a = I2CAddr(v)
	return nil
}

// Default returns the values used for keys missing from the file.
func Default() *Config {
	return &Config{
		GPSSource:             "nmea",
		GPSSerialPort:         "auto",
		GPSBaudRate:           9600,
		GPSDAddr:              "127.0.0.1:2947",
		GPSPollInterval:       1000,
		GPSPollTimeout:        500,
		CourseCatalogue:       "courses.json",
		Players:               []string{"Player 1"},
		MQTTClientIDSession:   "golf-session",
		MQTTClientIDGPS:       "golf-gps",
		MQTTClientIDConsole:   "golf-console",
		TopicGPS:              "golf/gps",
		TopicDrive:            "golf/drive",
		WebServerPort:         8080,
		DisplayUpdateInterval: 500,
	}
}

// PollInterval returns GPS_POLL_INTERVAL as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.GPSPollInterval) * time.Millisecond
}

// DisplayInterval returns DISPLAY_UPDATE_INTERVAL as a duration.
func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}

// PollTimeout returns GPS_POLL_TIMEOUT as a duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.GPSPollTimeout) * time.Millisecond
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file, applies GOLF_* environment overrides
// and validates the result.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides values from GOLF_<KEY> variables. Unset variables
// leave the file value in place.
func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.GPSSource = strings.ToLower(strings.TrimSpace(c.GPSSource))
	c.Players = cleanList(c.Players)
	return nil
}

func cleanList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseMillis(key, value string) (int, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return ms, nil
}

func parseDegrees(key, value string) (float64, error) {
	deg, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return deg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// GPS
	case "GPS_SOURCE":
		c.GPSSource = strings.ToLower(value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate
	case "GPSD_ADDR":
		c.GPSDAddr = value
	case "GPS_POLL_INTERVAL":
		c.GPSPollInterval, err = parseMillis(key, value)
	case "GPS_POLL_TIMEOUT":
		c.GPSPollTimeout, err = parseMillis(key, value)
	case "MOCK_CENTER_LAT":
		c.MockCenterLat, err = parseDegrees(key, value)
	case "MOCK_CENTER_LON":
		c.MockCenterLon, err = parseDegrees(key, value)

	// Storage
	case "COURSE_CATALOGUE":
		c.CourseCatalogue = value
	case "ROUND_ARCHIVE":
		c.RoundArchive = value
	case "PLAYERS":
		c.Players = cleanList(strings.Split(value, ","))

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SESSION":
		c.MQTTClientIDSession = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_DRIVE":
		c.TopicDrive = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		err = c.DisplayI2CAddr.UnmarshalText([]byte(value))
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseMillis(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	switch c.GPSSource {
	case "nmea":
		if c.GPSBaudRate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", c.GPSBaudRate)
		}
	case "gpsd", "mock":
	default:
		return fmt.Errorf("GPS_SOURCE must be nmea, gpsd or mock, got %q", c.GPSSource)
	}
	if c.GPSPollInterval <= 0 {
		return fmt.Errorf("GPS_POLL_INTERVAL must be positive, got %d", c.GPSPollInterval)
	}
	if c.GPSPollTimeout <= 0 || c.GPSPollTimeout >= c.GPSPollInterval {
		return fmt.Errorf("GPS_POLL_TIMEOUT must be between 1 and GPS_POLL_INTERVAL-1, got %d", c.GPSPollTimeout)
	}
	if c.CourseCatalogue == "" {
		return fmt.Errorf("COURSE_CATALOGUE is required")
	}
	if len(c.Players) == 0 {
		return fmt.Errorf("PLAYERS needs at least one name")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if c.DisplayI2CAddr > 0x7F {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be a 7-bit address, got 0x%02X", c.DisplayI2CAddr)
	}
	if c.DisplayI2CAddr != 0 && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

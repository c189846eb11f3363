// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

package config

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values.
type Config struct {
	// Device link
	Transport      string // "tcp" or "serial"
	DeviceHost     string
	DevicePort     int
	DeviceCommand  []byte // optional handshake token, written verbatim before the read
	DeviceTimeout  float64
	SerialPort     string
	SerialBaudRate int

	// Calibration
	SampleInterval     float64 // seconds between device samples
	GraphTotalDuration float64 // seconds shown on the plot
	FlowRateMin        float64 // mL/s
	FlowRateMax        float64 // mL/s
	RawPerUnit         float64 // raw counts per mL

	// MQTT (empty broker disables publishing)
	MQTTBroker          string
	MQTTClientIDAcquire string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string
	MQTTClientIDConsole string

	// Topics
	TopicSamples string
	TopicReport  string

	// Web Server
	WebServerPort int

	// Reports
	ReportDir string

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Mock device
	MockDevicePort   int
	MockDeviceFormat string // "binary", "text" or "json"

	// Logging
	LogLevel       string
	LogDevelopment bool
}

// Package-level singleton, set once by InitGlobal and read with Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration of the reference device: a Pico W on
// localhost:65432 sampling every 0.3 s, plotted over 40 s in 0–50 mL/s.
func Default() *Config {
	return &Config{
		Transport:      "tcp",
		DeviceHost:     "127.0.0.1",
		DevicePort:     65432,
		DeviceTimeout:  2,
		SerialPort:     "/dev/ttyACM0",
		SerialBaudRate: 115200,

		SampleInterval:     0.3,
		GraphTotalDuration: 40,
		FlowRateMin:        0,
		FlowRateMax:        50,
		RawPerUnit:         1.2,

		MQTTClientIDAcquire: "uroflow-acquire",
		MQTTClientIDWeb:     "uroflow-web",
		MQTTClientIDDisplay: "uroflow-display",
		MQTTClientIDConsole: "uroflow-console",

		TopicSamples: "uroflow/samples",
		TopicReport:  "uroflow/report",

		WebServerPort: 8080,
		ReportDir:     "reports",

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,

		MockDevicePort:   65432,
		MockDeviceFormat: "binary",

		LogLevel: "info",
	}
}

// Load reads the KEY=VALUE configuration file and returns a Config struct.
// Keys absent from the file keep their Default values.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// Device link
	case "TRANSPORT":
		if value != "tcp" && value != "serial" {
			return fmt.Errorf("TRANSPORT must be tcp or serial, got %q", value)
		}
		c.Transport = value
	case "DEVICE_HOST":
		c.DeviceHost = value
	case "DEVICE_PORT":
		c.DevicePort, err = parsePort(value)
	case "DEVICE_COMMAND":
		c.DeviceCommand, err = parseCommand(value)
	case "DEVICE_TIMEOUT_SECONDS":
		c.DeviceTimeout, err = parsePositive(value)
	case "DEVICE_SERIAL_PORT":
		c.SerialPort = value
	case "DEVICE_BAUD_RATE":
		c.SerialBaudRate, err = strconv.Atoi(value)

	// Calibration
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = parsePositive(value)
	case "GRAPH_TOTAL_DURATION":
		c.GraphTotalDuration, err = parsePositive(value)
	case "FLOWRATE_MIN":
		c.FlowRateMin, err = parseFinite(value)
	case "FLOWRATE_MAX":
		c.FlowRateMax, err = parseFinite(value)
	case "RAW_PER_UNIT":
		c.RawPerUnit, err = parsePositive(value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_ACQUIRE":
		c.MQTTClientIDAcquire = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_REPORT":
		c.TopicReport = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parsePort(value)

	// Reports
	case "REPORT_DIR":
		c.ReportDir = value

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = strconv.Atoi(value)

	// Mock device
	case "MOCK_DEVICE_PORT":
		c.MockDevicePort, err = parsePort(value)
	case "MOCK_DEVICE_FORMAT":
		switch value {
		case "binary", "text", "json":
			c.MockDeviceFormat = value
		default:
			return fmt.Errorf("MOCK_DEVICE_FORMAT must be binary, text or json, got %q", value)
		}

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_DEVELOPMENT":
		c.LogDevelopment, err = strconv.ParseBool(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	if err != nil {
		return fmt.Errorf("invalid value %q: %w", value, err)
	}
	return nil
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if c.Transport == "tcp" && c.DeviceHost == "" {
		return fmt.Errorf("DEVICE_HOST is required for tcp transport")
	}
	if c.Transport == "serial" && c.SerialPort == "" {
		return fmt.Errorf("DEVICE_SERIAL_PORT is required for serial transport")
	}
	if c.FlowRateMin > c.FlowRateMax {
		return fmt.Errorf("FLOWRATE_MIN (%g) must not exceed FLOWRATE_MAX (%g)", c.FlowRateMin, c.FlowRateMax)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// Timeout returns DeviceTimeout as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.DeviceTimeout * float64(time.Second))
}

func parsePort(value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("port out of range 0-65535")
	}
	return port, nil
}

// parseFinite rejects NaN and ±Inf, which ParseFloat accepts.
func parseFinite(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("must be a finite number")
	}
	return v, nil
}

func parsePositive(value string) (float64, error) {
	v, err := parseFinite(value)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("must be > 0")
	}
	return v, nil
}

// parseCommand accepts a hex token with or without a 0x prefix ("0x5331", "5331").
func parseCommand(value string) ([]byte, error) {
	value = strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if value == "" {
		return nil, nil
	}
	return hex.DecodeString(value)
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
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

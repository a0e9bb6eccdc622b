// Package config loads the climate monitor configuration from defaults, an
// optional YAML file, a .env file and the process environment, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"geckoclient/climate_monitor/climate"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// Storage
	ConnectionString string `yaml:"connection_string"`
	StorageDriver    string `yaml:"storage_driver"` // mongo or sqlite
	Database         string `yaml:"database"`
	Collection       string `yaml:"collection"`
	SQLitePath       string `yaml:"sqlite_path"`

	// Device
	DeviceID         string    `yaml:"device_id"`
	SensorType       string    `yaml:"sensor_type"` // dht11, dht22, sht2x, sim
	SensorPin        int       `yaml:"sensor_pin"`  // BCM GPIO number
	HumidityOffset   float64   `yaml:"humidity_offset"`
	InstallationDate time.Time `yaml:"installation_date"`
	StatusLEDPin     string    `yaml:"status_led_pin"` // physical header pin, empty disables

	// Timing
	PollInterval time.Duration `yaml:"poll_interval"`
	BucketWindow time.Duration `yaml:"bucket_window"`

	// MQTT, disabled when MQTTBroker is empty
	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		StorageDriver:    "mongo",
		Database:         "gecko-client",
		Collection:       "environmental_information",
		SQLitePath:       "instance/climate.db",
		DeviceID:         "sensor-001",
		SensorType:       "dht11",
		SensorPin:        4,
		InstallationDate: time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
		PollInterval:     climate.DefaultInterval,
		BucketWindow:     climate.DefaultWindow,
		MQTTClientID:     "climate-collector",
		MQTTTopicPrefix:  "gecko/climate",
		LogLevel:         "info",
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: reading .env: %v", climate.ErrConfig, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open config file: %v", climate.ErrConfig, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", climate.ErrConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CONNECTION_STRING", &c.ConnectionString)
	str("STORAGE_DRIVER", &c.StorageDriver)
	str("MONGO_DATABASE", &c.Database)
	str("MONGO_COLLECTION", &c.Collection)
	str("SQLITE_PATH", &c.SQLitePath)
	str("DEVICE_ID", &c.DeviceID)
	str("SENSOR_TYPE", &c.SensorType)
	str("STATUS_LED_PIN", &c.StatusLEDPin)
	str("MQTT_BROKER", &c.MQTTBroker)
	str("MQTT_CLIENT_ID", &c.MQTTClientID)
	str("MQTT_TOPIC_PREFIX", &c.MQTTTopicPrefix)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("SENSOR_PIN"); ok && v != "" {
		pin, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SENSOR_PIN: %v", climate.ErrConfig, err)
		}
		c.SensorPin = pin
	}
	if v, ok := lookup("HUMIDITY_OFFSET"); ok && v != "" {
		off, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: HUMIDITY_OFFSET: %v", climate.ErrConfig, err)
		}
		c.HumidityOffset = off
	}
	for key, dst := range map[string]*time.Duration{
		"POLL_INTERVAL": &c.PollInterval,
		"BUCKET_WINDOW": &c.BucketWindow,
	} {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", climate.ErrConfig, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(c.StorageDriver)
	c.SensorType = strings.ToLower(c.SensorType)

	switch c.StorageDriver {
	case "mongo":
		if c.ConnectionString == "" {
			return fmt.Errorf("%w: CONNECTION_STRING must be set as an environment variable", climate.ErrConfig)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH is empty", climate.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", climate.ErrConfig, c.StorageDriver)
	}

	switch c.SensorType {
	case "dht11", "dht22", "sht2x", "sim":
	default:
		return fmt.Errorf("%w: unknown sensor type %q", climate.ErrConfig, c.SensorType)
	}

	if c.DeviceID == "" {
		return fmt.Errorf("%w: DEVICE_ID is empty", climate.ErrConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", climate.ErrConfig, c.PollInterval)
	}
	if c.BucketWindow <= 0 {
		return fmt.Errorf("%w: bucket window must be positive, got %s", climate.ErrConfig, c.BucketWindow)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: LOG_LEVEL: %v", climate.ErrConfig, err)
	}
	return l, nil
}

// Metadata is the bucket metadata recorded for this device.
func (c *Config) Metadata() climate.Metadata {
	return climate.Metadata{
		SensorType:       strings.ToUpper(c.SensorType),
		InstallationDate: c.InstallationDate,
	}
}

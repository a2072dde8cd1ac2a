// Package gateway exposes a PortSession over HTTP, WebSocket and MQTT.
package gateway

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the gateway configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	ADS     ADSConfig     `yaml:"ads"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string     `yaml:"host"`
	Port int        `yaml:"port"`
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// ADSConfig contains the router and device connection configuration
type ADSConfig struct {
	Target         string `yaml:"target"`   // router address, host:port
	SubPort        uint16 `yaml:"sub_port"` // device sub-port, e.g. 851
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MQTTConfig contains the MQTT publisher configuration
type MQTTConfig struct {
	Enabled    bool      `yaml:"enabled"`
	Broker     string    `yaml:"broker"`
	Port       int       `yaml:"port"`
	ClientID   string    `yaml:"client_id"`
	Username   string    `yaml:"username"`
	Password   string    `yaml:"password"`
	UseTLS     bool      `yaml:"use_tls"`
	RootTopic  string    `yaml:"root_topic"`
	IntervalMs int       `yaml:"interval_ms"`
	Tags       []TagSpec `yaml:"tags"`
}

// TagSpec names one symbol the MQTT publisher polls.
type TagSpec struct {
	Symbol string `yaml:"symbol"`
	Size   uint32 `yaml:"size"`
	Topic  string `yaml:"topic"` // defaults to the symbol name
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: false,
			},
		},
		ADS: ADSConfig{
			Target:         "localhost:48898",
			SubPort:        851,
			TimeoutSeconds: 5,
		},
		MQTT: MQTTConfig{
			Enabled:    false,
			Broker:     "localhost",
			Port:       1883,
			ClientID:   "goadsym-gateway",
			RootTopic:  "goadsym",
			IntervalMs: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.ADS.Target == "" {
		return fmt.Errorf("ADS target address is required")
	}

	if c.ADS.TimeoutSeconds < 1 {
		return fmt.Errorf("ADS timeout must be at least 1 second")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("MQTT broker address is required when MQTT is enabled")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			return fmt.Errorf("invalid MQTT port: %d", c.MQTT.Port)
		}
		if c.MQTT.IntervalMs < 10 {
			return fmt.Errorf("MQTT interval must be at least 10 ms")
		}
		for i, tag := range c.MQTT.Tags {
			if tag.Symbol == "" {
				return fmt.Errorf("MQTT tag %d: symbol name is required", i)
			}
			if tag.Size == 0 {
				return fmt.Errorf("MQTT tag %q: size is required", tag.Symbol)
			}
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// Address returns the server address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Timeout returns the ADS timeout as a time.Duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ADS.TimeoutSeconds) * time.Second
}

// Interval returns the MQTT polling interval as a time.Duration
func (c *MQTTConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// SaveExample saves an example configuration file
func SaveExample(filename string) error {
	config := DefaultConfig()
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

package gateway

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  host: 127.0.0.1
  port: 9090
ads:
  target: plc.local:48898
  sub_port: 852
  timeout_seconds: 10
mqtt:
  enabled: true
  broker: broker.local
  port: 1883
  interval_ms: 500
  tags:
    - symbol: Main.counter
      size: 4
      topic: counters/main
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
	assert.Equal(t, "plc.local:48898", cfg.ADS.Target)
	assert.Equal(t, uint16(852), cfg.ADS.SubPort)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.MQTT.Interval())
	require.Len(t, cfg.MQTT.Tags, 1)
	assert.Equal(t, "Main.counter", cfg.MQTT.Tags[0].Symbol)
	assert.Equal(t, uint32(4), cfg.MQTT.Tags[0].Size)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"missing target", func(c *Config) { c.ADS.Target = "" }},
		{"zero timeout", func(c *Config) { c.ADS.TimeoutSeconds = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"mqtt missing broker", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker = ""
		}},
		{"mqtt tag without size", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Tags = []TagSpec{{Symbol: "Main.counter"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveExampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	require.NoError(t, SaveExample(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, want.Address(), cfg.Address())
	assert.Equal(t, want.ADS, cfg.ADS)
	assert.Equal(t, want.Logging, cfg.Logging)
	assert.Equal(t, want.MQTT.Enabled, cfg.MQTT.Enabled)
}

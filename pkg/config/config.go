package config

import (
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	LogLevel      logrus.Level  `json:"log_level"`
	ScanTimeout   time.Duration `json:"scan_timeout"`
	DeviceTimeout time.Duration `json:"device_timeout"`
	OutputFormat  string        `json:"output_format"`

	// Bridge Service tuning; struct-tag defaults applied by DefaultConfig via
	// mcuadros/go-defaults so a zero-value Config loaded from a partial file
	// still ends up with sane bounds.
	DiscoveryInterval   time.Duration `json:"discovery_interval" default:"30s"`
	DiscoveryWindow     time.Duration `json:"discovery_window" default:"5s"`
	MonitorInterval     time.Duration `json:"monitor_interval" default:"10s"`
	ReconnectCooldown   time.Duration `json:"reconnect_cooldown" default:"10s"`
	ReconnectMaxAttempts int          `json:"reconnect_max_attempts" default:"5"`
	ConnectTimeout      time.Duration `json:"connect_timeout" default:"30s"`
	BLEWriteChunkSize   int           `json:"ble_write_chunk_size" default:"20"`
	PTYReadBufferSize   int           `json:"pty_read_buffer_size" default:"8192"`
	PTYWriteBufferSize  int           `json:"pty_write_buffer_size" default:"8192"`
	EventBusCapacity    int           `json:"event_bus_capacity" default:"256"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	c := &Config{
		LogLevel:      logrus.InfoLevel,
		ScanTimeout:   5 * time.Second,
		DeviceTimeout: 30 * time.Second,
		OutputFormat:  "table", // table, json
	}
	defaults.SetDefaults(c)
	return c
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

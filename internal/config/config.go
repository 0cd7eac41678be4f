package config

import "time"

// Config is the exporter configuration.
type Config struct {
	Homee      HomeeConfig      `yaml:"homee"`
	Connection ConnectionConfig `yaml:"connection"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// HomeeConfig identifies the hub and how to authenticate.
type HomeeConfig struct {
	URL              string            `yaml:"url"`          // Hub base URL (http, https, ws or wss)
	AccessToken      string            `yaml:"access_token"` // Used as is when set
	Username         string            `yaml:"username"`
	Password         string            `yaml:"password"`
	DeviceName       string            `yaml:"device_name"` // Name registered with the hub on token requests
	DeviceID         string            `yaml:"device_id"`   // Hardware ID registered with the hub; generated if empty
	Subprotocol      string            `yaml:"subprotocol"`
	Headers          map[string]string `yaml:"headers"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
}

// ConnectionConfig controls the WebSocket lifecycle.
type ConnectionConfig struct {
	PingInterval    time.Duration   `yaml:"ping_interval"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	CloseTimeout    time.Duration   `yaml:"close_timeout"`
	ReadLimit       int64           `yaml:"read_limit"`
	InitialRequests []string        `yaml:"initial_requests"` // nil = default snapshot requests, [] = none
	ResyncInterval  *time.Duration  `yaml:"resync_interval"`  // GET:nodes period while open; 0 = off, unset = default
	Reconnect       ReconnectConfig `yaml:"reconnect"`
}

// Resync returns the configured resync interval, or the default when unset.
func (c ConnectionConfig) Resync() time.Duration {
	if c.ResyncInterval == nil {
		return DefaultResyncInterval
	}
	return *c.ResyncInterval
}

// ReconnectConfig bounds reconnection after an unintended close.
type ReconnectConfig struct {
	MaxAttempts *int          `yaml:"max_attempts"` // 0 = fail-stop; unset = default
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	StableAfter time.Duration `yaml:"stable_after"` // Open time that restores the full budget; 0 = 2x ping_interval
}

// Attempts returns the configured attempt count, or the default when unset.
func (r ReconnectConfig) Attempts() int {
	if r.MaxAttempts == nil {
		return DefaultReconnectAttempts
	}
	return *r.MaxAttempts
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Address   string `yaml:"address"` // Bind address, empty = all interfaces
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	OnlyGroup int    `yaml:"only_group"` // Export only nodes in this group; 0 = all
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

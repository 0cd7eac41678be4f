package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSubprotocol        = "v2"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultDeviceName         = "homee-exporter"
	DefaultPingInterval       = 30 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultCloseTimeout       = 2 * time.Second
	DefaultReadLimit          = 16 << 20
	DefaultResyncInterval     = 5 * time.Minute
	DefaultReconnectAttempts  = 3
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// DefaultInitialRequests ask the hub for a full snapshot after connecting.
var DefaultInitialRequests = []string{"GET:nodes", "GET:relationships"}

func (c *Config) applyDefaults() {
	// Homee defaults
	if c.Homee.Subprotocol == "" {
		c.Homee.Subprotocol = DefaultSubprotocol
	}
	if c.Homee.HandshakeTimeout == 0 {
		c.Homee.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Homee.DeviceName == "" {
		c.Homee.DeviceName = DefaultDeviceName
	}

	// Connection defaults
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.CloseTimeout == 0 {
		c.Connection.CloseTimeout = DefaultCloseTimeout
	}
	if c.Connection.ReadLimit == 0 {
		c.Connection.ReadLimit = DefaultReadLimit
	}
	if c.Connection.InitialRequests == nil {
		c.Connection.InitialRequests = append([]string(nil), DefaultInitialRequests...)
	}
	if c.Connection.ResyncInterval == nil {
		interval := DefaultResyncInterval
		c.Connection.ResyncInterval = &interval
	}

	// Reconnect defaults
	if c.Connection.Reconnect.MaxAttempts == nil {
		attempts := DefaultReconnectAttempts
		c.Connection.Reconnect.MaxAttempts = &attempts
	}
	if c.Connection.Reconnect.BaseDelay == 0 {
		c.Connection.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.Reconnect.MaxDelay == 0 {
		c.Connection.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

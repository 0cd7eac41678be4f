package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Homee.validate("homee"); err != nil {
		return err
	}
	if err := c.Connection.validate("connection"); err != nil {
		return err
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if c.Metrics.OnlyGroup < 0 {
		return fmt.Errorf("metrics.only_group must be >= 0, got %d", c.Metrics.OnlyGroup)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (h *HomeeConfig) validate(prefix string) error {
	if h.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	u, err := url.Parse(h.URL)
	if err != nil {
		return fmt.Errorf("%s.url is invalid: %w", prefix, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%s.url must use http, https, ws or wss, got %q", prefix, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s.url has no host", prefix)
	}

	if h.AccessToken == "" && (h.Username == "" || h.Password == "") {
		return fmt.Errorf("%s.access_token or %s.username and %s.password are required", prefix, prefix, prefix)
	}
	if h.Subprotocol == "" {
		return fmt.Errorf("%s.subprotocol is required", prefix)
	}
	if h.HandshakeTimeout <= 0 {
		return fmt.Errorf("%s.handshake_timeout must be > 0", prefix)
	}
	return nil
}

func (c *ConnectionConfig) validate(prefix string) error {
	if c.PingInterval <= 0 {
		return fmt.Errorf("%s.ping_interval must be > 0, got %v", prefix, c.PingInterval)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%s.write_timeout must be > 0", prefix)
	}
	if c.CloseTimeout <= 0 {
		return fmt.Errorf("%s.close_timeout must be > 0", prefix)
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("%s.read_limit must be >= 0", prefix)
	}
	if c.Resync() < 0 {
		return fmt.Errorf("%s.resync_interval must be >= 0, got %v", prefix, c.Resync())
	}

	r := c.Reconnect
	if r.Attempts() < 0 {
		return fmt.Errorf("%s.reconnect.max_attempts must be >= 0, got %d", prefix, r.Attempts())
	}
	if r.StableAfter < 0 {
		return fmt.Errorf("%s.reconnect.stable_after must be >= 0, got %v", prefix, r.StableAfter)
	}
	if r.Attempts() > 0 {
		if r.BaseDelay <= 0 {
			return errors.New(prefix + ".reconnect.base_delay must be > 0")
		}
		if r.MaxDelay < r.BaseDelay {
			return fmt.Errorf("%s.reconnect.max_delay (%v) cannot be less than base_delay (%v)", prefix, r.MaxDelay, r.BaseDelay)
		}
	}
	return nil
}

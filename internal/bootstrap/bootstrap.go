package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bioharz/homee-exporter/internal/auth"
	"github.com/bioharz/homee-exporter/internal/config"
	"github.com/bioharz/homee-exporter/internal/connection"
	"github.com/bioharz/homee-exporter/internal/router"
)

// NewLogger builds a text or JSON logger at the configured level.
func NewLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return router.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConnectionURL returns the WebSocket URL for the hub, requesting an access
// token first when only credentials are configured.
func ConnectionURL(ctx context.Context, cfg config.HomeeConfig, logger *slog.Logger) (string, error) {
	if cfg.AccessToken != "" {
		return auth.ConnectionURL(cfg.URL, cfg.AccessToken)
	}
	return requestConnectionURL(ctx, cfg, logger)
}

// URLRefresh returns a source that requests a new access token with the
// configured credentials, or nil when none are configured.
func URLRefresh(cfg config.HomeeConfig, logger *slog.Logger) connection.URLSource {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		return requestConnectionURL(ctx, cfg, logger)
	}
}

func requestConnectionURL(ctx context.Context, cfg config.HomeeConfig, logger *slog.Logger) (string, error) {
	client := auth.NewClient(cfg.URL, logger, auth.WithDevice(cfg.DeviceName, cfg.DeviceID))

	t, err := client.RequestToken(ctx, auth.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("obtain access token: %w", err)
	}

	return auth.ConnectionURL(cfg.URL, t.AccessToken)
}

// ControllerConfig maps the configuration onto the connection controller.
func ControllerConfig(cfg *config.Config, url string) connection.ControllerConfig {
	cc := connection.DefaultControllerConfig()

	cc.Client.URL = url
	cc.Client.Subprotocol = cfg.Homee.Subprotocol
	cc.Client.Headers = cfg.Homee.Headers
	cc.Client.HandshakeTimeout = cfg.Homee.HandshakeTimeout
	cc.Client.WriteTimeout = cfg.Connection.WriteTimeout
	cc.Client.ReadLimit = cfg.Connection.ReadLimit

	cc.PingInterval = cfg.Connection.PingInterval
	cc.CloseTimeout = cfg.Connection.CloseTimeout
	cc.InitialRequests = cfg.Connection.InitialRequests
	cc.Resync.Interval = cfg.Connection.Resync()

	cc.Reconnect = connection.ReconnectConfig{
		MaxAttempts: cfg.Connection.Reconnect.Attempts(),
		BaseWait:    cfg.Connection.Reconnect.BaseDelay,
		MaxWait:     cfg.Connection.Reconnect.MaxDelay,
		StableAfter: cfg.Connection.Reconnect.StableAfter,
	}

	return cc
}

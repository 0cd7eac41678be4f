// Package auth obtains access tokens from a homee hub.
//
// The hub issues a token for a username and the SHA-512 hex digest of the
// password. The token is passed to the WebSocket endpoint as the
// access_token query parameter.
package auth

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bioharz/homee-exporter/internal/version"
)

// Device registration values sent with a token request.
const (
	deviceOS   = "5" // Linux
	deviceType = "3" // Server
	deviceApp  = "1" // homee
)

// ConnectionPath is the hub's WebSocket endpoint.
const ConnectionPath = "/connection"

// TokenPath is the hub's token endpoint.
const TokenPath = "/access_token"

// ErrUnauthorized is returned when the hub rejects the credentials.
var ErrUnauthorized = errors.New("hub rejected credentials")

// Credentials identify a hub user.
type Credentials struct {
	Username string
	Password string // Plain text; hashed before sending
}

// Token is an access token issued by the hub.
type Token struct {
	AccessToken string
	UserID      int64
	DeviceID    int64
	ExpiresAt   time.Time // Zero if the hub did not report an expiry
}

// Client requests tokens from one hub.
type Client struct {
	baseURL    string
	httpClient *http.Client
	deviceName string
	hardwareID string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDevice sets the device name and hardware ID registered with the hub.
// An empty hardware ID keeps the generated one.
func WithDevice(name, hardwareID string) Option {
	return func(c *Client) {
		if name != "" {
			c.deviceName = name
		}
		if hardwareID != "" {
			c.hardwareID = hardwareID
		}
	}
}

// NewClient creates a token client for the hub at baseURL
// (http, https, ws or wss scheme).
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		deviceName: version.Name,
		hardwareID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HardwareID returns the hardware ID registered with the hub.
func (c *Client) HardwareID() string {
	return c.hardwareID
}

// RequestToken registers this device and returns a new access token.
func (c *Client) RequestToken(ctx context.Context, creds Credentials) (*Token, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	endpoint, err := TokenURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("device_name", c.deviceName)
	form.Set("device_hardware_id", c.hardwareID)
	form.Set("device_os", deviceOS)
	form.Set("device_type", deviceType)
	form.Set("device_app", deviceApp)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(creds.Username, HashPassword(creds.Password))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	token, err := ParseToken(string(body), time.Now())
	if err != nil {
		return nil, err
	}

	c.logger.Info("obtained access token",
		"user", creds.Username,
		"device_id", token.DeviceID,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

// ParseToken parses the hub's form-encoded token response. expires is
// relative to now.
func ParseToken(body string, now time.Time) (*Token, error) {
	values, err := url.ParseQuery(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}

	token := &Token{AccessToken: values.Get("access_token")}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	// The remaining fields are informational.
	if v, err := strconv.ParseInt(values.Get("user_id"), 10, 64); err == nil {
		token.UserID = v
	}
	if v, err := strconv.ParseInt(values.Get("device_id"), 10, 64); err == nil {
		token.DeviceID = v
	}
	if v, err := strconv.ParseInt(values.Get("expires"), 10, 64); err == nil && v > 0 {
		token.ExpiresAt = now.Add(time.Duration(v) * time.Second)
	}

	return token, nil
}

// HashPassword returns the hex SHA-512 digest the hub expects as password.
func HashPassword(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}

// TokenURL returns the token endpoint for a hub base URL.
func TokenURL(base string) (string, error) {
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = TokenPath
	u.RawQuery = ""
	return u.String(), nil
}

// ConnectionURL returns the WebSocket endpoint for a hub base URL. A path
// already present on base is kept. token is added as access_token when set.
func ConnectionURL(base, token string) (string, error) {
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = ConnectionPath
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func parseBase(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}

	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("hub url %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("hub url %q has no host", base)
	}
	return u, nil
}

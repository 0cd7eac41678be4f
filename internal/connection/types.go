package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bioharz/homee-exporter/internal/poller"
)

// Errors
var (
	ErrNotConnected        = errors.New("not connected")
	ErrAlreadyConnected    = errors.New("already connected")
	ErrConnectionLost      = errors.New("connection lost")
	ErrStopped             = errors.New("controller stopped")
	ErrSubprotocolRejected = errors.New("server did not accept subprotocol")
	ErrInvalidPeriod       = errors.New("keep-alive period must be positive")
)

// HandshakeError reports a connect attempt that did not complete negotiation.
type HandshakeError struct {
	URL         string
	Subprotocol string
	Status      int // HTTP status of the upgrade response, 0 if none
	Err         error
}

func (e *HandshakeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("handshake with %s (subprotocol %q) failed with status %d: %v", e.URL, e.Subprotocol, e.Status, e.Err)
	}
	return fmt.Sprintf("handshake with %s (subprotocol %q) failed: %v", e.URL, e.Subprotocol, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// TransportError reports a socket-level failure on an open connection.
type TransportError struct {
	Session string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on session %s: %v", e.Session, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of the controller's connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CloseRecord describes how a connection ended.
type CloseRecord struct {
	Session  string    `json:"session"`
	Code     int       `json:"code"`
	Reason   string    `json:"reason"`
	Remote   bool      `json:"remote"` // True if the peer initiated the close
	ClosedAt time.Time `json:"closed_at"`
}

// Close codes used by the controller.
const (
	CloseNormal     = 1000
	CloseGoingAway  = 1001 // Process exiting
	CloseAbnormal   = 1006 // Recorded for transport errors, never sent
	ExitCloseReason = "process exiting"
)

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string            // WebSocket URL including access_token (e.g., ws://homee:7681/connection?access_token=...)
	Subprotocol      string            // Requested Sec-WebSocket-Protocol (e.g., "v2")
	Headers          map[string]string // Extra handshake headers
	HandshakeTimeout time.Duration     // Max time to complete the upgrade
	WriteTimeout     time.Duration     // Write deadline for sends, pings and close frames
	ReadLimit        int64             // Max inbound message size (0 = unlimited)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Subprotocol:      "v2",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        16 << 20, // full node lists on large installations run to megabytes
	}
}

// ReconnectConfig bounds automatic reconnection after an unintended close.
type ReconnectConfig struct {
	MaxAttempts int           // 0 = fail-stop: surface ErrConnectionLost on first unintended close
	BaseWait    time.Duration // Wait before the first attempt, doubled per attempt
	MaxWait     time.Duration // Cap on the wait between attempts
	StableAfter time.Duration // Open time after which a loss gets a fresh budget (0 = 2x PingInterval)
}

// ControllerConfig configures the lifecycle controller.
type ControllerConfig struct {
	Client          ClientConfig
	PingInterval    time.Duration // Keep-alive period, must be > 0
	CloseTimeout    time.Duration // Max wait for the peer to acknowledge a local close
	InitialRequests []string      // Text frames sent after every successful connect
	Resync          poller.Config // Periodic snapshot requests while open
	Reconnect       ReconnectConfig
}

// DefaultControllerConfig returns sensible defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Client:          DefaultClientConfig(),
		PingInterval:    30 * time.Second,
		CloseTimeout:    2 * time.Second,
		InitialRequests: []string{"GET:nodes", "GET:relationships"},
		Resync:          poller.DefaultConfig(),
		Reconnect: ReconnectConfig{
			MaxAttempts: 3,
			BaseWait:    1 * time.Second,
			MaxWait:     30 * time.Second,
		},
	}
}

// URLSource returns a fresh connection URL, for example one carrying a newly
// issued access token.
type URLSource func(ctx context.Context) (string, error)

// MessageRouter receives every inbound payload.
type MessageRouter interface {
	Route(data []byte)
}

// Observer is notified of lifecycle events. Implementations must not block.
type Observer interface {
	StateChanged(state string)
	ReconnectAttempted()
	KeepAliveFailed()
	HandlerPanicked()
}

type noopObserver struct{}

func (noopObserver) StateChanged(string) {}
func (noopObserver) ReconnectAttempted() {}
func (noopObserver) KeepAliveFailed()    {}
func (noopObserver) HandlerPanicked()    {}

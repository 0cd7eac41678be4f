package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives the events of one connection. Exactly one of OnClose or
// OnError is delivered, after which the connection is finished.
type Handler interface {
	OnMessage(data []byte)
	OnClose(code int, reason string, remote bool)
	OnError(err error)
}

// Client represents a single WebSocket connection to the hub.
type Client interface {
	// Connect performs the handshake. It does not start reading.
	Connect(ctx context.Context) error

	// Listen starts the read loop that feeds the Handler.
	Listen()

	// Send writes a text frame.
	Send(data []byte) error

	// Ping writes a ping control frame.
	Ping() error

	// Close sends a close frame without waiting for the peer's reply.
	Close(code int, reason string) error

	// Terminate closes the underlying socket immediately.
	Terminate() error

	// Subprotocol returns the negotiated subprotocol.
	Subprotocol() string

	// LastPong returns when the last pong was received.
	LastPong() time.Time
}

// client implements the Client interface.
type client struct {
	cfg     ClientConfig
	handler Handler
	logger  *slog.Logger

	conn *websocket.Conn

	// Write serialization
	writeMu sync.Mutex

	// State
	mu          sync.RWMutex
	connected   bool
	lastPongAt  time.Time
	closeSent   bool
	closeCode   int
	closeReason string
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, handler Handler, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Connect establishes the WebSocket connection.
func (c *client) Connect(ctx context.Context) error {
	header := http.Header{}
	for k, v := range c.cfg.Headers {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if c.cfg.Subprotocol != "" {
		dialer.Subprotocols = []string{c.cfg.Subprotocol}
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		herr := &HandshakeError{URL: redactURL(c.cfg.URL), Subprotocol: c.cfg.Subprotocol, Err: err}
		if resp != nil {
			herr.Status = resp.StatusCode
		}
		return herr
	}

	if c.cfg.Subprotocol != "" && conn.Subprotocol() != c.cfg.Subprotocol {
		conn.Close()
		return &HandshakeError{URL: redactURL(c.cfg.URL), Subprotocol: c.cfg.Subprotocol, Err: ErrSubprotocolRejected}
	}

	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	// Control replies go through writeMu like every other write.
	conn.SetPingHandler(func(data string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			c.logger.Debug("failed to send pong", "error", err)
		}
		return nil
	})

	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPongAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	conn.SetCloseHandler(func(code int, _ string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		msg := websocket.FormatCloseMessage(code, "")
		if code == websocket.CloseNoStatusReceived {
			msg = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		}
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
		return nil
	})

	c.logger.Debug("websocket connected",
		"url", redactURL(c.cfg.URL),
		"subprotocol", conn.Subprotocol(),
	)

	return nil
}

// Listen starts the read loop.
func (c *client) Listen() {
	go c.readLoop()
}

// Send writes a text frame to the connection.
func (c *client) Send(data []byte) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Ping writes a ping control frame.
func (c *client) Ping() error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
}

// Close sends a close frame. The read loop reports the outcome.
func (c *client) Close(code int, reason string) error {
	c.mu.Lock()
	if !c.connected || c.closeSent {
		c.mu.Unlock()
		return nil
	}
	c.closeSent = true
	c.closeCode = code
	c.closeReason = reason
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.cfg.WriteTimeout),
	)
}

// Terminate closes the socket without a handshake.
func (c *client) Terminate() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Subprotocol returns the negotiated subprotocol.
func (c *client) Subprotocol() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return ""
	}
	return c.conn.Subprotocol()
}

// LastPong returns when the last pong was received.
func (c *client) LastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPongAt
}

func (c *client) activeConn() (*websocket.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// readLoop reads frames until the connection ends and reports how it ended.
func (c *client) readLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(conn, err)
			return
		}
		c.handler.OnMessage(data)
	}
}

// finish marks the connection done, releases the socket and notifies the handler.
func (c *client) finish(conn *websocket.Conn, err error) {
	c.mu.Lock()
	c.connected = false
	closeSent := c.closeSent
	code, reason := c.closeCode, c.closeReason
	c.mu.Unlock()

	conn.Close()

	// 1006 is never sent on the wire; gorilla reports a dropped socket with it.
	var ce *websocket.CloseError
	isClose := errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure

	switch {
	case isClose:
		c.handler.OnClose(ce.Code, ce.Text, !closeSent)
	case closeSent:
		// Socket torn down after our close frame, before or without the echo.
		c.handler.OnClose(code, reason, false)
	default:
		c.handler.OnError(err)
	}
}

// redactURL hides the access token in logs and errors.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bioharz/homee-exporter/internal/poller"
	"github.com/bioharz/homee-exporter/internal/shutdown"
)

// Controller owns the single connection to the hub and its keep-alive timer.
type Controller struct {
	cfg      ControllerConfig
	router   MessageRouter
	hooks    *shutdown.Hooks
	observer Observer
	refresh  URLSource
	logger   *slog.Logger

	// Output to the owner
	errors chan error
	lost   chan struct{} // Closed on the first terminal loss

	// Reconnect goroutines
	wg sync.WaitGroup

	mu              sync.Mutex
	state           State
	gen             uint64 // Incremented per connect attempt; stale callbacks are ignored
	client          Client
	session         string
	done            chan struct{} // Closed when the current connection ends
	exitHook        *shutdown.Handle
	keepalive       *Scheduler
	resync          *poller.Poller
	openedAt        time.Time
	localClose      bool
	stopped         bool
	lastClose       *CloseRecord
	lostErr         error
	reconnectCancel context.CancelFunc

	// Reconnect budget, shared by consecutive connections that drop before
	// they are stable.
	attempts int
	backoff  time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	State     string       `json:"state"`
	Session   string       `json:"session,omitempty"`
	LastPong  time.Time    `json:"last_pong,omitempty"`
	LastClose *CloseRecord `json:"last_close,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithURLRefresh sets a source for a new connection URL, consulted when the
// hub rejects the handshake with 401 or 403.
func WithURLRefresh(src URLSource) Option {
	return func(c *Controller) {
		c.refresh = src
	}
}

// NewController creates a controller in the Disconnected state.
// If hooks is nil the controller keeps a private registry that is never run.
func NewController(cfg ControllerConfig, router MessageRouter, hooks *shutdown.Hooks, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if hooks == nil {
		hooks = shutdown.New(logger)
	}

	c := &Controller{
		cfg:      cfg,
		router:   router,
		hooks:    hooks,
		observer: noopObserver{},
		logger:   logger,
		errors:   make(chan error, 16),
		lost:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer.StateChanged(c.state.String())
	return c
}

// Errors returns the channel on which transport errors and ErrConnectionLost
// are surfaced to the owner. The channel is buffered; errors that find it
// full are logged and dropped. A terminal loss is also reported by Lost and
// Err, which never drop.
func (c *Controller) Errors() <-chan error {
	return c.errors
}

// Lost returns a channel that is closed the first time the connection is
// lost for good.
func (c *Controller) Lost() <-chan struct{} {
	return c.lost
}

// Err returns the terminal ErrConnectionLost once Lost is closed, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lostErr
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the ID of the open connection, or "" if none.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return ""
	}
	return c.session
}

// LastClose returns how the previous connection ended, or nil.
func (c *Controller) LastClose() *CloseRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastClose == nil {
		return nil
	}
	rec := *c.lastClose
	return &rec
}

// Status returns a snapshot for health reporting.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state.String()}
	if c.client != nil {
		st.Session = c.session
		st.LastPong = c.client.LastPong()
	}
	if c.lastClose != nil {
		rec := *c.lastClose
		st.LastClose = &rec
	}
	return st
}

// Connect performs one connection attempt.
func (c *Controller) Connect(ctx context.Context) error {
	if c.cfg.PingInterval <= 0 {
		return ErrInvalidPeriod
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	switch c.state {
	case StateConnecting, StateOpen, StateClosing:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.gen++
	gen := c.gen
	c.localClose = false
	clientCfg := c.cfg.Client
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	h := &connHandler{c: c, gen: gen}
	client := NewClient(clientCfg, h, c.logger)

	if err := client.Connect(ctx); err != nil {
		c.mu.Lock()
		c.setStateLocked(StateErrored)
		c.mu.Unlock()
		return err
	}

	session := uuid.NewString()
	logger := c.logger.With("session", session)
	h.session = session

	c.mu.Lock()
	if c.stopped {
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		client.Terminate()
		return ErrStopped
	}
	if c.keepalive != nil {
		logger.Warn("stopping stale keep-alive")
		c.keepalive.Stop()
		c.keepalive = nil
	}
	if c.resync != nil {
		logger.Warn("stopping stale resync poller")
		c.resync.Stop(context.Background())
		c.resync = nil
	}

	c.client = client
	c.session = session
	c.done = make(chan struct{})
	c.exitHook = c.hooks.Register("homee connection "+session, func() {
		c.exitClose(gen)
	})

	ka := NewScheduler(logger)
	if err := ka.Start(c.cfg.PingInterval, c.keepAliveFunc(client)); err != nil {
		c.releaseLocked(CloseAbnormal, err.Error(), false)
		c.setStateLocked(StateErrored)
		c.mu.Unlock()
		client.Terminate()
		return err
	}
	c.keepalive = ka

	if c.cfg.Resync.Enabled() {
		p := poller.New(c.cfg.Resync, client, logger)
		if err := p.Start(context.Background()); err != nil {
			logger.Warn("resync poller not started", "error", err)
		} else {
			c.resync = p
		}
	}

	c.openedAt = time.Now()
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	for _, req := range c.cfg.InitialRequests {
		if err := client.Send([]byte(req)); err != nil {
			logger.Warn("failed to send initial request", "request", req, "error", err)
		}
	}

	client.Listen()

	logger.Info("connected to homee",
		"url", redactURL(clientCfg.URL),
		"subprotocol", client.Subprotocol(),
		"ping_interval", c.cfg.PingInterval,
	)

	return nil
}

// Close performs a local, intentional close. It never triggers a reconnect
// and cancels one in progress.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.cancelReconnectLocked()
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.localClose = true
	c.setStateLocked(StateClosing)
	client, done := c.client, c.done
	c.mu.Unlock()

	err := client.Close(CloseNormal, "")

	select {
	case <-done:
		return err
	case <-time.After(c.cfg.CloseTimeout):
	}

	c.logger.Warn("close not acknowledged, terminating", "timeout", c.cfg.CloseTimeout)
	client.Terminate()

	select {
	case <-done:
	case <-time.After(c.cfg.CloseTimeout):
		c.logger.Error("connection did not finish after terminate")
	}
	return err
}

// Stop closes the connection, prevents further reconnects and waits for
// reconnect goroutines to exit.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	err := c.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("controller stop timed out")
		return ctx.Err()
	}

	c.logger.Info("connection controller stopped")
	return err
}

// Run connects and holds the connection until ctx is cancelled or the
// connection is lost for good. Transport errors are logged as they surface.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		if errors.Is(err, ErrInvalidPeriod) || errors.Is(err, ErrAlreadyConnected) || errors.Is(err, ErrStopped) {
			return err
		}
		c.logger.Warn("initial connect failed", "error", err)
		c.refreshURL(ctx, err)
		c.scheduleReconnect(err)
	}

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*c.cfg.CloseTimeout)
			defer cancel()
			return c.Stop(stopCtx)

		case <-c.lost:
			return c.Err()

		case err := <-c.errors:
			if errors.Is(err, ErrConnectionLost) {
				return err
			}
			c.logger.Error("connection error", "error", err)
		}
	}
}

// onClosed handles the end of a connection by close frame.
func (c *Controller) onClosed(gen uint64, code int, reason string, remote bool) {
	c.mu.Lock()
	if gen != c.gen || c.client == nil {
		c.mu.Unlock()
		return
	}
	local := c.localClose
	session := c.session
	c.releaseLocked(code, reason, remote)
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	c.logger.Info("connection closed",
		"session", session,
		"code", code,
		"reason", reason,
		"remote", remote,
		"local_close", local,
	)

	if !local {
		c.scheduleReconnect(fmt.Errorf("closed with code %d: %q", code, reason))
	}
}

// onError handles a transport failure. The error is always surfaced.
func (c *Controller) onError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.client == nil {
		c.mu.Unlock()
		return
	}
	local := c.localClose
	session := c.session
	c.releaseLocked(CloseAbnormal, err.Error(), true)
	c.setStateLocked(StateErrored)
	c.mu.Unlock()

	terr := &TransportError{Session: session, Err: err}
	c.logger.Error("transport error", "session", session, "error", err)
	c.surface(terr)

	if !local {
		c.scheduleReconnect(terr)
	}
}

// releaseLocked stops the keep-alive and resync poller, drops the exit hook
// and records the close. Both timers are stopped synchronously: no ping or
// resync request is sent after this returns.
func (c *Controller) releaseLocked(code int, reason string, remote bool) {
	if c.keepalive != nil {
		c.keepalive.Stop()
		c.keepalive = nil
	}
	if c.resync != nil {
		c.resync.Stop(context.Background())
		c.resync = nil
	}
	if c.exitHook != nil {
		c.exitHook.Deregister()
		c.exitHook = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}

	c.lastClose = &CloseRecord{
		Session:  c.session,
		Code:     code,
		Reason:   reason,
		Remote:   remote,
		ClosedAt: time.Now(),
	}
	c.client = nil

	// A connection that stayed up long enough earns the next loss a fresh
	// budget. One that dropped early keeps counting against the old one.
	if !c.openedAt.IsZero() && time.Since(c.openedAt) >= c.stableAfter() {
		c.attempts = 0
		c.backoff = 0
	}
	c.openedAt = time.Time{}
}

func (c *Controller) stableAfter() time.Duration {
	if c.cfg.Reconnect.StableAfter > 0 {
		return c.cfg.Reconnect.StableAfter
	}
	return 2 * c.cfg.PingInterval
}

// exitClose is run by the process shutdown sequence. It sends a going-away
// close and tears the socket down without waiting for the peer.
func (c *Controller) exitClose(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.client == nil {
		c.mu.Unlock()
		return
	}
	c.localClose = true
	c.stopped = true
	c.cancelReconnectLocked()
	c.setStateLocked(StateClosing)
	client := c.client
	c.mu.Unlock()

	if err := client.Close(CloseGoingAway, ExitCloseReason); err != nil {
		c.logger.Debug("exit close frame not sent", "error", err)
	}
	client.Terminate()
}

func (c *Controller) scheduleReconnect(cause error) {
	maxAttempts := c.cfg.Reconnect.MaxAttempts
	if maxAttempts <= 0 {
		c.fail(fmt.Errorf("%w: %v", ErrConnectionLost, cause))
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.cancelReconnectLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.reconnectCancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go c.reconnect(ctx, maxAttempts, cause)
}

// reconnect attempts to reconnect with exponential backoff until the budget
// of maxAttempts is spent. Attempts and backoff carry over from earlier
// losses until a connection has been stable.
func (c *Controller) reconnect(ctx context.Context, maxAttempts int, cause error) {
	defer c.wg.Done()

	for {
		attempt, wait, ok := c.nextAttempt(maxAttempts)
		if !ok {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		c.observer.ReconnectAttempted()
		c.logger.Info("attempting reconnection",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"wait", wait,
		)

		err := c.Connect(ctx)
		if err == nil {
			c.logger.Info("reconnected", "attempt", attempt)
			return
		}
		if errors.Is(err, ErrAlreadyConnected) || errors.Is(err, ErrStopped) || ctx.Err() != nil {
			return
		}

		c.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
		c.refreshURL(ctx, err)
	}

	c.mu.Lock()
	c.attempts, c.backoff = 0, 0
	c.mu.Unlock()

	c.logger.Error("reconnection attempts exhausted", "attempts", maxAttempts)
	c.fail(fmt.Errorf("%w after %d attempts: %v", ErrConnectionLost, maxAttempts, cause))
}

// nextAttempt takes one attempt from the budget and returns its number and
// the wait before it.
func (c *Controller) nextAttempt(maxAttempts int) (int, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempts >= maxAttempts {
		return 0, 0, false
	}
	c.attempts++

	wait := c.backoff
	if wait <= 0 {
		wait = c.cfg.Reconnect.BaseWait
	}

	// Exponential backoff
	c.backoff = wait * 2
	if c.backoff > c.cfg.Reconnect.MaxWait {
		c.backoff = c.cfg.Reconnect.MaxWait
	}
	return c.attempts, wait, true
}

// refreshURL asks the URL source for a new connection URL when the hub
// rejected the credentials in the current one.
func (c *Controller) refreshURL(ctx context.Context, err error) {
	var herr *HandshakeError
	if c.refresh == nil || !errors.As(err, &herr) {
		return
	}
	if herr.Status != http.StatusUnauthorized && herr.Status != http.StatusForbidden {
		return
	}

	url, rerr := c.refresh(ctx)
	if rerr != nil {
		c.logger.Warn("failed to refresh connection url", "status", herr.Status, "error", rerr)
		return
	}

	c.mu.Lock()
	c.cfg.Client.URL = url
	c.mu.Unlock()

	c.logger.Info("connection url refreshed", "status", herr.Status, "url", redactURL(url))
}

func (c *Controller) cancelReconnectLocked() {
	if c.reconnectCancel != nil {
		c.reconnectCancel()
		c.reconnectCancel = nil
	}
}

func (c *Controller) keepAliveFunc(client Client) func() error {
	return func() error {
		if err := client.Ping(); err != nil {
			c.observer.KeepAliveFailed()
			return err
		}
		return nil
	}
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.observer.StateChanged(s.String())
}

// fail records a terminal loss and surfaces it.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.lostErr == nil {
		c.lostErr = err
		close(c.lost)
	}
	c.mu.Unlock()

	c.surface(err)
}

// surface hands an error to the owner.
func (c *Controller) surface(err error) {
	select {
	case c.errors <- err:
	default:
		c.logger.Error("error channel full, dropping", "error", err)
	}
}

// connHandler binds client callbacks to one connection generation.
type connHandler struct {
	c       *Controller
	gen     uint64
	session string
}

func (h *connHandler) OnMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.c.observer.HandlerPanicked()
			h.c.logger.Error("message handler panicked, dropping message",
				"session", h.session,
				"panic", r,
			)
		}
	}()

	h.c.router.Route(data)
}

func (h *connHandler) OnClose(code int, reason string, remote bool) {
	h.c.onClosed(h.gen, code, reason, remote)
}

func (h *connHandler) OnError(err error) {
	h.c.onError(h.gen, err)
}

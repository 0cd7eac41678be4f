package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInvalidInterval is returned by Start when the interval is not positive.
var ErrInvalidInterval = errors.New("resync interval must be positive")

// Sender writes one request frame to the hub.
type Sender interface {
	Send(data []byte) error
}

// SenderFunc is a function adapter for Sender.
type SenderFunc func([]byte) error

func (f SenderFunc) Send(data []byte) error {
	return f(data)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Resync interval (0 = disabled)
	Requests []string      // Frames sent per cycle (default: GET:nodes)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Requests: []string{"GET:nodes"},
	}
}

// Enabled reports whether the config asks for periodic resyncs.
func (c Config) Enabled() bool {
	return c.Interval > 0 && len(c.Requests) > 0
}

// Poller periodically re-requests hub snapshots over an open connection.
type Poller struct {
	cfg    Config
	sender Sender
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles   atomic.Int64
	failures atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, sender Sender, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:    cfg,
		sender: sender,
		logger: logger,
	}
}

// Start begins the resync loop. The first cycle runs one interval after
// Start, since a fresh connection has already asked for a snapshot.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return ErrInvalidInterval
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Debug("resync poller started",
		"interval", p.cfg.Interval,
		"requests", p.cfg.Requests,
	)

	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
// No request is sent after Stop returns.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("resync poller stopped", "cycles", p.cycles.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycles returns the number of completed resync cycles.
func (p *Poller) Cycles() int64 {
	return p.cycles.Load()
}

// Failures returns the number of requests that could not be sent.
func (p *Poller) Failures() int64 {
	return p.failures.Load()
}

// run is the main resync loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll sends every configured request once.
func (p *Poller) pollAll() {
	for _, req := range p.cfg.Requests {
		if p.ctx.Err() != nil {
			return
		}
		if err := p.sender.Send([]byte(req)); err != nil {
			p.failures.Add(1)
			p.logger.Warn("failed to send resync request",
				"request", req,
				"err", err,
			)
		}
	}

	p.cycles.Add(1)
	p.logger.Debug("resync cycle complete", "requests", len(p.cfg.Requests))
}

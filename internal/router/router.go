package router

import (
	"context"
	"log/slog"
	"sync"
)

// Router classifies raw payloads and hands decoded updates to an Updater.
type Router interface {
	// Route classifies, decodes and dispatches a single payload.
	// Decode failures are logged and the payload is dropped.
	Route(data []byte)

	// Stats returns current router statistics.
	Stats() RouterStats
}

// Option configures a router.
type Option func(*router)

// WithRecorder sets the observer for routing outcomes.
func WithRecorder(rec Recorder) Option {
	return func(r *router) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithDecoders overrides the decode functions.
func WithDecoders(d Decoders) Option {
	return func(r *router) {
		if d.Nodes != nil {
			r.decoders.Nodes = d.Nodes
		}
		if d.Relationships != nil {
			r.decoders.Relationships = d.Relationships
		}
	}
}

// router is the internal implementation.
type router struct {
	cfg      RouterConfig
	updater  Updater
	decoders Decoders
	recorder Recorder
	logger   *slog.Logger

	mu           sync.Mutex
	received     int64
	routed       int64
	decodeErrors int64
	unrecognized int64
}

// NewRouter creates a new Message Router.
func NewRouter(cfg RouterConfig, updater Updater, logger *slog.Logger, opts ...Option) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &router{
		cfg:      cfg,
		updater:  updater,
		decoders: DefaultDecoders(),
		recorder: noopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies and dispatches a single payload.
func (r *router) Route(data []byte) {
	shape := Classify(data)

	r.mu.Lock()
	r.received++
	r.mu.Unlock()
	r.recorder.MessageReceived(shape.String())

	switch shape {
	case ShapeNodeUpdate:
		nodes, err := r.decoders.Nodes(data)
		if err != nil {
			r.decodeFailed(shape, err, len(data))
			return
		}
		r.updater.UpdateMetrics(nodes, r.cfg.OnlyGroup)

	case ShapeRelationshipUpdate:
		rels, err := r.decoders.Relationships(data)
		if err != nil {
			r.decodeFailed(shape, err, len(data))
			return
		}
		r.updater.UpdateRelationships(rels)

	default:
		r.mu.Lock()
		r.unrecognized++
		r.mu.Unlock()
		r.logger.Log(context.Background(), LevelTrace, "skipping unrecognized payload",
			"bytes", len(data),
			"prefix", prefix(data, 32),
		)
		return
	}

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		DecodeErrors:     r.decodeErrors,
		Unrecognized:     r.unrecognized,
	}
}

func (r *router) decodeFailed(shape Shape, err error, size int) {
	r.mu.Lock()
	r.decodeErrors++
	r.mu.Unlock()
	r.recorder.DecodeFailed(shape.String())

	r.logger.Warn("failed to decode payload, dropping",
		"shape", shape.String(),
		"bytes", size,
		"error", err,
	)
}

// prefix returns at most n leading bytes of data for logging.
func prefix(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}

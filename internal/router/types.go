package router

import (
	"log/slog"

	"github.com/bioharz/homee-exporter/internal/model"
)

// LevelTrace sits below slog.LevelDebug for per-message noise.
const LevelTrace = slog.LevelDebug - 4

// Shape is the coarse category of an inbound payload.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeNodeUpdate
	ShapeRelationshipUpdate
)

// String returns the label used in logs and metrics.
func (s Shape) String() string {
	switch s {
	case ShapeNodeUpdate:
		return "nodes"
	case ShapeRelationshipUpdate:
		return "relationships"
	default:
		return "unrecognized"
	}
}

// Updater receives decoded updates. Implementations must not retain
// the slices beyond what they copy into their own state.
type Updater interface {
	// UpdateMetrics forwards decoded nodes; onlyGroup narrows which nodes are exported.
	UpdateMetrics(nodes []model.Node, onlyGroup int)

	// UpdateRelationships forwards decoded group relationships.
	UpdateRelationships(relationships []model.Relationship)
}

// Recorder observes routing outcomes. Labels are Shape.String() values.
type Recorder interface {
	MessageReceived(shape string)
	DecodeFailed(shape string)
}

// Decoders holds the decode functions used for recognized shapes.
type Decoders struct {
	Nodes         func([]byte) ([]model.Node, error)
	Relationships func([]byte) ([]model.Relationship, error)
}

// DefaultDecoders returns the model package decoders.
func DefaultDecoders() Decoders {
	return Decoders{
		Nodes:         model.DecodeNodeUpdate,
		Relationships: model.DecodeRelationshipUpdate,
	}
}

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	OnlyGroup int // Group filter passed through to UpdateMetrics (0 = all nodes)
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64 `json:"messages_received"`
	MessagesRouted   int64 `json:"messages_routed"`
	DecodeErrors     int64 `json:"decode_errors"`
	Unrecognized     int64 `json:"unrecognized"`
}

type noopRecorder struct{}

func (noopRecorder) MessageReceived(string) {}
func (noopRecorder) DecodeFailed(string)    {}

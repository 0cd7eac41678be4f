package metrics

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bioharz/homee-exporter/internal/model"
)

const namespace = "homee"

// Exporter turns hub updates into Prometheus metrics. It implements
// router.Updater, router.Recorder and connection.Observer.
type Exporter struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	attributeValue    *prometheus.GaugeVec
	nodeState         *prometheus.GaugeVec
	nodeInfo          *prometheus.GaugeVec
	groupMembers      *prometheus.GaugeVec
	connectionState   *prometheus.GaugeVec
	reconnects        prometheus.Counter
	keepaliveFailures prometheus.Counter
	handlerPanics     prometheus.Counter
	messages          *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec

	mu        sync.Mutex
	nodes     map[int64]model.Node         // Last snapshot per node
	exported  map[int64]bool               // Nodes with live series
	groups    map[int64]map[int64]struct{} // group ID -> node IDs
	onlyGroup int
	state     string // Current connection state
}

// NewExporter creates an exporter with its own registry, including the Go
// runtime and process collectors.
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		nodes:    make(map[int64]model.Node),
		exported: make(map[int64]bool),
		groups:   make(map[int64]map[int64]struct{}),

		attributeValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "attribute_value",
				Help:      "Current value of a node attribute",
			},
			[]string{"node_id", "node", "attribute_id", "attribute_type", "instance", "unit"},
		),

		nodeState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "node_state",
				Help:      "Node state as reported by the hub (1=available)",
			},
			[]string{"node_id", "node"},
		),

		nodeInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "node_info",
				Help:      "Static node information, always 1",
			},
			[]string{"node_id", "node", "profile", "protocol", "cube_type"},
		),

		groupMembers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "group_members",
				Help:      "Number of nodes related to a group",
			},
			[]string{"group_id"},
		),

		connectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "Connection lifecycle state (1 for the current state)",
			},
			[]string{"state"},
		),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnection attempts",
		}),

		keepaliveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalive_failures_total",
			Help:      "Total number of keep-alive signals that could not be sent",
		}),

		handlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Total number of messages dropped because a handler panicked",
		}),

		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of payloads received by shape",
			},
			[]string{"shape"},
		),

		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Total number of payloads dropped because they failed to decode",
			},
			[]string{"shape"},
		),
	}

	e.registry.MustRegister(
		e.attributeValue,
		e.nodeState,
		e.nodeInfo,
		e.groupMembers,
		e.connectionState,
		e.reconnects,
		e.keepaliveFailures,
		e.handlerPanics,
		e.messages,
		e.decodeErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return e
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// UpdateMetrics records a full node snapshot. Nodes missing from it are
// dropped along with their series. With onlyGroup > 0 only nodes related to
// that group are exported.
func (e *Exporter) UpdateMetrics(nodes []model.Node, onlyGroup int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.onlyGroup = onlyGroup

	seen := make(map[int64]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n.ID] = struct{}{}
		e.nodes[n.ID] = n
		e.applyLocked(n)
	}

	for id := range e.nodes {
		if _, ok := seen[id]; ok {
			continue
		}
		if e.exported[id] {
			e.deleteNodeLocked(strconv.FormatInt(id, 10))
			delete(e.exported, id)
		}
		delete(e.nodes, id)
		e.logger.Debug("node removed from hub", "node_id", id)
	}
}

// UpdateRelationships replaces the group membership graph and re-applies the
// group filter to known nodes.
func (e *Exporter) UpdateRelationships(rels []model.Relationship) {
	e.mu.Lock()
	defer e.mu.Unlock()

	groups := make(map[int64]map[int64]struct{})
	for _, r := range rels {
		// Homeegram relationships have no node.
		if r.NodeID == 0 {
			continue
		}
		members, ok := groups[r.GroupID]
		if !ok {
			members = make(map[int64]struct{})
			groups[r.GroupID] = members
		}
		members[r.NodeID] = struct{}{}
	}
	e.groups = groups

	e.groupMembers.Reset()
	for id, members := range groups {
		e.groupMembers.WithLabelValues(strconv.FormatInt(id, 10)).Set(float64(len(members)))
	}

	if e.onlyGroup > 0 {
		for _, n := range e.nodes {
			e.applyLocked(n)
		}
	}

	e.logger.Debug("group membership updated",
		"relationships", len(rels),
		"groups", len(groups),
	)
}

// applyLocked exports or removes one node according to the group filter.
func (e *Exporter) applyLocked(n model.Node) {
	id := strconv.FormatInt(n.ID, 10)

	// Names and attribute sets can change between updates; drop the old series first.
	if e.exported[n.ID] {
		e.deleteNodeLocked(id)
		delete(e.exported, n.ID)
	}

	if !e.includedLocked(n.ID) {
		return
	}

	name := n.Name.String()
	e.nodeState.WithLabelValues(id, name).Set(float64(n.State))
	e.nodeInfo.WithLabelValues(id, name,
		strconv.Itoa(n.Profile),
		strconv.Itoa(n.Protocol),
		strconv.Itoa(n.CubeType),
	).Set(1)

	for _, a := range n.Attributes {
		e.attributeValue.WithLabelValues(
			id,
			name,
			strconv.FormatInt(a.ID, 10),
			strconv.Itoa(a.Type),
			strconv.Itoa(a.Instance),
			a.Unit.String(),
		).Set(a.CurrentValue)
	}
	e.exported[n.ID] = true
}

func (e *Exporter) includedLocked(nodeID int64) bool {
	if e.onlyGroup <= 0 {
		return true
	}
	members, ok := e.groups[int64(e.onlyGroup)]
	if !ok {
		return false
	}
	_, ok = members[nodeID]
	return ok
}

func (e *Exporter) deleteNodeLocked(id string) {
	match := prometheus.Labels{"node_id": id}
	e.attributeValue.DeletePartialMatch(match)
	e.nodeState.DeletePartialMatch(match)
	e.nodeInfo.DeletePartialMatch(match)
}

// MessageReceived counts a routed payload by shape.
func (e *Exporter) MessageReceived(shape string) {
	e.messages.WithLabelValues(shape).Inc()
}

// DecodeFailed counts a dropped payload by shape.
func (e *Exporter) DecodeFailed(shape string) {
	e.decodeErrors.WithLabelValues(shape).Inc()
}

// StateChanged marks state as the current connection state. Earlier states
// stay exported at 0, so a scrape always sees the current one.
func (e *Exporter) StateChanged(state string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connectionState.WithLabelValues(state).Set(1)
	if e.state != "" && e.state != state {
		e.connectionState.WithLabelValues(e.state).Set(0)
	}
	e.state = state
}

// ReconnectAttempted counts a reconnection attempt.
func (e *Exporter) ReconnectAttempted() {
	e.reconnects.Inc()
}

// KeepAliveFailed counts a failed keep-alive signal.
func (e *Exporter) KeepAliveFailed() {
	e.keepaliveFailures.Inc()
}

// HandlerPanicked counts a message dropped by a panicking handler.
func (e *Exporter) HandlerPanicked() {
	e.handlerPanics.Inc()
}

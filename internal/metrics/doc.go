// Package metrics exports hub state as Prometheus metrics.
//
// Exporter receives decoded updates from the router and lifecycle events
// from the connection controller. Key metrics:
//   - homee_attribute_value: current value of every node attribute
//   - homee_node_state / homee_node_info: node availability and identity
//   - homee_connection_state: one-hot connection lifecycle state
//   - homee_messages_total / homee_decode_errors_total: routing outcomes by shape
//   - homee_reconnects_total / homee_keepalive_failures_total: connection health
//
// When a group filter is set only nodes related to that group are exported.
// Group membership comes from relationship updates; node snapshots are kept
// so a late relationship update re-applies the filter.
package metrics

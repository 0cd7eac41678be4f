// Package router implements the Message Router component.
//
// The Message Router:
//   - Classifies each inbound payload by its leading key, without a full parse
//   - Decodes node pushes and forwards them to UpdateMetrics with the group filter
//   - Decodes relationship pushes and forwards them to UpdateRelationships
//   - Drops unrecognized payloads at trace level and malformed ones at warn level
//
// Routing is synchronous on the caller's goroutine (the connection read loop).
package router

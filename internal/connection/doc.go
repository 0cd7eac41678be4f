// Package connection implements the connection to the homee event feed.
//
// The package provides:
//   - Client: a single WebSocket connection with a serialised writer
//   - Scheduler: the keep-alive timer that pings an open connection
//   - Controller: the lifecycle state machine owning one Client and one Scheduler,
//     registering an exit hook per connection and reconnecting with bounded backoff
//
// State machine:
//
//	Disconnected -> Connecting -> Open -> Closing -> Disconnected
//	Connecting|Open -> Errored
//
// Inbound payloads are handed to a MessageRouter on the connection's read goroutine.
package connection

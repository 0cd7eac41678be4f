// Package poller implements the snapshot resync poller.
//
// The poller:
//   - Re-requests the node snapshot from the hub on a fixed interval
//   - Runs only while a connection is open; the controller starts and stops it
//   - Sends through the connection's serialised writer
//   - Logs and counts failed sends without stopping
package poller

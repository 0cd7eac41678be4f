// Package model defines the homee data types carried on the event feed.
//
// Conventions:
//   - IDs: int64 as sent by the hub
//   - Timestamps: int64 seconds since Unix epoch
//   - Attribute units arrive URL-encoded ("%C2%B0C") and are decoded on parse
package model

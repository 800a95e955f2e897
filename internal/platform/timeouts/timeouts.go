// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single gRPC request between
// services, such as the sweeper probing review health.
const GRPCRequest = 2 * time.Second

// PadDial caps the wait time when dialing the external pad service's
// snapshot stream.
const PadDial = 10 * time.Second

// SnapshotPost caps a single snapshot forward from padsync to the review
// service.
const SnapshotPost = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

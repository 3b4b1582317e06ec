// Package relay implements the core of the socket relay: a per-room
// connection registry, the fan-out and routing engine for the general,
// p2p, and voice rooms, and the batched-persistence pipeline for broadcast
// history.
//
// The implementation is organized into specialized files for the registry,
// client pump management, per-room routing, batching, and HTTP wiring to
// keep the codebase maintainable and testable as the project grows.
package relay

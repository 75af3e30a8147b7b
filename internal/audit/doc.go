// Package audit implements async event dispatching for authentication events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with a uuid id, timestamp, type, user, IP and metadata.
//
// The package owns buffering and delivery. Which events to emit is decided by
// the Engine and the flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goGate or any sibling internal package.
package audit

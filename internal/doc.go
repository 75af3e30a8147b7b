// Package internal holds goGate code that is not part of the public API.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: pure-function orchestrators for the Engine operations
//   - rate: Redis fixed-window login limiter
//   - config: GOGATE_* environment and role file loading for the server
//   - logger: slog wrapper used by the binaries
//
// random.go generates session ids and registration tokens.
package internal

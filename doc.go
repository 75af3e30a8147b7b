// Package goGate provides a local session and credential engine: Argon2id
// password storage, server-side sessions with idle and absolute timeouts,
// level-based role authorization, and self-service registration with a
// pending confirmation step.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goGate is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Requirement], [Decision], [Registration]). Flow orchestration,
// rate limiting and audit dispatch live under internal/. Storage is reached
// only through the capability interfaces in package store, and sessions
// through a session.Backend.
//
// # What this package must NOT do
//
//   - Render HTML, set cookies or route requests. See packages cookie and
//     middleware.
//   - Expose Redis clients or session encoding details in its public API.
//   - Retry failed store operations.
//   - Import any sub-package that re-imports goGate (no import cycles).
package goGate

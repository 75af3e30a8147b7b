// Package session owns the session record, its binary encoding, the
// storage backends, and the [Manager] state machine that validates and
// expires sessions.
//
// # Lifecycle
//
// A session is created by [Manager.Begin], refreshed by every successful
// [Manager.Validate], and removed by [Manager.End] or by Validate once the
// idle or absolute timeout has passed. Expiry is always decided against the
// caller-supplied clock before last-access is advanced.
//
// # Binary encoding
//
//	version(1) | created_at(8, BE) | last_access(8, BE) | user_len(1) | username
//
// last_access sits at a fixed offset so the Redis backend can compare and
// replace it inside a Lua script without decoding the whole record.
//
// # What this package must NOT do
//
//   - Look up users or roles. It only knows the username.
//   - Import goGate or any HTTP package.
package session

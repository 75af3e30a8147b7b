// Package permission resolves role names to privilege levels.
//
// Levels are plain integers and higher means more privileged. Authorization
// compares levels, never names. A role missing from the table is an error
// ([ErrUnknownRole]) and never maps to a default level.
//
// # What this package must NOT do
//
//   - Decide whether a request is allowed. The Engine compares levels.
//   - Import goGate or session.
package permission

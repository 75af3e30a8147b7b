// Package flows contains pure-function orchestrators for the Engine's
// request paths: login, authorize, logout, and registration.
//
// Each Run function takes a dependency struct of plain funcs and has no
// side effects beyond calling them. The Engine owns every resource and wires
// the funcs once at Build.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGate (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency funcs.
package flows

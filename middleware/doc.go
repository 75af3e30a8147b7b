// Package middleware adapts a goGate Engine to net/http.
//
// # Handlers
//
//   - [Require] guards a handler with a [goGate.Requirement].
//   - [LoginHandler] turns a posted form into a session cookie.
//   - [LogoutHandler] ends the session and clears the cookie.
//   - [RequestContext] stamps the client IP and a request id on the context.
//
// Every denial is a 302 to the login page. The response does not tell a
// missing cookie from an expired session, a low level or a store outage.
//
// # What this package must NOT do
//
//   - Make authorization decisions. All of them come from the Engine.
//   - Access any store directly.
//   - Render HTML.
package middleware

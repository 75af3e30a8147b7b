// Package rate implements the Redis fixed-window counters behind login
// throttling.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Keys:
//   - <prefix>:rl:u:<hash>  failed logins per username
//   - <prefix>:rl:ip:<ip>   failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide what a rate-limited login looks like to callers. The Engine maps
//     it onto its own error surface.
//   - Be imported outside the goGate module.
package rate

// Package jwt signs and verifies the HS256 tokens goGate gives to clients:
// the session cookie value and the stateless password reset token. Each
// kind has its own audience so one can never be replayed as the other.
package jwt

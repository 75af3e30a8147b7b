package goGate

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goGate/internal/audit"
)

// AuditEvent is one security-relevant record emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink writing through logger. A nil logger uses
// slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}

const (
	auditLoginSuccess        = "login_success"
	auditLoginFailure        = "login_failure"
	auditLoginRateLimited    = "login_rate_limited"
	auditLogout              = "logout"
	auditAccessDenied        = "access_denied"
	auditSessionExpired      = "session_expired"
	auditRegistrationCreated = "registration_created"
	auditRegistrationConfirm = "registration_confirmed"
	auditRegistrationExpired = "registration_expired"
	auditResetRequested      = "password_reset_requested"
	auditResetCompleted      = "password_reset_completed"
	auditResetRejected       = "password_reset_rejected"
	auditPasswordChanged     = "password_changed"
	auditUserCreated         = "user_created"
	auditUserDeleted         = "user_deleted"
	auditRoleChanged         = "user_role_changed"
	auditRoleCreated         = "role_created"
	auditRoleDeleted         = "role_deleted"
)

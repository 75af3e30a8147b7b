package goGate

import (
	"context"
	"errors"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidUsername    AuditErrorCode = "invalid_username"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrUnknownRole        AuditErrorCode = "unknown_role"
	auditErrRoleExists         AuditErrorCode = "role_exists"
	auditErrRoleLevelTooHigh   AuditErrorCode = "role_level_too_high"
	auditErrRegistrationGone   AuditErrorCode = "registration_not_found"
	auditErrRegistrationExpiry AuditErrorCode = "registration_expired"
	auditErrUserExists         AuditErrorCode = "user_exists"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	username string,
	success bool,
	err error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		EventType: eventType,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidUsername):
		return auditErrInvalidUsername
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUnknownRole):
		return auditErrUnknownRole
	case errors.Is(err, ErrRoleExists):
		return auditErrRoleExists
	case errors.Is(err, ErrRoleLevelTooHigh):
		return auditErrRoleLevelTooHigh
	case errors.Is(err, ErrRegistrationNotFound):
		return auditErrRegistrationGone
	case errors.Is(err, ErrRegistrationExpired):
		return auditErrRegistrationExpiry
	case errors.Is(err, ErrUserExists):
		return auditErrUserExists
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

package goGate

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/store"
)

// RequestPasswordReset issues a signed reset token for username when email
// matches the account's address.
//
// The token embeds a fingerprint of the current password hash, so it stops
// working as soon as the password changes. Unknown users and mismatched
// addresses both return ErrInvalidCredentials.
func (e *Engine) RequestPasswordReset(ctx context.Context, username, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.jwtManager == nil {
		return "", ErrPasswordResetDisabled
	}

	user, err := e.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", e.rejectReset(ctx, username, "user_not_found")
		}
		return "", e.mapStoreErr("request_password_reset", err)
	}

	if user.Email == "" || !emailsMatch(user.Email, email) {
		return "", e.rejectReset(ctx, username, "email_mismatch")
	}

	now := e.now()
	expiresAt := now.Add(e.config.Reset.TTL)
	token, err := e.jwtManager.SignReset(user.Username, passwordFingerprint(user.PasswordHash), expiresAt, now)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditResetRequested, username, true, nil, nil)

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, Notification{
			Kind:      NotifyPasswordReset,
			Username:  user.Username,
			Email:     user.Email,
			Token:     token,
			ExpiresAt: expiresAt,
		}); err != nil {
			e.logger.Warn("password reset notification failed", "username", username, "error", err)
		}
	}

	return token, nil
}

// ResetPassword sets a new password using a token from RequestPasswordReset.
// Tokens that are malformed, expired or already used fail with
// ErrResetTokenInvalid.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.jwtManager == nil {
		return ErrPasswordResetDisabled
	}
	if err := e.checkPassword(newPassword); err != nil {
		return err
	}

	claims, err := e.jwtManager.ParseReset(token, e.now())
	if err != nil {
		return e.invalidReset(ctx, "", "token_rejected")
	}

	user, err := e.users.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.invalidReset(ctx, claims.Subject, "user_not_found")
		}
		return e.mapStoreErr("reset_password", err)
	}

	fp := passwordFingerprint(user.PasswordHash)
	if subtle.ConstantTimeCompare([]byte(fp), []byte(claims.Fingerprint)) != 1 {
		return e.invalidReset(ctx, user.Username, "token_spent")
	}

	hash, err := e.passwordHash.Hash(user.Username, newPassword)
	if err != nil {
		return e.mapStoreErr("reset_password", err)
	}
	if err := e.users.UpdateHash(ctx, user.Username, user.PasswordHash, hash); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return e.invalidReset(ctx, user.Username, "user_not_found")
		case errors.Is(err, store.ErrConflict):
			return e.invalidReset(ctx, user.Username, "token_spent")
		}
		return e.mapStoreErr("reset_password", err)
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, user.Username); err != nil {
			e.logger.Warn("login rate counter reset failed", "error", err)
		}
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditResetCompleted, user.Username, true, nil, nil)
	return nil
}

func (e *Engine) rejectReset(ctx context.Context, username, reason string) error {
	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, auditResetRejected, username, false, ErrInvalidCredentials, map[string]string{
		"reason": reason,
	})
	return ErrInvalidCredentials
}

func (e *Engine) invalidReset(ctx context.Context, username, reason string) error {
	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, auditResetRejected, username, false, ErrResetTokenInvalid, map[string]string{
		"reason": reason,
	})
	return ErrResetTokenInvalid
}

// passwordFingerprint identifies a password hash without revealing it.
func passwordFingerprint(hash string) string {
	return internal.HashToken(hash)
}

func emailsMatch(stored, given string) bool {
	a := []byte(strings.ToLower(strings.TrimSpace(stored)))
	b := []byte(strings.ToLower(strings.TrimSpace(given)))
	return subtle.ConstantTimeCompare(a, b) == 1
}

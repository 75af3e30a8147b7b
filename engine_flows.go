package goGate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/internal/flows"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/session"
	"github.com/MrEthical07/goGate/store"
)

func (e *Engine) metricIncInt(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) validateSession(ctx context.Context, sessionID string, now time.Time) (string, error) {
	sess, err := e.sessions.Validate(ctx, sessionID, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrExpired):
			return "", ErrSessionExpired
		case errors.Is(err, session.ErrNotFound):
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return sess.Username, nil
}

func (e *Engine) beginSession(ctx context.Context, username string, now time.Time) (string, error) {
	sess, err := e.sessions.Begin(ctx, username, now)
	if err != nil {
		return "", err
	}
	return sess.SessionID, nil
}

func (e *Engine) checkLoginRate(ctx context.Context, username, ip string) error {
	err := e.rateLimiter.CheckLogin(ctx, username, ip)
	if errors.Is(err, rate.ErrRateLimited) {
		return errRateLimited
	}
	return err
}

func (e *Engine) notifyRegistration(ctx context.Context, pending store.PendingRegistration, token string) error {
	if e.notifier == nil {
		return nil
	}
	return e.notifier.Notify(ctx, Notification{
		Kind:      NotifyRegistration,
		Username:  pending.User.Username,
		Email:     pending.User.Email,
		Token:     token,
		ExpiresAt: pending.ExpiresAt,
	})
}

// initFlowDeps binds the flow dependency sets to this Engine. It runs
// once at Build.
func (e *Engine) initFlowDeps() {
	e.deps.Login = flows.LoginDeps{
		UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
		ClientIPFromContext:  clientIPFromContext,
		Now:                  e.now,
		GetUser:              e.users.Get,
		TouchLastLogin:       e.users.TouchLastLogin,
		UpdateHash:           e.users.UpdateHash,
		VerifyPassword:       e.passwordHash.Verify,
		DummyVerify:          e.passwordHash.DummyVerify,
		PasswordNeedsUpgrade: e.passwordHash.NeedsUpgrade,
		HashPassword:         e.passwordHash.Hash,
		BeginSession:         e.beginSession,
		MetricInc:            e.metricIncInt,
		EmitAudit:            e.emitAudit,
		Warn:                 e.logger.Warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			SessionCreated:   int(MetricSessionCreated),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditLoginSuccess,
			LoginFailure:     auditLoginFailure,
			LoginRateLimited: auditLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			RateLimited:        errRateLimited,
		},
	}
	if e.rateLimiter != nil {
		e.deps.Login.CheckLoginRate = e.checkLoginRate
		e.deps.Login.IncrementLoginRate = e.rateLimiter.IncrementLogin
		e.deps.Login.ResetLoginRate = e.rateLimiter.ResetLogin
	}

	e.deps.Authorize = flows.AuthorizeDeps{
		Now:             e.now,
		ValidateSession: e.validateSession,
		EndSession:      e.sessions.End,
		GetUser:         e.users.Get,
		LevelOf:         e.roles.LevelOf,
		MetricInc:       e.metricIncInt,
		Debug:           e.logger.Debug,
		Warn:            e.logger.Warn,
		Metrics: flows.AuthorizeMetrics{
			Allow:           int(MetricCheckAllow),
			Deny:            int(MetricCheckDeny),
			SessionExpired:  int(MetricSessionExpired),
			SessionNotFound: int(MetricSessionNotFound),
		},
		Errors: flows.AuthorizeErrors{
			EngineNotReady:  ErrEngineNotReady,
			SessionExpired:  ErrSessionExpired,
			SessionNotFound: ErrSessionNotFound,
		},
	}

	e.deps.Logout = flows.LogoutDeps{
		EndSession:   e.sessions.End,
		MetricInc:    e.metricIncInt,
		EmitAudit:    e.emitAudit,
		LogoutMetric: int(MetricLogout),
		LogoutEvent:  auditLogout,
	}

	e.deps.Registration = flows.RegistrationDeps{
		Enabled:        e.config.Registration.Enabled,
		DefaultRole:    e.config.Registration.DefaultRole,
		MaxLevel:       e.config.Registration.MaxLevel,
		TTL:            e.config.Registration.TTL,
		Now:            e.now,
		CheckUsername:  checkUsername,
		CheckPassword:  e.checkPassword,
		HashPassword:   e.passwordHash.Hash,
		GetUser:        e.users.Get,
		CreateUser:     e.users.Create,
		LevelOf:        e.roles.LevelOf,
		NewToken:       internal.NewRegistrationToken,
		HashToken:      internal.HashToken,
		CreatePending:  e.registrations.Create,
		ConsumePending: e.registrations.Consume,
		Notify:         e.notifyRegistration,
		MetricInc:      e.metricIncInt,
		EmitAudit:      e.emitAudit,
		Warn:           e.logger.Warn,
		Metrics: flows.RegistrationMetrics{
			Created:   int(MetricRegistrationCreated),
			Confirmed: int(MetricRegistrationConfirmed),
			Expired:   int(MetricRegistrationExpired),
		},
		Events: flows.RegistrationEvents{
			Created:   auditRegistrationCreated,
			Confirmed: auditRegistrationConfirm,
			Expired:   auditRegistrationExpired,
		},
		Errors: flows.RegistrationErrors{
			EngineNotReady:   ErrEngineNotReady,
			Disabled:         ErrRegistrationDisabled,
			UserExists:       ErrUserExists,
			RoleLevelTooHigh: ErrRoleLevelTooHigh,
			NotFound:         ErrRegistrationNotFound,
			Expired:          ErrRegistrationExpired,
		},
	}
}

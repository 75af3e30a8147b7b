package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/flows"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/MrEthical07/goGate/store"
)

const maxUsernameBytes = 255

// Engine is the session and credential authority.
//
// An Engine is created by Builder.Build and is safe for concurrent use. Its
// configuration never changes after Build.
type Engine struct {
	config        Config
	users         store.Users
	roles         *permission.RoleTable
	registrations store.Registrations
	sessions      *session.Manager
	rateLimiter   *rate.Limiter
	audit         *audit.Dispatcher
	metrics       *Metrics
	passwordHash  *password.Argon2
	jwtManager    *jwt.Manager
	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time

	deps flows.Deps
}

// Close flushes queued audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies username and password and begins a session, returning its id.
//
// Every credential failure, including throttling, returns
// ErrInvalidCredentials. Backend failures return ErrStoreUnavailable.
func (e *Engine) Login(ctx context.Context, username, password string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	sid, err := flows.RunLogin(ctx, username, password, e.deps.Login)
	if err != nil {
		return "", e.mapStoreErr("login", err)
	}
	return sid, nil
}

// Check reports whether the session's user holds at least the level of role.
func (e *Engine) Check(ctx context.Context, sessionID, role string) (Decision, error) {
	return e.Authorize(ctx, sessionID, Requirement{Role: role})
}

// Authorize validates sessionID and evaluates req against its user.
//
// An invalid session, a deleted user and an unmet requirement all deny with
// a nil error. An unknown role denies with ErrUnknownRole and a backend
// failure denies with ErrStoreUnavailable.
func (e *Engine) Authorize(ctx context.Context, sessionID string, req Requirement) (Decision, error) {
	if e == nil {
		return Decision{}, ErrEngineNotReady
	}

	res, err := e.authorize(ctx, sessionID, req)
	return Decision{Allowed: res.Allowed, User: res.User}, err
}

func (e *Engine) authorize(ctx context.Context, sessionID string, req Requirement) (flows.AuthorizeResult, error) {
	start := time.Now()
	res, err := flows.RunAuthorize(ctx, sessionID, flows.Requirement(req), e.deps.Authorize)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricCheckLatency, time.Since(start))
	}

	if err != nil {
		res.Allowed = false
		err = e.mapStoreErr("authorize", err)
	}

	if !res.Allowed {
		event := auditAccessDenied
		if res.Reason == "session_expired" {
			event = auditSessionExpired
		}
		e.emitAudit(ctx, event, res.User.Username, false, err, map[string]string{
			"reason": res.Reason,
		})
	}
	return res, err
}

// Logout ends the session. Logging out an unknown session succeeds.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunLogout(ctx, sessionID, e.deps.Logout); err != nil {
		return e.mapStoreErr("logout", err)
	}
	return nil
}

// CurrentUser returns the account behind a valid session and refreshes
// its idle timer. It fails with ErrSessionExpired or ErrSessionNotFound.
func (e *Engine) CurrentUser(ctx context.Context, sessionID string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	res, err := e.authorize(ctx, sessionID, Requirement{})
	if err != nil {
		return UserRecord{}, err
	}
	if !res.Allowed {
		if res.Reason == "session_expired" {
			return UserRecord{}, ErrSessionExpired
		}
		return UserRecord{}, ErrSessionNotFound
	}
	return res.User, nil
}

// publicErrors pass through mapStoreErr unchanged.
var publicErrors = []error{
	ErrInvalidCredentials,
	ErrInvalidUsername,
	ErrSessionExpired,
	ErrSessionNotFound,
	ErrUnknownRole,
	ErrRoleExists,
	ErrRoleLevelTooHigh,
	ErrRegistrationExpired,
	ErrRegistrationNotFound,
	ErrRegistrationDisabled,
	ErrStoreUnavailable,
	ErrUserExists,
	ErrUserNotFound,
	ErrPasswordPolicy,
	ErrPasswordResetDisabled,
	ErrResetTokenInvalid,
	ErrEngineNotReady,
}

// mapStoreErr translates package errors into the root taxonomy. Anything
// unrecognised is a backend failure.
func (e *Engine) mapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, public := range publicErrors {
		if errors.Is(err, public) {
			return err
		}
	}

	switch {
	case errors.Is(err, permission.ErrUnknownRole), errors.Is(err, permission.ErrInvalidRole):
		e.logger.Error("role lookup failed", "op", op, "error", err)
		return fmt.Errorf("%w: %v", ErrUnknownRole, err)
	case errors.Is(err, permission.ErrRoleExists):
		return ErrRoleExists
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, store.ErrExists):
		return ErrUserExists
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	e.metricInc(MetricStoreError)
	e.logger.Error("store unavailable", "op", op, "error", err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func checkUsername(username string) error {
	if username == "" || len(username) > maxUsernameBytes {
		return ErrInvalidUsername
	}
	return nil
}

func (e *Engine) checkPassword(pw string) error {
	if len(pw) < e.config.Password.MinLength {
		return fmt.Errorf("%w: shorter than %d bytes", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	limit := e.config.Password.MaxPasswordBytes
	if limit == 0 {
		limit = password.DefaultMaxPasswordBytes
	}
	if len(pw) > limit {
		return fmt.Errorf("%w: longer than %d bytes", ErrPasswordPolicy, limit)
	}
	return nil
}

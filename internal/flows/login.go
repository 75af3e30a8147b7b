package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGate/store"
)

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	SessionCreated   int
	PasswordUpgraded int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	RateLimited        error
}

// LoginDeps captures login dependencies.
//
// CheckLoginRate returns Errors.RateLimited when the caller is throttled.
// Any other error from it aborts the login unchanged.
//
// TouchLastLogin and UpdateHash are conditional on the hash that was
// verified, so a user deleted or re-passworded mid-login is never written
// back.
type LoginDeps struct {
	UpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string) error

	GetUser        func(context.Context, string) (store.UserRecord, error)
	TouchLastLogin func(ctx context.Context, username, expectedHash string, at time.Time) error
	UpdateHash     func(ctx context.Context, username, expectedHash, newHash string) error
	IsNotFound     func(error) bool
	IsConflict     func(error) bool

	VerifyPassword       func(username, password, encoded string) bool
	DummyVerify          func(password string)
	PasswordNeedsUpgrade func(string) bool
	HashPassword         func(username, password string) (string, error)

	BeginSession func(context.Context, string, time.Time) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event, username string, success bool, err error, metadata map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies credentials and begins a session.
//
// Every credential failure returns Errors.InvalidCredentials; the audit
// reason is the only place the cause is recorded.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (string, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, string, bool, error, map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(err error) bool { return errors.Is(err, store.ErrNotFound) }
	}
	if deps.IsConflict == nil {
		deps.IsConflict = func(err error) bool { return errors.Is(err, store.ErrConflict) }
	}
	if deps.GetUser == nil ||
		deps.TouchLastLogin == nil ||
		deps.VerifyPassword == nil ||
		deps.DummyVerify == nil ||
		deps.BeginSession == nil {
		return "", deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	rateLimited := func() (string, error) {
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginRateLimited, username, false, deps.Errors.RateLimited, nil)
		deps.Warn("login rate limited", "username", username, "ip", ip)
		return "", deps.Errors.InvalidCredentials
	}

	fail := func(reason string) (string, error) {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, username, ip); err != nil {
				deps.Warn("login rate counter update failed", "error", err)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, username, false, deps.Errors.InvalidCredentials, map[string]string{
			"reason": reason,
		})
		return "", deps.Errors.InvalidCredentials
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				return rateLimited()
			}
			return "", err
		}
	}

	if password == "" {
		return fail("empty_password")
	}

	user, err := deps.GetUser(ctx, username)
	if err != nil {
		if deps.IsNotFound(err) {
			deps.DummyVerify(password)
			return fail("user_not_found")
		}
		return "", err
	}

	if !deps.VerifyPassword(username, password, user.PasswordHash) {
		return fail("password_mismatch")
	}

	now := deps.Now()

	// stale maps a failed conditional write to the credential failure the
	// caller would have seen had the login started a moment later.
	stale := func(err error) (string, error) {
		switch {
		case deps.IsNotFound(err):
			return fail("user_not_found")
		case deps.IsConflict(err):
			return fail("password_changed")
		default:
			return "", err
		}
	}

	verified := user.PasswordHash
	if deps.UpgradeOnLogin && deps.UpdateHash != nil && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil {
		if deps.PasswordNeedsUpgrade(verified) {
			if upgraded, err := deps.HashPassword(username, password); err == nil {
				if err := deps.UpdateHash(ctx, username, verified, upgraded); err != nil {
					return stale(err)
				}
				verified = upgraded
				deps.MetricInc(deps.Metrics.PasswordUpgraded)
			} else {
				deps.Warn("password hash upgrade generation failed", "error", err)
			}
		}
	}
	password = ""

	if err := deps.TouchLastLogin(ctx, username, verified, now); err != nil {
		return stale(err)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, username); err != nil {
			deps.Warn("login rate counter reset failed", "error", err)
		}
	}

	sid, err := deps.BeginSession(ctx, username, now)
	if err != nil {
		return "", err
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, username, true, nil, nil)

	return sid, nil
}

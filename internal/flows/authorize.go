package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGate/store"
)

// Requirement is the flow-local access requirement.
type Requirement struct {
	Role      string
	Level     int
	FixedRole string
	Username  string
}

// AuthorizeResult reports the decision. Reason is set on deny.
type AuthorizeResult struct {
	Allowed bool
	User    store.UserRecord
	Reason  string
}

// AuthorizeMetrics carries metric IDs needed by the authorize flow.
type AuthorizeMetrics struct {
	Allow           int
	Deny            int
	SessionExpired  int
	SessionNotFound int
}

// AuthorizeErrors carries host-level sentinel errors used by the authorize flow.
type AuthorizeErrors struct {
	EngineNotReady  error
	SessionExpired  error
	SessionNotFound error
}

// AuthorizeDeps captures authorize dependencies.
//
// ValidateSession must map its failures onto Errors.SessionExpired and
// Errors.SessionNotFound; anything else is treated as a backend failure.
type AuthorizeDeps struct {
	Now func() time.Time

	ValidateSession func(context.Context, string, time.Time) (string, error)
	EndSession      func(context.Context, string) error
	GetUser         func(context.Context, string) (store.UserRecord, error)
	IsNotFound      func(error) bool
	LevelOf         func(context.Context, string) (int, error)

	MetricInc func(int)
	Debug     func(string, ...any)
	Warn      func(string, ...any)

	Metrics AuthorizeMetrics
	Errors  AuthorizeErrors
}

// RunAuthorize validates sessionID and checks req against the session's user.
//
// A bad session, a vanished user or an unmet requirement denies with a nil
// error. Failures to resolve a role level or reach a store deny and return
// the error.
func RunAuthorize(ctx context.Context, sessionID string, req Requirement, deps AuthorizeDeps) (AuthorizeResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Debug == nil {
		deps.Debug = func(string, ...any) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(err error) bool { return errors.Is(err, store.ErrNotFound) }
	}
	if deps.ValidateSession == nil ||
		deps.EndSession == nil ||
		deps.GetUser == nil ||
		deps.LevelOf == nil {
		return AuthorizeResult{}, deps.Errors.EngineNotReady
	}

	deny := func(user store.UserRecord, reason string, err error) (AuthorizeResult, error) {
		deps.MetricInc(deps.Metrics.Deny)
		return AuthorizeResult{User: user, Reason: reason}, err
	}

	username, err := deps.ValidateSession(ctx, sessionID, deps.Now())
	if err != nil {
		switch {
		case errors.Is(err, deps.Errors.SessionExpired):
			deps.MetricInc(deps.Metrics.SessionExpired)
			deps.Debug("session expired")
			return deny(store.UserRecord{}, "session_expired", nil)
		case errors.Is(err, deps.Errors.SessionNotFound):
			deps.MetricInc(deps.Metrics.SessionNotFound)
			deps.Debug("session not found")
			return deny(store.UserRecord{}, "session_not_found", nil)
		default:
			return deny(store.UserRecord{}, "session_backend", err)
		}
	}

	user, err := deps.GetUser(ctx, username)
	if err != nil {
		if deps.IsNotFound(err) {
			if endErr := deps.EndSession(ctx, sessionID); endErr != nil {
				deps.Warn("ending orphaned session failed", "error", endErr)
			}
			deps.Debug("session user no longer exists", "username", username)
			return deny(store.UserRecord{}, "user_missing", nil)
		}
		return deny(store.UserRecord{}, "user_backend", err)
	}

	if req.Username != "" && user.Username != req.Username {
		return deny(user, "username_mismatch", nil)
	}
	if req.FixedRole != "" && user.Role != req.FixedRole {
		return deny(user, "role_mismatch", nil)
	}

	required, hasRequirement := 0, false
	switch {
	case req.Role != "":
		level, err := deps.LevelOf(ctx, req.Role)
		if err != nil {
			return deny(user, "required_role_unresolved", err)
		}
		required, hasRequirement = level, true
	case req.Level != 0:
		required, hasRequirement = req.Level, true
	}

	if hasRequirement {
		have, err := deps.LevelOf(ctx, user.Role)
		if err != nil {
			return deny(user, "user_role_unresolved", err)
		}
		if have < required {
			return deny(user, "insufficient_level", nil)
		}
	}

	deps.MetricInc(deps.Metrics.Allow)
	return AuthorizeResult{Allowed: true, User: user}, nil
}

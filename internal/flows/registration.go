package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGate/store"
)

// RegistrationInput is the flow-local signup request.
type RegistrationInput struct {
	Username    string
	Password    string
	Email       string
	Role        string
	Description string
}

// RegistrationMetrics carries metric IDs needed by the registration flows.
type RegistrationMetrics struct {
	Created   int
	Confirmed int
	Expired   int
}

// RegistrationEvents carries audit event names used by the registration flows.
type RegistrationEvents struct {
	Created   string
	Confirmed string
	Expired   string
}

// RegistrationErrors carries host-level sentinel errors used by the registration flows.
type RegistrationErrors struct {
	EngineNotReady   error
	Disabled         error
	UserExists       error
	RoleLevelTooHigh error
	NotFound         error
	Expired          error
}

// RegistrationDeps captures signup and confirmation dependencies.
//
// Pending records are stored under HashToken(token); the raw token only
// leaves the flow through the return value and Notify.
type RegistrationDeps struct {
	Enabled     bool
	DefaultRole string
	MaxLevel    int
	TTL         time.Duration

	Now func() time.Time

	CheckUsername func(string) error
	CheckPassword func(string) error
	HashPassword  func(username, password string) (string, error)

	GetUser    func(context.Context, string) (store.UserRecord, error)
	CreateUser func(context.Context, store.UserRecord) error
	IsNotFound func(error) bool
	IsExists   func(error) bool
	LevelOf    func(context.Context, string) (int, error)

	NewToken       func() (string, error)
	HashToken      func(string) string
	CreatePending  func(context.Context, store.PendingRegistration) error
	ConsumePending func(context.Context, string) (store.PendingRegistration, error)
	Notify         func(ctx context.Context, pending store.PendingRegistration, token string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event, username string, success bool, err error, metadata map[string]string)
	Warn      func(string, ...any)

	Metrics RegistrationMetrics
	Events  RegistrationEvents
	Errors  RegistrationErrors
}

func (d *RegistrationDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, string, bool, error, map[string]string) {}
	}
	if d.Warn == nil {
		d.Warn = func(string, ...any) {}
	}
	if d.IsNotFound == nil {
		d.IsNotFound = func(err error) bool { return errors.Is(err, store.ErrNotFound) }
	}
	if d.IsExists == nil {
		d.IsExists = func(err error) bool { return errors.Is(err, store.ErrExists) }
	}
	if d.CheckUsername == nil {
		d.CheckUsername = func(string) error { return nil }
	}
	if d.CheckPassword == nil {
		d.CheckPassword = func(string) error { return nil }
	}
}

// RunRegister validates in, stores a pending registration and returns the
// confirmation token.
func RunRegister(ctx context.Context, in RegistrationInput, deps RegistrationDeps) (string, error) {
	deps.defaults()
	if deps.GetUser == nil ||
		deps.LevelOf == nil ||
		deps.HashPassword == nil ||
		deps.NewToken == nil ||
		deps.HashToken == nil ||
		deps.CreatePending == nil {
		return "", deps.Errors.EngineNotReady
	}
	if !deps.Enabled {
		return "", deps.Errors.Disabled
	}

	if err := deps.CheckUsername(in.Username); err != nil {
		return "", err
	}
	if err := deps.CheckPassword(in.Password); err != nil {
		return "", err
	}

	role := in.Role
	if role == "" {
		role = deps.DefaultRole
	}
	level, err := deps.LevelOf(ctx, role)
	if err != nil {
		return "", err
	}
	if level > deps.MaxLevel {
		return "", deps.Errors.RoleLevelTooHigh
	}

	if _, err := deps.GetUser(ctx, in.Username); err == nil {
		return "", deps.Errors.UserExists
	} else if !deps.IsNotFound(err) {
		return "", err
	}

	hash, err := deps.HashPassword(in.Username, in.Password)
	if err != nil {
		return "", err
	}

	token, err := deps.NewToken()
	if err != nil {
		return "", err
	}

	now := deps.Now()
	pending := store.PendingRegistration{
		Token: deps.HashToken(token),
		User: store.UserRecord{
			Username:     in.Username,
			Role:         role,
			PasswordHash: hash,
			Email:        in.Email,
			Description:  in.Description,
			CreatedAt:    now,
		},
		ExpiresAt: now.Add(deps.TTL),
	}
	if err := deps.CreatePending(ctx, pending); err != nil {
		return "", err
	}

	if deps.Notify != nil {
		if err := deps.Notify(ctx, pending, token); err != nil {
			deps.Warn("registration notification failed", "username", in.Username, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Created)
	deps.EmitAudit(ctx, deps.Events.Created, in.Username, true, nil, map[string]string{
		"role": role,
	})

	return token, nil
}

// RunConfirmRegistration consumes token and creates the account it holds.
// The pending record is gone afterwards whether or not it had expired,
// except when account creation fails for a reason other than a taken
// username: the record is then put back so the token can be retried.
func RunConfirmRegistration(ctx context.Context, token string, now time.Time, deps RegistrationDeps) (store.UserRecord, error) {
	deps.defaults()
	if deps.HashToken == nil ||
		deps.ConsumePending == nil ||
		deps.CreateUser == nil {
		return store.UserRecord{}, deps.Errors.EngineNotReady
	}

	if token == "" {
		return store.UserRecord{}, deps.Errors.NotFound
	}

	pending, err := deps.ConsumePending(ctx, deps.HashToken(token))
	if err != nil {
		if deps.IsNotFound(err) {
			return store.UserRecord{}, deps.Errors.NotFound
		}
		return store.UserRecord{}, err
	}

	if pending.Expired(now) {
		deps.MetricInc(deps.Metrics.Expired)
		deps.EmitAudit(ctx, deps.Events.Expired, pending.User.Username, false, deps.Errors.Expired, nil)
		return store.UserRecord{}, deps.Errors.Expired
	}

	user := pending.User
	if err := deps.CreateUser(ctx, user); err != nil {
		if deps.IsExists(err) {
			deps.EmitAudit(ctx, deps.Events.Confirmed, user.Username, false, deps.Errors.UserExists, nil)
			return store.UserRecord{}, deps.Errors.UserExists
		}
		if deps.CreatePending != nil {
			if restoreErr := deps.CreatePending(ctx, pending); restoreErr != nil {
				deps.Warn("pending registration restore failed", "username", user.Username, "error", restoreErr)
			}
		}
		return store.UserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.Confirmed)
	deps.EmitAudit(ctx, deps.Events.Confirmed, user.Username, true, nil, nil)

	return user, nil
}

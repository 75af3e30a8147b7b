package goGate

import (
	"context"
	"time"

	"github.com/MrEthical07/goGate/internal/flows"
)

// Register stores a pending account and returns the confirmation token.
//
// The role defaults to Config.Registration.DefaultRole and its level may not
// exceed Config.Registration.MaxLevel. The token is also handed to the
// Notifier when one is configured.
func (e *Engine) Register(ctx context.Context, reg Registration) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	token, err := flows.RunRegister(ctx, flows.RegistrationInput(reg), e.deps.Registration)
	if err != nil {
		return "", e.mapStoreErr("register", err)
	}
	return token, nil
}

// ConfirmRegistration turns the pending registration behind token into an
// account. The token is spent even when it has expired.
func (e *Engine) ConfirmRegistration(ctx context.Context, token string, now time.Time) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	user, err := flows.RunConfirmRegistration(ctx, token, now, e.deps.Registration)
	if err != nil {
		return UserRecord{}, e.mapStoreErr("confirm_registration", err)
	}
	return user, nil
}

// PurgeExpiredRegistrations deletes registrations that expired before now
// and returns how many were removed.
func (e *Engine) PurgeExpiredRegistrations(ctx context.Context, now time.Time) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.registrations.PurgeExpired(ctx, now)
	if err != nil {
		return 0, e.mapStoreErr("purge_registrations", err)
	}
	if n > 0 {
		e.metrics.Add(MetricRegistrationExpired, uint64(n))
		e.logger.Info("purged expired registrations", "count", n)
	}
	return n, nil
}

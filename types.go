package goGate

import (
	"context"
	"time"

	"github.com/MrEthical07/goGate/store"
)

// UserRecord is one account as stored by the credential store.
type UserRecord = store.UserRecord

// Requirement describes what a session's user must satisfy.
//
// Role requires at least that role's level and takes precedence over Level.
// FixedRole and Username require exact matches. The zero Requirement only
// requires a valid session.
type Requirement struct {
	Role      string
	Level     int
	FixedRole string
	Username  string
}

// Decision is the outcome of Authorize. User is populated whenever the
// session resolved to an existing account, including on deny.
type Decision struct {
	Allowed bool
	User    UserRecord
}

// Registration is a self-service signup request.
type Registration struct {
	Username    string
	Password    string
	Email       string
	Role        string
	Description string
}

// NotificationKind identifies what a Notification delivers.
type NotificationKind string

const (
	// NotifyRegistration carries a registration confirmation token.
	NotifyRegistration NotificationKind = "registration"
	// NotifyPasswordReset carries a password reset token.
	NotifyPasswordReset NotificationKind = "password_reset"
)

// Notification is handed to the Notifier for out-of-band token delivery.
type Notification struct {
	Kind      NotificationKind
	Username  string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Notifier delivers tokens to users, typically by email. A failing
// Notifier is logged and does not fail the operation that produced the token.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrExists is returned by Users.Create when the username is taken.
	ErrExists = errors.New("store: already exists")
	// ErrUnavailable wraps every backend failure.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrConflict is returned by conditional updates whose expected
	// password hash no longer matches.
	ErrConflict = errors.New("store: record modified concurrently")
)

// UserRecord is one account. Username is the unique key.
type UserRecord struct {
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"hash"`
	Email        string    `json:"email_addr"`
	Description  string    `json:"desc"`
	CreatedAt    time.Time `json:"creation_date"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// PendingRegistration is a signup awaiting confirmation.
type PendingRegistration struct {
	Token     string     `json:"token"`
	User      UserRecord `json:"user"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Expired reports whether the registration can no longer be confirmed at now.
func (p PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Users is the credential store capability.
//
// Create inserts only when the username is free and reports ErrExists
// otherwise. Put overwrites unconditionally.
//
// TouchLastLogin, UpdateHash and UpdateRole change one field of an
// existing record and never recreate it: a missing user yields ErrNotFound.
// TouchLastLogin and UpdateHash apply only while the stored password hash
// equals expectedHash and report ErrConflict otherwise.
type Users interface {
	Get(ctx context.Context, username string) (UserRecord, error)
	Create(ctx context.Context, user UserRecord) error
	Put(ctx context.Context, user UserRecord) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]UserRecord, error)

	TouchLastLogin(ctx context.Context, username, expectedHash string, at time.Time) error
	UpdateHash(ctx context.Context, username, expectedHash, newHash string) error
	UpdateRole(ctx context.Context, username, role string) error
}

// Roles maps role names to privilege levels.
type Roles interface {
	Level(ctx context.Context, role string) (int, error)
	Put(ctx context.Context, role string, level int) error
	Delete(ctx context.Context, role string) error
	List(ctx context.Context) (map[string]int, error)
}

// Registrations holds pending signups.
//
// Consume must be atomic: for a given token at most one caller observes
// the record, whether or not it has expired.
type Registrations interface {
	Create(ctx context.Context, reg PendingRegistration) error
	Consume(ctx context.Context, token string) (PendingRegistration, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

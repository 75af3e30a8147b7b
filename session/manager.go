package session

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/MrEthical07/goGate/internal"
)

// ErrExpired is returned by Validate when the session outlived a timeout.
// The record has already been deleted when it is returned.
var ErrExpired = errors.New("session expired")

const (
	maxTouchAttempts = 4

	// gcSlack pads backend TTLs so that clock skew between the caller and
	// the backend never evicts a session the Manager still considers live.
	gcSlack = 5 * time.Second
)

// Config holds the session timeouts. Zero is a valid value for both and
// means a session is only valid at the instant it was last touched.
type Config struct {
	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
}

// Manager issues, validates and ends sessions on top of a Backend.
type Manager struct {
	backend Backend
	cfg     Config
}

func NewManager(backend Backend, cfg Config) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("session backend is required")
	}
	if cfg.IdleTimeout < 0 {
		return nil, errors.New("session idle timeout must be >= 0")
	}
	if cfg.AbsoluteTimeout < 0 {
		return nil, errors.New("session absolute timeout must be >= 0")
	}
	return &Manager{backend: backend, cfg: cfg}, nil
}

// Config returns the timeouts the Manager enforces.
func (m *Manager) Config() Config {
	return m.cfg
}

// ttl saturates rather than wrapping when the timeouts are near the
// largest Duration.
func (m *Manager) ttl(sess *Session, now time.Time) time.Duration {
	left := sess.remaining(now, m.cfg.IdleTimeout, m.cfg.AbsoluteTimeout)
	if left > math.MaxInt64-gcSlack {
		return math.MaxInt64
	}
	return left + gcSlack
}

// Begin creates a new session for username with both timestamps set to now.
// Every call yields an independent session.
func (m *Manager) Begin(ctx context.Context, username string, now time.Time) (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	ts := now.UnixNano()
	sess := &Session{
		SessionID:  sid.String(),
		Username:   username,
		CreatedAt:  ts,
		LastAccess: ts,
	}

	if err := m.backend.Save(ctx, sess, m.ttl(sess, now)); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate returns the live session for sessionID and advances its
// last-access time to now.
//
// The timeouts are checked against the stored record before it is touched.
// An expired session is deleted and ErrExpired returned. The touch is a
// compare-and-swap; if another request moved last-access first, the record
// is re-read and checked again.
func (m *Manager) Validate(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrNotFound
	}

	next := now.UnixNano()
	var live *Session

	for attempt := 0; attempt < maxTouchAttempts; attempt++ {
		sess, err := m.backend.Get(ctx, sessionID)
		if err != nil {
			return nil, m.readFailure(ctx, sessionID, err)
		}

		if sess.Expired(now, m.cfg.IdleTimeout, m.cfg.AbsoluteTimeout) {
			if err := m.backend.Delete(ctx, sessionID); err != nil {
				return nil, err
			}
			return nil, ErrExpired
		}

		if next <= sess.LastAccess {
			return sess, nil
		}

		touched := *sess
		touched.LastAccess = next

		err = m.backend.Touch(ctx, sessionID, sess.LastAccess, next, m.ttl(&touched, now))
		switch {
		case err == nil:
			return &touched, nil
		case errors.Is(err, ErrConflict):
			live = sess
			continue
		default:
			return nil, m.readFailure(ctx, sessionID, err)
		}
	}

	// Every attempt lost to a concurrent touch. Last-access only moves
	// forward, so the record last checked is still within its timeouts.
	return live, nil
}

func (m *Manager) readFailure(ctx context.Context, sessionID string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrCorrupt):
		if delErr := m.backend.Delete(ctx, sessionID); delErr != nil {
			return delErr
		}
		return ErrNotFound
	default:
		return err
	}
}

// End deletes the session. Ending an unknown or malformed id is not an error.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil
	}
	return m.backend.Delete(ctx, sessionID)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no record exists for the session id.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Touch when last-access changed since it was read.
	ErrConflict = errors.New("session modified concurrently")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// minSlidingTTL floors the Redis key lifetime. The TTL only reclaims
// memory; expiry decisions are made by the Manager.
const minSlidingTTL = time.Second

const (
	touchStatusNotFound int64 = 0
	touchStatusTouched  int64 = 1
	touchStatusConflict int64 = 2
	touchStatusCorrupt  int64 = 3
)

// Backend persists sessions. Implementations must make Touch a per-key
// compare-and-swap on the last-access timestamp.
type Backend interface {
	Save(ctx context.Context, sess *Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Touch(ctx context.Context, sessionID string, expected, next int64, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// touchScript replaces last_access only if it still equals ARGV[1].
// KEYS[1] = session key
// ARGV[1] = expected last_access (8 bytes, big-endian)
// ARGV[2] = next last_access (8 bytes, big-endian)
// ARGV[3] = key ttl in milliseconds
const touchScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if string.byte(data, 1) ~= 1 or #data < 18 then
  return 3
end
if string.sub(data, 10, 17) ~= ARGV[1] then
  return 2
end
local updated = string.sub(data, 1, 9) .. ARGV[2] .. string.sub(data, 18)
redis.call("SET", KEYS[1], updated, "PX", ARGV[3])
return 1
`

var touchLua = redis.NewScript(touchScript)

// Store is the Redis session backend.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store keyed under "<prefix>:s:<id>" ("gg" when prefix is empty).
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gg"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func keyTTL(ttl time.Duration) time.Duration {
	if ttl < minSlidingTTL {
		return minSlidingTTL
	}
	return ttl
}

func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sess.SessionID), data, keyTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	return sess, nil
}

func (s *Store) Touch(ctx context.Context, sessionID string, expected, next int64, ttl time.Duration) error {
	status, err := touchLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		encodeTimestamp(expected),
		encodeTimestamp(next),
		keyTTL(ttl).Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case touchStatusTouched:
		return nil
	case touchStatusNotFound:
		return ErrNotFound
	case touchStatusConflict:
		return ErrConflict
	case touchStatusCorrupt:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unexpected touch status %d", ErrUnavailable, status)
	}
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

var _ Backend = (*Store)(nil)

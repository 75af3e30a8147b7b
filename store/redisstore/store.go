// Package redisstore stores users, roles and pending registrations in Redis.
//
// Users are JSON values under "<prefix>:user:<name>" with an index set
// "<prefix>:users". Roles live in the hash "<prefix>:roles". Pending
// registrations are JSON values under "<prefix>:reg:<token>" indexed by
// expiry in the sorted set "<prefix>:regs".
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGate/store"
)

const (
	defaultPrefix = "gg"

	// DefaultRegistrationGrace keeps expired registrations readable long
	// enough for Consume to report them as expired rather than missing.
	DefaultRegistrationGrace = 24 * time.Hour

	minKeyTTL = time.Second

	maxUpdateAttempts = 8
)

// consumeRegistrationScript atomically reads and deletes a pending registration.
// KEYS[1] = registration key
// KEYS[2] = expiry index
// ARGV[1] = token
var consumeRegistrationScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return false
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return data
`)

// createUserScript sets the user record only when absent.
// KEYS[1] = user key
// KEYS[2] = user index
// ARGV[1] = JSON record
// ARGV[2] = username
var createUserScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  redis.call('SADD', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

// purgeRegistrationsScript removes registrations whose expiry is before ARGV[1].
// KEYS[1] = expiry index
// ARGV[1] = now in unix milliseconds
// ARGV[2] = registration key prefix
var purgeRegistrationsScript = redis.NewScript(`
local tokens = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, token in ipairs(tokens) do
  redis.call('DEL', ARGV[2] .. token)
  redis.call('ZREM', KEYS[1], token)
end
return #tokens
`)

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return defaultPrefix
	}
	return prefix
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// Users is a Redis-backed credential store.
type Users struct {
	redis  redis.UniversalClient
	prefix string
}

// NewUsers returns a Users using prefix for its keys ("gg" when empty).
func NewUsers(client redis.UniversalClient, prefix string) *Users {
	return &Users{redis: client, prefix: normalizePrefix(prefix)}
}

func (u *Users) key(username string) string {
	return u.prefix + ":user:" + username
}

func (u *Users) indexKey() string {
	return u.prefix + ":users"
}

func (u *Users) Get(ctx context.Context, username string) (store.UserRecord, error) {
	data, err := u.redis.Get(ctx, u.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.UserRecord{}, store.ErrNotFound
		}
		return store.UserRecord{}, unavailable(err)
	}

	var rec store.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return store.UserRecord{}, fmt.Errorf("%w: corrupt user record: %v", store.ErrUnavailable, err)
	}
	return rec, nil
}

func (u *Users) Create(ctx context.Context, user store.UserRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	created, err := createUserScript.Run(ctx, u.redis,
		[]string{u.key(user.Username), u.indexKey()}, data, user.Username).Int()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return store.ErrExists
	}
	return nil
}

func (u *Users) Put(ctx context.Context, user store.UserRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	_, err = u.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, u.key(user.Username), data, 0)
		pipe.SAdd(ctx, u.indexKey(), user.Username)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (u *Users) Delete(ctx context.Context, username string) error {
	_, err := u.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, u.key(username))
		pipe.SRem(ctx, u.indexKey(), username)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (u *Users) TouchLastLogin(ctx context.Context, username, expectedHash string, at time.Time) error {
	return u.update(ctx, username, func(rec *store.UserRecord) error {
		if rec.PasswordHash != expectedHash {
			return store.ErrConflict
		}
		rec.LastLogin = at
		return nil
	})
}

func (u *Users) UpdateHash(ctx context.Context, username, expectedHash, newHash string) error {
	return u.update(ctx, username, func(rec *store.UserRecord) error {
		if rec.PasswordHash != expectedHash {
			return store.ErrConflict
		}
		rec.PasswordHash = newHash
		return nil
	})
}

func (u *Users) UpdateRole(ctx context.Context, username, role string) error {
	return u.update(ctx, username, func(rec *store.UserRecord) error {
		rec.Role = role
		return nil
	})
}

// update applies mutate to an existing record under WATCH. A concurrent
// write to the key aborts the transaction and the read is retried.
func (u *Users) update(ctx context.Context, username string, mutate func(*store.UserRecord) error) error {
	key := u.key(username)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return store.ErrNotFound
			}
			return unavailable(err)
		}

		var rec store.UserRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("%w: corrupt user record: %v", store.ErrUnavailable, err)
		}
		if err := mutate(&rec); err != nil {
			return err
		}
		next, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := u.redis.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, store.ErrNotFound),
			errors.Is(err, store.ErrConflict),
			errors.Is(err, store.ErrUnavailable):
			return err
		default:
			return unavailable(err)
		}
	}
	return fmt.Errorf("%w: user %q kept changing during update", store.ErrUnavailable, username)
}

// List returns users sorted by username. Index entries whose record has
// disappeared are skipped.
func (u *Users) List(ctx context.Context) ([]store.UserRecord, error) {
	names, err := u.redis.SMembers(ctx, u.indexKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(names) == 0 {
		return []store.UserRecord{}, nil
	}
	sort.Strings(names)

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = u.key(name)
	}

	values, err := u.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	out := make([]store.UserRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rec store.UserRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("%w: corrupt user record: %v", store.ErrUnavailable, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Roles is a Redis hash of role name to level.
type Roles struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRoles returns a Roles using prefix for its key ("gg" when empty).
func NewRoles(client redis.UniversalClient, prefix string) *Roles {
	return &Roles{redis: client, prefix: normalizePrefix(prefix)}
}

func (r *Roles) key() string {
	return r.prefix + ":roles"
}

func (r *Roles) Level(ctx context.Context, role string) (int, error) {
	level, err := r.redis.HGet(ctx, r.key(), role).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, store.ErrNotFound
		}
		return 0, unavailable(err)
	}
	return level, nil
}

func (r *Roles) Put(ctx context.Context, role string, level int) error {
	if err := r.redis.HSet(ctx, r.key(), role, level).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Roles) Delete(ctx context.Context, role string) error {
	if err := r.redis.HDel(ctx, r.key(), role).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Roles) List(ctx context.Context) (map[string]int, error) {
	raw, err := r.redis.HGetAll(ctx, r.key()).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	out := make(map[string]int, len(raw))
	for role, v := range raw {
		level, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt level for role %q", store.ErrUnavailable, role)
		}
		out[role] = level
	}
	return out, nil
}

// Registrations is a Redis-backed pending registration store.
type Registrations struct {
	redis  redis.UniversalClient
	prefix string
	grace  time.Duration
}

// NewRegistrations returns a Registrations using prefix for its keys. Each
// record's Redis TTL is its remaining lifetime plus grace; grace <= 0
// selects DefaultRegistrationGrace.
func NewRegistrations(client redis.UniversalClient, prefix string, grace time.Duration) *Registrations {
	if grace <= 0 {
		grace = DefaultRegistrationGrace
	}
	return &Registrations{redis: client, prefix: normalizePrefix(prefix), grace: grace}
}

func (r *Registrations) keyPrefix() string {
	return r.prefix + ":reg:"
}

func (r *Registrations) indexKey() string {
	return r.prefix + ":regs"
}

func (r *Registrations) Create(ctx context.Context, reg store.PendingRegistration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}

	// The lifetime is measured from the record's own creation time so the
	// key TTL follows the caller's clock rather than the wall clock.
	lifetime := time.Until(reg.ExpiresAt)
	if !reg.User.CreatedAt.IsZero() {
		lifetime = reg.ExpiresAt.Sub(reg.User.CreatedAt)
	}
	ttl := lifetime + r.grace
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keyPrefix()+reg.Token, data, ttl)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(reg.ExpiresAt.UnixMilli()),
			Member: reg.Token,
		})
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Registrations) Consume(ctx context.Context, token string) (store.PendingRegistration, error) {
	data, err := consumeRegistrationScript.Run(
		ctx,
		r.redis,
		[]string{r.keyPrefix() + token, r.indexKey()},
		token,
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.PendingRegistration{}, store.ErrNotFound
		}
		return store.PendingRegistration{}, unavailable(err)
	}

	var reg store.PendingRegistration
	if err := json.Unmarshal([]byte(data), &reg); err != nil {
		return store.PendingRegistration{}, fmt.Errorf("%w: corrupt registration: %v", store.ErrUnavailable, err)
	}
	return reg, nil
}

func (r *Registrations) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := purgeRegistrationsScript.Run(
		ctx,
		r.redis,
		[]string{r.indexKey()},
		now.UnixMilli(),
		r.keyPrefix(),
	).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

var (
	_ store.Users         = (*Users)(nil)
	_ store.Roles         = (*Roles)(nil)
	_ store.Registrations = (*Registrations)(nil)
)

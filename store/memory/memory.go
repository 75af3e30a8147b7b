// Package memory provides in-process implementations of the store
// capabilities. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goGate/store"
)

// Users is a mutex-guarded credential store.
type Users struct {
	mu    sync.RWMutex
	users map[string]store.UserRecord
}

// NewUsers returns an empty Users.
func NewUsers() *Users {
	return &Users{users: make(map[string]store.UserRecord)}
}

func (u *Users) Get(_ context.Context, username string) (store.UserRecord, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	rec, ok := u.users[username]
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (u *Users) Create(_ context.Context, user store.UserRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.users[user.Username]; ok {
		return store.ErrExists
	}
	u.users[user.Username] = user
	return nil
}

func (u *Users) Put(_ context.Context, user store.UserRecord) error {
	u.mu.Lock()
	u.users[user.Username] = user
	u.mu.Unlock()
	return nil
}

func (u *Users) Delete(_ context.Context, username string) error {
	u.mu.Lock()
	delete(u.users, username)
	u.mu.Unlock()
	return nil
}

func (u *Users) TouchLastLogin(_ context.Context, username, expectedHash string, at time.Time) error {
	return u.update(username, expectedHash, func(rec *store.UserRecord) { rec.LastLogin = at })
}

func (u *Users) UpdateHash(_ context.Context, username, expectedHash, newHash string) error {
	return u.update(username, expectedHash, func(rec *store.UserRecord) { rec.PasswordHash = newHash })
}

func (u *Users) UpdateRole(_ context.Context, username, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.users[username]
	if !ok {
		return store.ErrNotFound
	}
	rec.Role = role
	u.users[username] = rec
	return nil
}

func (u *Users) update(username, expectedHash string, mutate func(*store.UserRecord)) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.users[username]
	if !ok {
		return store.ErrNotFound
	}
	if rec.PasswordHash != expectedHash {
		return store.ErrConflict
	}
	mutate(&rec)
	u.users[username] = rec
	return nil
}

// List returns users sorted by username.
func (u *Users) List(_ context.Context) ([]store.UserRecord, error) {
	u.mu.RLock()
	out := make([]store.UserRecord, 0, len(u.users))
	for _, rec := range u.users {
		out = append(out, rec)
	}
	u.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Roles is a mutex-guarded role table.
type Roles struct {
	mu     sync.RWMutex
	levels map[string]int
}

// NewRoles returns a Roles seeded with a copy of initial.
func NewRoles(initial map[string]int) *Roles {
	levels := make(map[string]int, len(initial))
	for role, level := range initial {
		levels[role] = level
	}
	return &Roles{levels: levels}
}

func (r *Roles) Level(_ context.Context, role string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	level, ok := r.levels[role]
	if !ok {
		return 0, store.ErrNotFound
	}
	return level, nil
}

func (r *Roles) Put(_ context.Context, role string, level int) error {
	r.mu.Lock()
	r.levels[role] = level
	r.mu.Unlock()
	return nil
}

func (r *Roles) Delete(_ context.Context, role string) error {
	r.mu.Lock()
	delete(r.levels, role)
	r.mu.Unlock()
	return nil
}

func (r *Roles) List(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.levels))
	for role, level := range r.levels {
		out[role] = level
	}
	return out, nil
}

// Registrations is a mutex-guarded pending registration store.
type Registrations struct {
	mu      sync.Mutex
	pending map[string]store.PendingRegistration
}

// NewRegistrations returns an empty Registrations.
func NewRegistrations() *Registrations {
	return &Registrations{pending: make(map[string]store.PendingRegistration)}
}

func (r *Registrations) Create(_ context.Context, reg store.PendingRegistration) error {
	r.mu.Lock()
	r.pending[reg.Token] = reg
	r.mu.Unlock()
	return nil
}

func (r *Registrations) Consume(_ context.Context, token string) (store.PendingRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.pending[token]
	if !ok {
		return store.PendingRegistration{}, store.ErrNotFound
	}
	delete(r.pending, token)
	return reg, nil
}

func (r *Registrations) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for token, reg := range r.pending {
		if reg.Expired(now) {
			delete(r.pending, token)
			purged++
		}
	}
	return purged, nil
}

var (
	_ store.Users         = (*Users)(nil)
	_ store.Roles         = (*Roles)(nil)
	_ store.Registrations = (*Registrations)(nil)
)

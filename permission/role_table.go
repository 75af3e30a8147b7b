package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MrEthical07/goGate/store"
)

var (
	// ErrUnknownRole is returned for a role name absent from the table.
	ErrUnknownRole = errors.New("unknown role")
	// ErrRoleExists is returned by Create for a name already in the table.
	ErrRoleExists = errors.New("role already exists")
	// ErrInvalidRole is returned for an empty role name.
	ErrInvalidRole = errors.New("role name empty")
)

// CacheConfig enables a bounded, time-limited cache of role levels in
// front of the store. A zero Size disables caching.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// RoleTable maps role names to privilege levels.
//
// Only hits are cached. Writes made through the table invalidate the
// affected entry; writes made elsewhere become visible after TTL.
type RoleTable struct {
	roles store.Roles
	cache *lru.LRU[string, int]
}

func NewRoleTable(roles store.Roles, cacheCfg CacheConfig) *RoleTable {
	t := &RoleTable{roles: roles}
	if cacheCfg.Size > 0 {
		t.cache = lru.NewLRU[string, int](cacheCfg.Size, nil, cacheCfg.TTL)
	}
	return t
}

// LevelOf returns the privilege level of role.
func (t *RoleTable) LevelOf(ctx context.Context, role string) (int, error) {
	if role == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if t.cache != nil {
		if level, ok := t.cache.Get(role); ok {
			return level, nil
		}
	}

	level, err := t.roles.Level(ctx, role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		return 0, err
	}

	if t.cache != nil {
		t.cache.Add(role, level)
	}
	return level, nil
}

// Create adds a role. It fails with ErrRoleExists if the name is taken.
func (t *RoleTable) Create(ctx context.Context, role string, level int) error {
	if role == "" {
		return ErrInvalidRole
	}

	_, err := t.roles.Level(ctx, role)
	switch {
	case err == nil:
		return ErrRoleExists
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	return t.Put(ctx, role, level)
}

// Put creates or overwrites a role.
func (t *RoleTable) Put(ctx context.Context, role string, level int) error {
	if role == "" {
		return ErrInvalidRole
	}
	if err := t.roles.Put(ctx, role, level); err != nil {
		return err
	}
	t.invalidate(role)
	return nil
}

// Delete removes a role. It fails with ErrUnknownRole if the name is absent.
func (t *RoleTable) Delete(ctx context.Context, role string) error {
	if _, err := t.roles.Level(ctx, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		return err
	}

	if err := t.roles.Delete(ctx, role); err != nil {
		return err
	}
	t.invalidate(role)
	return nil
}

func (t *RoleTable) List(ctx context.Context) (map[string]int, error) {
	return t.roles.List(ctx)
}

// Seed writes every entry of levels, overwriting existing levels.
func (t *RoleTable) Seed(ctx context.Context, levels map[string]int) error {
	for role, level := range levels {
		if err := t.Put(ctx, role, level); err != nil {
			return err
		}
	}
	return nil
}

func (t *RoleTable) invalidate(role string) {
	if t.cache != nil {
		t.cache.Remove(role)
	}
}

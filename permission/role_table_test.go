package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/store"
	"github.com/MrEthical07/goGate/store/memory"
)

// countingRoles records how often the backing store is consulted.
type countingRoles struct {
	*memory.Roles
	lookups int
	fail    error
}

func (c *countingRoles) Level(ctx context.Context, role string) (int, error) {
	c.lookups++
	if c.fail != nil {
		return 0, c.fail
	}
	return c.Roles.Level(ctx, role)
}

func defaultLevels() map[string]int {
	return map[string]int{"admin": 100, "editor": 60, "user": 50}
}

func TestLevelOf(t *testing.T) {
	table := NewRoleTable(memory.NewRoles(defaultLevels()), CacheConfig{})

	level, err := table.LevelOf(context.Background(), "editor")
	if err != nil || level != 60 {
		t.Fatalf("unexpected level: %d %v", level, err)
	}
}

func TestUnknownRoleNeverDefaults(t *testing.T) {
	table := NewRoleTable(memory.NewRoles(defaultLevels()), CacheConfig{Size: 8, TTL: time.Minute})

	for _, role := range []string{"", "superuser", "Admin"} {
		level, err := table.LevelOf(context.Background(), role)
		if !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("role %q: expected ErrUnknownRole, got %v", role, err)
		}
		if level != 0 {
			t.Fatalf("role %q: expected zero level alongside error, got %d", role, level)
		}
	}
}

func TestLevelOfPropagatesStoreErrors(t *testing.T) {
	backing := &countingRoles{Roles: memory.NewRoles(nil), fail: store.ErrUnavailable}
	table := NewRoleTable(backing, CacheConfig{})

	_, err := table.LevelOf(context.Background(), "admin")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUnknownRole) {
		t.Fatal("store failure must not be reported as an unknown role")
	}
}

func TestCacheServesHitsAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	backing := &countingRoles{Roles: memory.NewRoles(defaultLevels())}
	table := NewRoleTable(backing, CacheConfig{Size: 8, TTL: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := table.LevelOf(ctx, "admin"); err != nil {
			t.Fatalf("LevelOf error: %v", err)
		}
	}
	if backing.lookups != 1 {
		t.Fatalf("expected a single store lookup, got %d", backing.lookups)
	}

	if err := table.Put(ctx, "admin", 90); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	level, _ := table.LevelOf(ctx, "admin")
	if level != 90 {
		t.Fatalf("expected invalidated entry to reload, got %d", level)
	}

	if err := table.Delete(ctx, "admin"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := table.LevelOf(ctx, "admin"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected deleted role to be unknown, got %v", err)
	}
}

func TestCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	table := NewRoleTable(memory.NewRoles(defaultLevels()), CacheConfig{})

	if err := table.Create(ctx, "auditor", 70); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := table.Create(ctx, "auditor", 80); !errors.Is(err, ErrRoleExists) {
		t.Fatalf("expected ErrRoleExists, got %v", err)
	}
	if err := table.Create(ctx, "", 1); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := table.Delete(ctx, "ghost"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}

	all, err := table.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if all["auditor"] != 70 || len(all) != 4 {
		t.Fatalf("unexpected roles: %v", all)
	}
}

func TestSeedOverwrites(t *testing.T) {
	ctx := context.Background()
	table := NewRoleTable(memory.NewRoles(map[string]int{"user": 10}), CacheConfig{})

	if err := table.Seed(ctx, defaultLevels()); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	if level, _ := table.LevelOf(ctx, "user"); level != 50 {
		t.Fatalf("expected seed to overwrite, got %d", level)
	}
}

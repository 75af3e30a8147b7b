package goGate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGate/store"
	"github.com/MrEthical07/goGate/store/memory"
)

var testEpoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 4
	cfg.Metrics.Enabled = true
	cfg.Roles.CacheSize = 0
	return cfg
}

func testRoles() map[string]int {
	return map[string]int{"admin": 100, "editor": 60, "user": 50}
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// buildEngine finishes b with a test clock, seeds the standard roles and
// the admin/admin and user/user accounts.
func buildEngine(t testing.TB, b *Builder, clock *testClock) *Engine {
	t.Helper()
	engine, err := b.WithClock(clock.Now).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if err := engine.SeedRoles(ctx, testRoles()); err != nil {
		t.Fatalf("SeedRoles failed: %v", err)
	}
	for _, name := range []string{"admin", "user"} {
		if _, err := engine.CreateUser(ctx, name, name, name, name+"@localhost.local", name+" test user"); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}
	return engine
}

func newTestEngine(t testing.TB, cfg Config) (*Engine, *testClock) {
	t.Helper()
	clock := newTestClock()
	return buildEngine(t, New().WithConfig(cfg), clock), clock
}

func login(t testing.TB, engine *Engine, username, password string) string {
	t.Helper()
	sid, err := engine.Login(context.Background(), username, password)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", username, err)
	}
	return sid
}

// flakyUsers fails every call once broken is set.
type flakyUsers struct {
	store.Users
	broken atomic.Bool
}

func newFlakyUsers() *flakyUsers {
	return &flakyUsers{Users: memory.NewUsers()}
}

func (f *flakyUsers) err() error {
	return fmt.Errorf("%w: connection refused", store.ErrUnavailable)
}

func (f *flakyUsers) Get(ctx context.Context, username string) (store.UserRecord, error) {
	if f.broken.Load() {
		return store.UserRecord{}, f.err()
	}
	return f.Users.Get(ctx, username)
}

func (f *flakyUsers) Put(ctx context.Context, user store.UserRecord) error {
	if f.broken.Load() {
		return f.err()
	}
	return f.Users.Put(ctx, user)
}

func (f *flakyUsers) Create(ctx context.Context, user store.UserRecord) error {
	if f.broken.Load() {
		return f.err()
	}
	return f.Users.Create(ctx, user)
}

func (f *flakyUsers) TouchLastLogin(ctx context.Context, username, expectedHash string, at time.Time) error {
	if f.broken.Load() {
		return f.err()
	}
	return f.Users.TouchLastLogin(ctx, username, expectedHash, at)
}

// interleavedUsers runs afterGet once, right after the next Get returns,
// to model a concurrent writer landing between a read and its write-back.
type interleavedUsers struct {
	store.Users
	mu       sync.Mutex
	afterGet func()
}

func newInterleavedUsers() *interleavedUsers {
	return &interleavedUsers{Users: memory.NewUsers()}
}

func (u *interleavedUsers) arm(fn func()) {
	u.mu.Lock()
	u.afterGet = fn
	u.mu.Unlock()
}

func (u *interleavedUsers) Get(ctx context.Context, username string) (store.UserRecord, error) {
	rec, err := u.Users.Get(ctx, username)
	u.mu.Lock()
	fn := u.afterGet
	u.afterGet = nil
	u.mu.Unlock()
	if fn != nil {
		fn()
	}
	return rec, err
}

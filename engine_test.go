package goGate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/store"
	"github.com/MrEthical07/goGate/store/memory"
)

func TestLoginAndCheckEndToEnd(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	sid := login(t, engine, "admin", "admin")

	d, err := engine.Check(ctx, sid, "admin")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !d.Allowed || d.User.Username != "admin" {
		t.Fatalf("expected admin to be allowed, got %+v", d)
	}

	if err := engine.Logout(ctx, sid); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	d, err = engine.Check(ctx, sid, "admin")
	if err != nil {
		t.Fatalf("Check after logout error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected deny after logout")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"empty password", "admin", ""},
		{"wrong password", "admin", "nimda"},
		{"unknown user", "mallory", "admin"},
		{"empty username", "", "admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sid, err := engine.Login(ctx, tc.username, tc.password)
			if err != ErrInvalidCredentials {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if sid != "" {
				t.Fatalf("expected no session id, got %q", sid)
			}
		})
	}

	if got := engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != uint64(len(cases)) {
		t.Fatalf("expected %d login failures counted, got %d", len(cases), got)
	}
}

func TestLoginRecordsLastLogin(t *testing.T) {
	engine, clock := newTestEngine(t, testConfig())
	clock.Advance(time.Hour)

	login(t, engine, "user", "user")

	users, err := engine.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers error: %v", err)
	}
	for _, u := range users {
		if u.Username == "user" && !u.LastLogin.Equal(clock.Now()) {
			t.Fatalf("expected LastLogin %v, got %v", clock.Now(), u.LastLogin)
		}
	}
}

func TestCurrentUserKeepsSessionAlive(t *testing.T) {
	cfg := testConfig()
	cfg.Session.IdleTimeout = time.Minute
	engine, clock := newTestEngine(t, cfg)
	ctx := context.Background()

	sid := login(t, engine, "user", "user")

	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Second)
		user, err := engine.CurrentUser(ctx, sid)
		if err != nil {
			t.Fatalf("CurrentUser at step %d: %v", i, err)
		}
		if user.Username != "user" {
			t.Fatalf("expected user, got %q", user.Username)
		}
	}

	clock.Advance(61 * time.Second)
	if _, err := engine.CurrentUser(ctx, sid); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after idle, got %v", err)
	}
}

func TestZeroIdleTimeoutExpiresImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Session.IdleTimeout = 0
	engine, clock := newTestEngine(t, cfg)
	ctx := context.Background()

	sid := login(t, engine, "admin", "admin")
	clock.Advance(time.Nanosecond)

	d, err := engine.Check(ctx, sid, "user")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected deny with zero idle timeout")
	}
	if _, err := engine.CurrentUser(ctx, sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSessionExpired]; got != 1 {
		t.Fatalf("expected 1 expired session, got %d", got)
	}
}

func TestAbsoluteTimeoutEndsActiveSession(t *testing.T) {
	cfg := testConfig()
	cfg.Session.IdleTimeout = time.Hour
	cfg.Session.AbsoluteTimeout = 2 * time.Hour
	engine, clock := newTestEngine(t, cfg)
	ctx := context.Background()

	sid := login(t, engine, "user", "user")
	for i := 0; i < 4; i++ {
		clock.Advance(30 * time.Minute)
		if _, err := engine.CurrentUser(ctx, sid); err != nil {
			t.Fatalf("CurrentUser step %d: %v", i, err)
		}
	}
	clock.Advance(time.Minute)
	if _, err := engine.CurrentUser(ctx, sid); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired past absolute timeout, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	sid := login(t, engine, "user", "user")
	if err := engine.Logout(ctx, sid); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	if err := engine.Logout(ctx, sid); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := engine.Logout(ctx, "not-a-session"); err != nil {
		t.Fatalf("Logout of garbage id: %v", err)
	}
	if _, err := engine.CurrentUser(ctx, sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCheckComparesLevels(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	userSID := login(t, engine, "user", "user")
	adminSID := login(t, engine, "admin", "admin")

	cases := []struct {
		sid     string
		role    string
		allowed bool
	}{
		{userSID, "user", true},
		{userSID, "editor", false},
		{userSID, "admin", false},
		{adminSID, "editor", true},
		{adminSID, "admin", true},
	}
	for _, tc := range cases {
		d, err := engine.Check(ctx, tc.sid, tc.role)
		if err != nil {
			t.Fatalf("Check(%s): %v", tc.role, err)
		}
		if d.Allowed != tc.allowed {
			t.Fatalf("Check(%s) for %s: expected allowed=%v", tc.role, d.User.Username, tc.allowed)
		}
	}
}

func TestAuthorizeRequirementKinds(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	sid := login(t, engine, "user", "user")

	cases := []struct {
		name    string
		req     Requirement
		allowed bool
	}{
		{"authenticated", Requirement{}, true},
		{"level met", Requirement{Level: 50}, true},
		{"level unmet", Requirement{Level: 51}, false},
		{"role beats level", Requirement{Role: "user", Level: 100}, true},
		{"fixed role", Requirement{FixedRole: "user"}, true},
		{"fixed role mismatch", Requirement{FixedRole: "editor"}, false},
		{"username", Requirement{Username: "user"}, true},
		{"username mismatch", Requirement{Username: "admin"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := engine.Authorize(ctx, sid, tc.req)
			if err != nil {
				t.Fatalf("Authorize error: %v", err)
			}
			if d.Allowed != tc.allowed {
				t.Fatalf("expected allowed=%v, got %v", tc.allowed, d.Allowed)
			}
		})
	}
}

func TestCheckUnknownRoleDeniesWithError(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	sid := login(t, engine, "admin", "admin")

	d, err := engine.Check(ctx, sid, "superuser")
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if d.Allowed {
		t.Fatal("expected deny for unknown role")
	}
}

func TestCheckUserWithDeletedRoleIsDenied(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if err := engine.CreateRole(ctx, "intern", 10); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := engine.CreateUser(ctx, "ivan", "ivan-pass", "intern", "", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	sid := login(t, engine, "ivan", "ivan-pass")
	if err := engine.DeleteRole(ctx, "intern"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}

	d, err := engine.Check(ctx, sid, "user")
	if !errors.Is(err, ErrUnknownRole) || d.Allowed {
		t.Fatalf("expected deny with ErrUnknownRole, got allowed=%v err=%v", d.Allowed, err)
	}
}

func TestDeletedUserSessionIsEnded(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	sid := login(t, engine, "user", "user")
	if err := engine.DeleteUser(ctx, "user"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	d, err := engine.Check(ctx, sid, "user")
	if err != nil || d.Allowed {
		t.Fatalf("expected plain deny, got allowed=%v err=%v", d.Allowed, err)
	}
	if _, err := engine.CurrentUser(ctx, sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session to be ended, got %v", err)
	}
}

func TestSessionsOfSameUserAreIndependent(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	first := login(t, engine, "user", "user")
	second := login(t, engine, "user", "user")
	if first == second {
		t.Fatal("expected distinct session ids")
	}

	if err := engine.Logout(ctx, first); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := engine.CurrentUser(ctx, second); err != nil {
		t.Fatalf("expected second session to survive, got %v", err)
	}
}

func TestStoreFailureSurfacesAsUnavailable(t *testing.T) {
	users := newFlakyUsers()
	clock := newTestClock()
	engine := buildEngine(t, New().WithConfig(testConfig()).WithUsers(users), clock)
	ctx := context.Background()

	sid := login(t, engine, "admin", "admin")
	users.broken.Store(true)

	if _, err := engine.Login(ctx, "admin", "admin"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Login, got %v", err)
	}

	d, err := engine.Check(ctx, sid, "admin")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Check, got %v", err)
	}
	if d.Allowed {
		t.Fatal("expected deny on store failure")
	}
	if engine.MetricsSnapshot().Counters[MetricStoreError] == 0 {
		t.Fatal("expected store errors to be counted")
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	weak, err := password.NewArgon2(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	hash, err := weak.Hash("carol", "carol-pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	users := memory.NewUsers()
	if err := users.Put(context.Background(), UserRecord{Username: "carol", Role: "user", PasswordHash: hash}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cfg := testConfig()
	cfg.Password.Time = 2
	engine := buildEngine(t, New().WithConfig(cfg).WithUsers(users), newTestClock())

	login(t, engine, "carol", "carol-pass")

	stored, err := users.Get(context.Background(), "carol")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PasswordHash == hash {
		t.Fatal("expected hash to be upgraded")
	}
	if engine.MetricsSnapshot().Counters[MetricPasswordUpgraded] != 1 {
		t.Fatal("expected one upgrade counted")
	}
	login(t, engine, "carol", "carol-pass")
}

func TestRedisBackedEngineRateLimitsLogin(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.RateLimit.MaxLoginAttempts = 3
	engine := buildEngine(t, New().WithConfig(cfg).WithRedis(rdb), newTestClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := engine.Login(ctx, "admin", "wrong"); err != ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	if _, err := engine.Login(ctx, "admin", "admin"); err != ErrInvalidCredentials {
		t.Fatalf("expected throttled login to look like bad credentials, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
		t.Fatalf("expected 1 rate limited login, got %d", got)
	}

	// Other accounts are unaffected.
	sid := login(t, engine, "user", "user")
	if _, err := engine.CurrentUser(ctx, sid); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
}

func TestRedisBackedEngineEndToEnd(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := buildEngine(t, New().WithConfig(testConfig()).WithRedis(rdb), newTestClock())
	ctx := context.Background()

	sid := login(t, engine, "admin", "admin")
	d, err := engine.Check(ctx, sid, "admin")
	if err != nil || !d.Allowed {
		t.Fatalf("expected allow, got allowed=%v err=%v", d.Allowed, err)
	}
	if err := engine.Logout(ctx, sid); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	d, err = engine.Check(ctx, sid, "admin")
	if err != nil || d.Allowed {
		t.Fatalf("expected deny after logout, got allowed=%v err=%v", d.Allowed, err)
	}
}

func TestCheckLatencyHistogram(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, _ := newTestEngine(t, cfg)

	sid := login(t, engine, "user", "user")
	for i := 0; i < 3; i++ {
		if _, err := engine.Check(context.Background(), sid, "user"); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	var total uint64
	for _, n := range engine.MetricsSnapshot().Histograms[MetricCheckLatency] {
		total += n
	}
	if total != 3 {
		t.Fatalf("expected 3 observations, got %d", total)
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var engine *Engine
	if _, err := engine.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Check(context.Background(), "x", "user"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Session.IdleTimeout = -time.Second
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
}

func TestLoginDoesNotResurrectUserDeletedMidLogin(t *testing.T) {
	users := newInterleavedUsers()
	engine := buildEngine(t, New().WithConfig(testConfig()).WithUsers(users), newTestClock())
	ctx := context.Background()

	users.arm(func() {
		if err := engine.DeleteUser(ctx, "user"); err != nil {
			t.Errorf("DeleteUser: %v", err)
		}
	})
	if _, err := engine.Login(ctx, "user", "user"); err != ErrInvalidCredentials {
		t.Fatalf("expected login racing a delete to fail, got %v", err)
	}

	if _, err := users.Users.Get(ctx, "user"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted user to stay deleted, got %v", err)
	}
	if _, err := engine.Login(ctx, "user", "user"); err != ErrInvalidCredentials {
		t.Fatalf("expected later login to fail, got %v", err)
	}
}

func TestLoginDoesNotRevertPasswordChangedMidLogin(t *testing.T) {
	users := newInterleavedUsers()
	engine := buildEngine(t, New().WithConfig(testConfig()).WithUsers(users), newTestClock())
	ctx := context.Background()

	users.arm(func() {
		if err := engine.ChangePassword(ctx, "user", "rotated-pass"); err != nil {
			t.Errorf("ChangePassword: %v", err)
		}
	})
	if _, err := engine.Login(ctx, "user", "user"); err != ErrInvalidCredentials {
		t.Fatalf("expected login with superseded password to fail, got %v", err)
	}

	if _, err := engine.Login(ctx, "user", "user"); err != ErrInvalidCredentials {
		t.Fatalf("expected old password to stay revoked, got %v", err)
	}
	login(t, engine, "user", "rotated-pass")
}

func TestHashUpgradeDoesNotResurrectDeletedUser(t *testing.T) {
	weak, err := password.NewArgon2(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	hash, err := weak.Hash("carol", "carol-pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	users := newInterleavedUsers()
	if err := users.Put(context.Background(), UserRecord{Username: "carol", Role: "user", PasswordHash: hash}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cfg := testConfig()
	cfg.Password.Time = 2
	engine := buildEngine(t, New().WithConfig(cfg).WithUsers(users), newTestClock())
	ctx := context.Background()

	users.arm(func() {
		if err := engine.DeleteUser(ctx, "carol"); err != nil {
			t.Errorf("DeleteUser: %v", err)
		}
	})
	if _, err := engine.Login(ctx, "carol", "carol-pass"); err != ErrInvalidCredentials {
		t.Fatalf("expected login racing a delete to fail, got %v", err)
	}
	if _, err := users.Users.Get(ctx, "carol"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted user to stay deleted, got %v", err)
	}
	if engine.MetricsSnapshot().Counters[MetricPasswordUpgraded] != 0 {
		t.Fatal("expected no upgrade counted for a deleted user")
	}
}

//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes always includes miniredis. REDIS_ADDR adds a standalone server
// and REDIS_SENTINEL_ADDRS (with REDIS_SENTINEL_MASTER) a failover client.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				return connect(t, redis.NewClient(&redis.Options{Addr: addr}))
			},
		})
	}

	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				return connect(t, redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				}))
			},
		})
	}

	return modes
}

// connect pings rdb and flushes the test database before and after use.
func connect(t *testing.T, rdb *redis.Client) (redis.UniversalClient, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("cannot connect to Redis: %v", err)
	}
	rdb.FlushDB(context.Background())
	return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func integrationConfig() goGate.Config {
	cfg := goGate.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 4
	cfg.Roles.CacheSize = 0
	return cfg
}

func newEngine(t *testing.T, rdb redis.UniversalClient, cfg goGate.Config) *goGate.Engine {
	t.Helper()
	engine, err := goGate.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if err := engine.SeedRoles(ctx, map[string]int{"admin": 100, "editor": 60, "user": 50}); err != nil {
		t.Fatalf("SeedRoles: %v", err)
	}
	for _, name := range []string{"admin", "user"} {
		if _, err := engine.CreateUser(ctx, name, name, name, name+"@localhost.local", ""); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}
	return engine
}

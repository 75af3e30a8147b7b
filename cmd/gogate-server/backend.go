package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/config"
	"github.com/MrEthical07/goGate/internal/logger"
	"github.com/MrEthical07/goGate/store/postgres"
)

// backend owns the connections behind the Engine's stores.
type backend struct {
	redis     *redis.Client
	miniredis *miniredis.Miniredis
	db        *sql.DB
}

// openBackend connects the stores named by cfg. Postgres holds users, roles
// and pending registrations when a DSN is set. Sessions always live in
// Redis; without GOGATE_REDIS_ADDR an in-process miniredis stands in.
func openBackend(ctx context.Context, cfg *config.Server, log *logger.Logger) (*backend, error) {
	b := &backend{}

	if cfg.RedisAddr != "" {
		b.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("using redis", "addr", cfg.RedisAddr)
	} else {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.miniredis = mr
		b.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		log.Warn("GOGATE_REDIS_ADDR not set, using in-process miniredis; data is lost on exit")
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			b.Close()
			return nil, err
		}
		log.Info("using postgres for users, roles and registrations")
	}

	return b, nil
}

func (b *backend) configure(builder *goGate.Builder) *goGate.Builder {
	builder = builder.WithRedis(b.redis)
	if b.db != nil {
		builder = builder.
			WithUsers(postgres.NewUsers(b.db)).
			WithRoles(postgres.NewRoles(b.db)).
			WithRegistrations(postgres.NewRegistrations(b.db))
	}
	return builder
}

func (b *backend) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.miniredis != nil {
		b.miniredis.Close()
	}
}

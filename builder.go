package goGate

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/MrEthical07/goGate/store"
	"github.com/MrEthical07/goGate/store/memory"
	"github.com/MrEthical07/goGate/store/redisstore"
)

// Builder configures an Engine.
//
// Builder instances are intended to be configured during initialization and
// then discarded; Build may only be called once.
//
// Any store left unset is backed by Redis when WithRedis was given and by
// process memory otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users          store.Users
	roles          store.Roles
	registrations  store.Registrations
	sessionBackend session.Backend

	logger    *slog.Logger
	auditSink AuditSink
	notifier  Notifier
	clock     func() time.Time

	built bool
}

// New returns a Builder starting from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for default stores and login throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUsers sets the credential store.
func (b *Builder) WithUsers(users store.Users) *Builder {
	b.users = users
	return b
}

// WithRoles sets the role level store.
func (b *Builder) WithRoles(roles store.Roles) *Builder {
	b.roles = roles
	return b
}

// WithRegistrations sets the pending registration store.
func (b *Builder) WithRegistrations(regs store.Registrations) *Builder {
	b.registrations = regs
	return b
}

// WithSessionBackend sets where sessions are persisted.
func (b *Builder) WithSessionBackend(backend session.Backend) *Builder {
	b.sessionBackend = backend
	return b
}

// WithLogger sets the Engine logger. Without one, log output is discarded.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination of audit events. Audit.Enabled must
// also be set for events to be dispatched.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithNotifier sets the out-of-band delivery hook for registration and
// reset tokens.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithClock overrides time.Now. Tests use it to drive session timeouts.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Check latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, fills in default stores and returns
// an immutable Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- STORES --------
	users, roles, regs, backend := b.users, b.roles, b.registrations, b.sessionBackend
	if b.redis != nil {
		prefix := cfg.Session.RedisPrefix
		if users == nil {
			users = redisstore.NewUsers(b.redis, prefix)
		}
		if roles == nil {
			roles = redisstore.NewRoles(b.redis, prefix)
		}
		if regs == nil {
			regs = redisstore.NewRegistrations(b.redis, prefix, redisstore.DefaultRegistrationGrace)
		}
		if backend == nil {
			backend = session.NewStore(b.redis, prefix)
		}
	} else {
		if users == nil {
			users = memory.NewUsers()
		}
		if roles == nil {
			roles = memory.NewRoles(nil)
		}
		if regs == nil {
			regs = memory.NewRegistrations()
		}
		if backend == nil {
			backend = session.NewMemoryStore()
		}
	}

	// -------- SESSIONS --------
	sessions, err := session.NewManager(backend, session.Config{
		IdleTimeout:     cfg.Session.IdleTimeout,
		AbsoluteTimeout: cfg.Session.AbsoluteTimeout,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:        cfg,
		users:         users,
		roles:         permission.NewRoleTable(roles, permission.CacheConfig{Size: cfg.Roles.CacheSize, TTL: cfg.Roles.CacheTTL}),
		registrations: regs,
		sessions:      sessions,
		passwordHash:  ph,
		logger:        logger,
		notifier:      b.notifier,
		now:           clock,
		metrics:       NewMetrics(cfg.Metrics),
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		if b.redis != nil {
			engine.rateLimiter = rate.New(b.redis, rate.Config{
				Prefix:           cfg.Session.RedisPrefix,
				EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
				MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
				Window:           cfg.RateLimit.Window,
			})
		} else {
			logger.Warn("login rate limiting disabled: no redis client configured")
		}
	}

	// -------- RESET TOKENS --------
	if cfg.Reset.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			SigningKey: cloneBytes(cfg.Reset.SigningKey),
			Issuer:     "goGate",
		})
		if err != nil {
			return nil, err
		}
		engine.jwtManager = jm
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine.initFlowDeps()

	b.built = true

	return engine, nil
}

// Command gogate-server runs the goGate demo: a cookie-session login with
// role-gated pages and self-service registration.
//
// Environment (all optional):
//
//	GOGATE_ADDR           listen address, default :8080
//	GOGATE_REDIS_ADDR     Redis for sessions; miniredis when unset
//	GOGATE_POSTGRES_DSN   Postgres for users, roles and registrations
//	GOGATE_ROLES_FILE     YAML role table; admin=100, editor=60, user=50 when unset
//	GOGATE_COOKIE_KEY     32+ byte cookie signing key
//	GOGATE_SESSION_IDLE   idle timeout, e.g. 30m; 0s expires sessions at once
//	GOGATE_OTEL_ENDPOINT  OTLP/gRPC collector; metrics are pushed there when set
//
// Routes: /, /login, /logout, /admin, /my_role, /register,
// /validate_registration/{token}, /metrics.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/cookie"
	"github.com/MrEthical07/goGate/internal/config"
	"github.com/MrEthical07/goGate/internal/logger"
	"github.com/MrEthical07/goGate/jwt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	roles, err := config.LoadRoles(cfg.RolesFile)
	if err != nil {
		logger.Fatal("failed to load roles", "error", err)
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer be.Close()

	builder := be.configure(goGate.New().WithConfig(cfg.Engine())).
		WithLogger(logger.Logger).
		WithNotifier(registrationMailer(logger))
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goGate.NewSlogSink(logger.Logger.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		logger.Fatal("failed to build engine", "error", err)
	}
	defer engine.Close()

	if err := seed(ctx, engine, roles); err != nil {
		logger.Fatal("failed to seed accounts", "error", err)
	}

	stopTelemetry, err := startTelemetry(ctx, cfg.OTel, engine, logger)
	if err != nil {
		logger.Fatal("failed to start telemetry", "error", err)
	}

	codec, err := newCodec(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create cookie codec", "error", err)
	}

	purger := cron.New()
	if _, err := purger.AddFunc(cfg.Registration.PurgeSchedule, func() {
		n, err := engine.PurgeExpiredRegistrations(ctx, time.Now())
		if err != nil {
			logger.Error("purge expired registrations", "error", err)
			return
		}
		logger.Debug("purged expired registrations", "count", n)
	}); err != nil {
		logger.Fatal("failed to schedule registration purge", "error", err)
	}
	purger.Start()

	srv := &server{
		engine: engine,
		codec:  codec,
		log:    logger,
		now:    time.Now,
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", "address", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
	<-purger.Stop().Done()
	if err := stopTelemetry(shutdownCtx); err != nil {
		logger.Error("error during telemetry shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}

// seed installs the role table and, on an empty user store, the admin/admin
// and user/user demo accounts.
func seed(ctx context.Context, engine *goGate.Engine, roles map[string]int) error {
	if err := engine.SeedRoles(ctx, roles); err != nil {
		return err
	}

	users, err := engine.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	for _, name := range []string{"admin", "user"} {
		if _, ok := roles[name]; !ok {
			continue
		}
		if _, err := engine.CreateUser(ctx, name, name, name, name+"@localhost.local", "demo "+name); err != nil {
			return err
		}
	}
	return nil
}

func newCodec(cfg *config.Server, log *logger.Logger) (*cookie.Codec, error) {
	key := []byte(cfg.Cookie.Key)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Warn("GOGATE_COOKIE_KEY not set, generated a random key; sessions do not survive restarts")
	}

	tokens, err := jwt.NewManager(jwt.Config{SigningKey: key, Issuer: "gogate-server"})
	if err != nil {
		return nil, err
	}
	return cookie.NewCodec(tokens, cookie.Options{
		Name:   cfg.Cookie.Name,
		Secure: cfg.Cookie.Secure,
	})
}

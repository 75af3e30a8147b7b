// Package config loads the goGate server settings from GOGATE_* variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	goGate "github.com/MrEthical07/goGate"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "GOGATE_"

// Server holds everything the demo server reads from the environment.
type Server struct {
	LogLevel int    `env:"LOG_LEVEL" envDefault:"0"`
	Addr     string `env:"ADDR" envDefault:":8080"`

	RedisAddr   string `env:"REDIS_ADDR"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	RolesFile   string `env:"ROLES_FILE"`

	Cookie       Cookie       `envPrefix:"COOKIE_"`
	Session      Session      `envPrefix:"SESSION_"`
	Password     Password     `envPrefix:"PASSWORD_"`
	Registration Registration `envPrefix:"REGISTRATION_"`
	Reset        Reset        `envPrefix:"RESET_"`
	Audit        Audit        `envPrefix:"AUDIT_"`
	OTel         OTel         `envPrefix:"OTEL_"`
}

// Cookie configures the session cookie. An empty Key makes the server
// generate one at startup, which invalidates cookies on restart.
type Cookie struct {
	Key    string `env:"KEY"`
	Name   string `env:"NAME" envDefault:"gogate_session"`
	Secure bool   `env:"SECURE" envDefault:"false"`
}

// Session bounds session lifetime.
type Session struct {
	Idle     time.Duration `env:"IDLE" envDefault:"30m"`
	Absolute time.Duration `env:"ABSOLUTE" envDefault:"12h"`
}

// Password holds the policy and Argon2id costs.
type Password struct {
	MinLength   int    `env:"MIN_LENGTH" envDefault:"4"`
	Memory      uint32 `env:"MEMORY_KIB" envDefault:"65536"`
	Time        uint32 `env:"TIME" envDefault:"3"`
	Parallelism uint8  `env:"PARALLELISM" envDefault:"2"`
}

// Registration configures self-service sign-up.
type Registration struct {
	Enabled       bool          `env:"ENABLED" envDefault:"true"`
	TTL           time.Duration `env:"TTL" envDefault:"24h"`
	MaxLevel      int           `env:"MAX_LEVEL" envDefault:"50"`
	PurgeSchedule string        `env:"PURGE_SCHEDULE" envDefault:"@every 10m"`
}

// Reset enables password reset tokens when Key is set.
type Reset struct {
	Key string        `env:"KEY"`
	TTL time.Duration `env:"TTL" envDefault:"15m"`
}

// Audit routes audit events to the process log.
type Audit struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
}

// OTel pushes engine metrics to an OTLP/gRPC collector when Endpoint is set.
type OTel struct {
	Endpoint    string        `env:"ENDPOINT"`
	Insecure    bool          `env:"INSECURE" envDefault:"true"`
	Interval    time.Duration `env:"INTERVAL" envDefault:"10s"`
	ServiceName string        `env:"SERVICE_NAME" envDefault:"gogate-server"`
}

// Enabled reports whether an export endpoint is configured.
func (o OTel) Enabled() bool {
	return o.Endpoint != ""
}

// New loads configuration from the process environment.
func New() (*Server, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

func parse(opts env.Options) (*Server, error) {
	cfg := Server{}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Engine translates the server settings into an Engine configuration.
func (s *Server) Engine() goGate.Config {
	cfg := goGate.DefaultConfig()

	cfg.Session.IdleTimeout = s.Session.Idle
	cfg.Session.AbsoluteTimeout = s.Session.Absolute

	cfg.Password.MinLength = s.Password.MinLength
	cfg.Password.Memory = s.Password.Memory
	cfg.Password.Time = s.Password.Time
	cfg.Password.Parallelism = s.Password.Parallelism

	cfg.Registration.Enabled = s.Registration.Enabled
	cfg.Registration.TTL = s.Registration.TTL
	cfg.Registration.MaxLevel = s.Registration.MaxLevel

	if s.Reset.Key != "" {
		cfg.Reset.Enabled = true
		cfg.Reset.SigningKey = []byte(s.Reset.Key)
		cfg.Reset.TTL = s.Reset.TTL
	}

	cfg.Audit.Enabled = s.Audit.Enabled
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	return cfg
}

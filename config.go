package goGate

import (
	"errors"
	"time"
)

// Config is the complete Engine configuration. It is copied into the Engine
// at Build and never changes afterwards.
type Config struct {
	Session      SessionConfig
	Password     PasswordConfig
	Registration RegistrationConfig
	Reset        ResetConfig
	RateLimit    RateLimitConfig
	Roles        RolesConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds session lifetime.
//
// IdleTimeout is measured from the last successful validation and
// AbsoluteTimeout from login. Zero is allowed for both: a session with
// IdleTimeout 0 is valid only at the instant it was created.
type SessionConfig struct {
	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
	RedisPrefix     string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goGate APIs.
//
// MinLength applies to passwords chosen through Register, CreateUser,
// ChangePassword and ResetPassword. Login never checks it.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	MinLength        int
	UpgradeOnLogin   bool
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig defines a public type used by goGate APIs.
type RegistrationConfig struct {
	Enabled     bool
	TTL         time.Duration
	DefaultRole string
	// MaxLevel is the highest role level a self-registered account may request.
	MaxLevel int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// ResetConfig controls stateless password reset tokens.
type ResetConfig struct {
	Enabled    bool
	TTL        time.Duration
	SigningKey []byte
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls login throttling. It only takes effect when the
// Builder is given a Redis client.
type RateLimitConfig struct {
	Enabled          bool
	MaxLoginAttempts int
	Window           time.Duration
	EnableIPThrottle bool
}

/*
====================================
ROLES CONFIG
====================================
*/

// RolesConfig sizes the role level cache. CacheSize 0 disables it.
type RolesConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goGate APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goGate APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			IdleTimeout:     30 * time.Minute,
			AbsoluteTimeout: 12 * time.Hour,
			RedisPrefix:     "gg",
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			MinLength:        8,
			UpgradeOnLogin:   true,
		},
		Registration: RegistrationConfig{
			Enabled:     true,
			TTL:         24 * time.Hour,
			DefaultRole: "user",
			MaxLevel:    50,
		},
		Reset: ResetConfig{
			Enabled: false,
			TTL:     15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MaxLoginAttempts: 5,
			Window:           15 * time.Minute,
			EnableIPThrottle: false,
		},
		Roles: RolesConfig{
			CacheSize: 128,
			CacheTTL:  time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Reset.SigningKey = cloneBytes(cfg.Reset.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first problem found and does not modify c.
func (c *Config) Validate() error {
	// Session
	if c.Session.IdleTimeout < 0 {
		return errors.New("Session IdleTimeout must be >= 0")
	}
	if c.Session.AbsoluteTimeout < 0 {
		return errors.New("Session AbsoluteTimeout must be >= 0")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MinLength > c.Password.MaxPasswordBytes {
		return errors.New("Password MinLength must be <= MaxPasswordBytes")
	}

	// Registration
	if c.Registration.Enabled {
		if c.Registration.TTL <= 0 {
			return errors.New("Registration TTL must be > 0")
		}
		if c.Registration.DefaultRole == "" {
			return errors.New("Registration DefaultRole is required when registration is enabled")
		}
	}

	// Reset
	if c.Reset.Enabled {
		if c.Reset.TTL <= 0 {
			return errors.New("Reset TTL must be > 0")
		}
		if len(c.Reset.SigningKey) < 32 {
			return errors.New("Reset SigningKey must be at least 256 bits")
		}
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Roles
	if c.Roles.CacheSize < 0 {
		return errors.New("Roles CacheSize must be >= 0")
	}
	if c.Roles.CacheTTL < 0 {
		return errors.New("Roles CacheTTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}

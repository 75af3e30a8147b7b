package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Prefix: EnvPrefix, Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Equal(t, 30*time.Minute, cfg.Session.Idle)
	assert.Equal(t, 12*time.Hour, cfg.Session.Absolute)
	assert.Equal(t, 4, cfg.Password.MinLength)
	assert.Equal(t, "@every 10m", cfg.Registration.PurgeSchedule)
	assert.True(t, cfg.Registration.Enabled)
	assert.False(t, cfg.OTel.Enabled())
	assert.Equal(t, 10*time.Second, cfg.OTel.Interval)

	engineCfg := cfg.Engine()
	assert.NoError(t, engineCfg.Validate())
	assert.False(t, engineCfg.Reset.Enabled)
	assert.True(t, engineCfg.Metrics.Enabled)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(env.Options{Prefix: EnvPrefix, Environment: map[string]string{
		"GOGATE_ADDR":                   ":9090",
		"GOGATE_REDIS_ADDR":             "localhost:6379",
		"GOGATE_SESSION_IDLE":           "0s",
		"GOGATE_COOKIE_SECURE":          "true",
		"GOGATE_REGISTRATION_TTL":       "1h",
		"GOGATE_RESET_KEY":              "0123456789abcdef0123456789abcdef",
		"GOGATE_PASSWORD_MIN_LENGTH":    "10",
		"GOGATE_REGISTRATION_MAX_LEVEL": "60",
	}})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Duration(0), cfg.Session.Idle)
	assert.True(t, cfg.Cookie.Secure)

	engineCfg := cfg.Engine()
	assert.Equal(t, time.Duration(0), engineCfg.Session.IdleTimeout)
	assert.Equal(t, time.Hour, engineCfg.Registration.TTL)
	assert.Equal(t, 60, engineCfg.Registration.MaxLevel)
	assert.Equal(t, 10, engineCfg.Password.MinLength)
	assert.True(t, engineCfg.Reset.Enabled)
	assert.Len(t, engineCfg.Reset.SigningKey, 32)
}

func TestParseOTel(t *testing.T) {
	cfg, err := parse(env.Options{Prefix: EnvPrefix, Environment: map[string]string{
		"GOGATE_OTEL_ENDPOINT": "collector:4317",
		"GOGATE_OTEL_INSECURE": "false",
		"GOGATE_OTEL_INTERVAL": "30s",
	}})
	require.NoError(t, err)

	assert.True(t, cfg.OTel.Enabled())
	assert.Equal(t, "collector:4317", cfg.OTel.Endpoint)
	assert.False(t, cfg.OTel.Insecure)
	assert.Equal(t, 30*time.Second, cfg.OTel.Interval)
	assert.Equal(t, "gogate-server", cfg.OTel.ServiceName)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := parse(env.Options{Prefix: EnvPrefix, Environment: map[string]string{
		"GOGATE_SESSION_IDLE": "soon",
	}})
	assert.Error(t, err)
}

func TestLoadRolesDefault(t *testing.T) {
	roles, err := LoadRoles("")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"admin": 100, "editor": 60, "user": 50}, roles)
}

func TestLoadRolesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  owner: 200\n  guest: 0\n"), 0o600))

	roles, err := LoadRoles(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"owner": 200, "guest": 0}, roles)
}

func TestParseRolesRejectsBadInput(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":    "",
		"no roles": "roles: {}\n",
		"negative": "roles:\n  admin: -1\n",
		"not yaml": "roles: [admin\n",
		"bad type": "roles:\n  admin: high\n",
	} {
		_, err := ParseRoles([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestLoadRolesMissingFile(t *testing.T) {
	_, err := LoadRoles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

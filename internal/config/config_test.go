package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "env: development\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 180*time.Second, cfg.Upstream.DiscoverTimeout)
	assert.Equal(t, 300*time.Second, cfg.Upstream.CompareTimeout)
	assert.Equal(t, 45*time.Second, cfg.Upstream.TrialDiscoverTimeout)
	assert.Equal(t, 120*time.Second, cfg.Upstream.TrialCompareTimeout)
	assert.Equal(t, 256, cfg.Audit.BufferSize)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.False(t, cfg.Archive.Enable)
	assert.True(t, cfg.RateLimit.Enable)
	assert.Equal(t, 50, cfg.RateLimit.Max)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.NotEmpty(t, cfg.DSN)
	assert.NotEmpty(t, cfg.RedisURL)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfigFile(t, `
port: 9090
env: production
database:
  host: db.internal
  port: 3307
  user: pdplens
  password: s3cret
  name: pdplens_prod
redis:
  host: cache.internal
  port: 6380
  db: 2
upstream:
  base_url: http://engine.internal:8000/
  discover_timeout: 2m
  compare_timeout: 4m
  trial_discover_timeout: 30s
  trial_compare_timeout: 90s
audit:
  buffer_size: 512
  retention_days: 30
archive:
  enable: true
  bucket: pdplens-reports
  region: eu-west-1
  access_key_id: AKIA
  secret_access_key: secret
ratelimit:
  max: 10
  window: 2s
allowed_origins:
  - https://app.pdplens.io
jwt_secret: some-secret
trial_enabled: true
timezone: Europe/Berlin
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "pdplens_prod", cfg.Database.Name)
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "http://engine.internal:8000", cfg.Upstream.BaseURL, "trailing slash is stripped")
	assert.Equal(t, 2*time.Minute, cfg.Upstream.DiscoverTimeout)
	assert.Equal(t, 4*time.Minute, cfg.Upstream.CompareTimeout)
	assert.Equal(t, 30*time.Second, cfg.Upstream.TrialDiscoverTimeout)
	assert.Equal(t, 90*time.Second, cfg.Upstream.TrialCompareTimeout)
	assert.Equal(t, 512, cfg.Audit.BufferSize)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.True(t, cfg.Archive.Enable)
	assert.Equal(t, "pdplens-reports", cfg.Archive.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Archive.Region)
	assert.Equal(t, 10, cfg.RateLimit.Max)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"https://app.pdplens.io"}, cfg.AllowedOrigins)
	assert.Equal(t, "some-secret", cfg.JWTSecret)
	assert.True(t, cfg.TrialEnabled)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
}

func TestLoadAliasKeys(t *testing.T) {
	path := writeConfigFile(t, `
upstream:
  url: http://engine:8000
  discover_timeout_seconds: 60
  compare_timeout_seconds: 120
cors_allowed_origins:
  - https://legacy.pdplens.io
jwtsecret: legacy-secret
enable_trial: true
tz: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://engine:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Upstream.DiscoverTimeout)
	assert.Equal(t, 120*time.Second, cfg.Upstream.CompareTimeout)
	assert.Equal(t, []string{"https://legacy.pdplens.io"}, cfg.AllowedOrigins)
	assert.Equal(t, "legacy-secret", cfg.JWTSecret)
	assert.True(t, cfg.TrialEnabled)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PDPLENS_PORT", "7070")
	t.Setenv("PDPLENS_UPSTREAM_URL", "http://override:9000/")
	t.Setenv("PDPLENS_JWT_SECRET", "env-secret")

	path := writeConfigFile(t, "port: 9090\njwt_secret: file-secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "http://override:9000", cfg.Upstream.BaseURL)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, "no_such_key: true\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "port: 70000\n"},
		{"negative redis db", "redis:\n  db: -1\n"},
		{"zero discover timeout", "upstream:\n  discover_timeout: 0s\n"},
		{"bad duration", "upstream:\n  compare_timeout: fast\n"},
		{"archive without bucket", "archive:\n  enable: true\n"},
		{"zero audit buffer", "audit:\n  buffer_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
}

func TestLoadOrDefaultBrokenFile(t *testing.T) {
	path := writeConfigFile(t, "port: [not a number\n")
	_, err := LoadOrDefault(path)
	assert.Error(t, err)
}

func TestDatabaseDSNValue(t *testing.T) {
	cfg := normalizeDatabaseConfig(DatabaseRuntimeConfig{
		Host:      "db.internal",
		Port:      3306,
		User:      "pdplens",
		Password:  "pw",
		Name:      "pdplens",
		ParseTime: true,
	})
	dsn := cfg.DSNValue()
	assert.Contains(t, dsn, "pdplens:pw@tcp(db.internal:3306)/pdplens")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	explicit := DatabaseRuntimeConfig{DSN: "user:pw@tcp(h:3306)/db"}
	assert.Equal(t, "user:pw@tcp(h:3306)/db", explicit.DSNValue())
}

func TestRedisURLValue(t *testing.T) {
	cfg := RedisRuntimeConfig{Host: "cache.internal", Port: 6380, DB: 3, Password: "pw"}
	assert.Equal(t, "redis://:pw@cache.internal:6380/3", cfg.URLValue())

	raw := RedisRuntimeConfig{URL: "cache:6379"}
	assert.Equal(t, "redis://cache:6379", raw.URLValue())
}

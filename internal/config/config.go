// Package config loads the gateway's startup configuration from YAML with
// environment overrides. The resulting AppConfig is read-only for the life
// of the process.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads, normalizes and validates the config file at configPath.
// A missing file is an error; use LoadOrDefault where defaults suffice.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault behaves like Load but falls back to built-in defaults plus
// environment overrides when the file does not exist.
func LoadOrDefault(configPath string) (*AppConfig, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	def := defaultAppConfig()
	applyEnvOverrides(&def)
	if verr := validate(&def); verr != nil {
		return nil, verr
	}
	return &def, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Upstream: UpstreamRuntimeConfig{
			BaseURL:              defaultUpstreamBaseURL,
			DiscoverTimeout:      defaultDiscoverTimeout,
			CompareTimeout:       defaultCompareTimeout,
			TrialDiscoverTimeout: defaultTrialDiscoverTimeout,
			TrialCompareTimeout:  defaultTrialCompareTimeout,
		},
		Audit: AuditRuntimeConfig{
			BufferSize:    defaultAuditBufferSize,
			RetentionDays: defaultAuditRetentionDays,
		},
		Archive: ArchiveRuntimeConfig{
			Region:     defaultArchiveRegion,
			BufferSize: defaultArchiveBufferSize,
		},
		RateLimit: RateLimitRuntimeConfig{
			Enable: true,
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	if err := applyRawUpstreamConfig(&cfg.Upstream, raw.Upstream); err != nil {
		return err
	}

	if raw.Audit.BufferSize != nil {
		cfg.Audit.BufferSize = *raw.Audit.BufferSize
	}
	if raw.Audit.RetentionDays != nil {
		cfg.Audit.RetentionDays = *raw.Audit.RetentionDays
	}

	if raw.Archive.Enable != nil {
		cfg.Archive.Enable = *raw.Archive.Enable
	}
	if v := strings.TrimSpace(raw.Archive.Endpoint); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := strings.TrimSpace(raw.Archive.Region); v != "" {
		cfg.Archive.Region = v
	}
	if v := strings.TrimSpace(raw.Archive.Bucket); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := strings.TrimSpace(raw.Archive.AccessKeyID); v != "" {
		cfg.Archive.AccessKeyID = v
	}
	if v := strings.TrimSpace(raw.Archive.SecretAccessKey); v != "" {
		cfg.Archive.SecretAccessKey = v
	}
	if raw.Archive.PathStyleAccess != nil {
		cfg.Archive.PathStyleAccess = *raw.Archive.PathStyleAccess
	}
	if raw.Archive.BufferSize != nil {
		cfg.Archive.BufferSize = *raw.Archive.BufferSize
	}

	if raw.Bark.Enable != nil {
		cfg.Bark.Enable = *raw.Bark.Enable
	}
	if v := strings.TrimSpace(raw.Bark.Key); v != "" {
		cfg.Bark.Key = v
	}
	if v := strings.TrimSpace(raw.Bark.ServerURL); v != "" {
		cfg.Bark.ServerURL = v
	}

	if raw.RateLimit.Enable != nil {
		cfg.RateLimit.Enable = *raw.RateLimit.Enable
	}
	if raw.RateLimit.Max != nil {
		cfg.RateLimit.Max = *raw.RateLimit.Max
	}
	window, err := resolveDuration(raw.RateLimit.Window, raw.RateLimit.WindowSeconds, cfg.RateLimit.Window)
	if err != nil {
		return fmt.Errorf("ratelimit.window: %w", err)
	}
	cfg.RateLimit.Window = window

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.JWTSecretLegacy); v != "" {
		cfg.JWTSecret = v
	}
	if raw.TrialEnabled != nil {
		cfg.TrialEnabled = *raw.TrialEnabled
	}
	if raw.EnableTrial != nil {
		cfg.TrialEnabled = *raw.EnableTrial
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
	return nil
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if v := strings.TrimSpace(raw.Redis.Scheme); v != "" {
		cfg.Scheme = v
	}
	if raw.Redis.Params != nil {
		cfg.Params = copyStringMap(raw.Redis.Params)
	}

	return normalizeRedisConfig(cfg)
}

func applyRawUpstreamConfig(cfg *UpstreamRuntimeConfig, raw rawUpstreamConfig) error {
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(raw.URL); v != "" {
		cfg.BaseURL = v
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	var err error
	if cfg.DiscoverTimeout, err = resolveDuration(raw.DiscoverTimeout, raw.DiscoverTimeoutSeconds, cfg.DiscoverTimeout); err != nil {
		return fmt.Errorf("upstream.discover_timeout: %w", err)
	}
	if cfg.CompareTimeout, err = resolveDuration(raw.CompareTimeout, raw.CompareTimeoutSeconds, cfg.CompareTimeout); err != nil {
		return fmt.Errorf("upstream.compare_timeout: %w", err)
	}
	if cfg.TrialDiscoverTimeout, err = resolveDuration(raw.TrialDiscoverTimeout, raw.TrialDiscoverTimeoutSeconds, cfg.TrialDiscoverTimeout); err != nil {
		return fmt.Errorf("upstream.trial_discover_timeout: %w", err)
	}
	if cfg.TrialCompareTimeout, err = resolveDuration(raw.TrialCompareTimeout, raw.TrialCompareTimeoutSeconds, cfg.TrialCompareTimeout); err != nil {
		return fmt.Errorf("upstream.trial_compare_timeout: %w", err)
	}
	return nil
}

// resolveDuration takes a duration string ("90s", "5m") or a seconds count,
// preferring the string form when both appear.
func resolveDuration(durationStr string, seconds *int, fallback time.Duration) (time.Duration, error) {
	if v := strings.TrimSpace(durationStr); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	}
	if seconds != nil {
		return time.Duration(*seconds) * time.Second, nil
	}
	return fallback, nil
}

// applyEnvOverrides lets deployment environments override the file without
// editing it. Only operational knobs are exposed this way.
func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("PDPLENS_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("PDPLENS_ENV")); v != "" {
		cfg.Env = normalizeEnv(v)
	}
	if v := strings.TrimSpace(os.Getenv("PDPLENS_DSN")); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("PDPLENS_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PDPLENS_UPSTREAM_URL")); v != "" {
		cfg.Upstream.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("PDPLENS_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", cfg.Database.Port)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
	}
	if strings.TrimSpace(cfg.Upstream.BaseURL) == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	for name, d := range map[string]time.Duration{
		"upstream.discover_timeout":       cfg.Upstream.DiscoverTimeout,
		"upstream.compare_timeout":        cfg.Upstream.CompareTimeout,
		"upstream.trial_discover_timeout": cfg.Upstream.TrialDiscoverTimeout,
		"upstream.trial_compare_timeout":  cfg.Upstream.TrialCompareTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if cfg.Audit.BufferSize < 1 {
		return fmt.Errorf("audit.buffer_size must be positive")
	}
	if cfg.Archive.Enable && strings.TrimSpace(cfg.Archive.Bucket) == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	return nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}

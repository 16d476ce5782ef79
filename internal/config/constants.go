package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 8080
	defaultEnv        = "development"

	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "pdplens"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	// The analysis engine's own default listen address.
	defaultUpstreamBaseURL = "http://localhost:8000"

	// Authenticated budgets allow for compound discovery plus a heavy
	// two-page analysis; trial budgets are deliberately tighter.
	defaultDiscoverTimeout      = 180 * time.Second
	defaultCompareTimeout       = 300 * time.Second
	defaultTrialDiscoverTimeout = 45 * time.Second
	defaultTrialCompareTimeout  = 120 * time.Second

	defaultAuditBufferSize    = 256
	defaultAuditRetentionDays = 90

	defaultArchiveRegion     = "us-east-1"
	defaultArchiveBufferSize = 64

	defaultRateLimitMax    = 50
	defaultRateLimitWindow = time.Second
)

package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML. It is
// read-only after Load returns; components receive it through constructors
// and never mutate it.
type AppConfig struct {
	Port           int                    `yaml:"port"`
	Env            string                 `yaml:"env"` // "development" | "production"
	DSN            string                 `yaml:"dsn"` // MySQL DSN
	RedisURL       string                 `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig  `yaml:"database"`
	Redis          RedisRuntimeConfig     `yaml:"redis"`
	Upstream       UpstreamRuntimeConfig  `yaml:"upstream"`
	Audit          AuditRuntimeConfig     `yaml:"audit"`
	Archive        ArchiveRuntimeConfig   `yaml:"archive"`
	Bark           BarkRuntimeConfig      `yaml:"bark"`
	RateLimit      RateLimitRuntimeConfig `yaml:"ratelimit"`
	AllowedOrigins []string               `yaml:"allowed_origins"`
	JWTSecret      string                 `yaml:"jwt_secret"`
	TrialEnabled   bool                   `yaml:"trial_enabled"`
	Timezone       string                 `yaml:"timezone"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// UpstreamRuntimeConfig addresses the analysis engine and carries the
// per-variant call budgets. Discover covers the compound find-competitor
// operation, Compare the two-page analysis; the trial pair is tighter.
type UpstreamRuntimeConfig struct {
	BaseURL              string        `yaml:"base_url"`
	DiscoverTimeout      time.Duration `yaml:"-"`
	CompareTimeout       time.Duration `yaml:"-"`
	TrialDiscoverTimeout time.Duration `yaml:"-"`
	TrialCompareTimeout  time.Duration `yaml:"-"`
}

type AuditRuntimeConfig struct {
	BufferSize    int `yaml:"buffer_size"`
	RetentionDays int `yaml:"retention_days"` // 0 disables the retention cron
}

// ArchiveRuntimeConfig configures S3 report archival. Disabled unless
// Enable is set and the bucket is named.
type ArchiveRuntimeConfig struct {
	Enable          bool   `yaml:"enable"`
	Endpoint        string `yaml:"endpoint"` // custom endpoint for S3-compatible stores
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	BufferSize      int    `yaml:"buffer_size"`
}

type BarkRuntimeConfig struct {
	Enable    bool   `yaml:"enable"`
	Key       string `yaml:"key"`
	ServerURL string `yaml:"server_url"`
}

type RateLimitRuntimeConfig struct {
	Enable bool          `yaml:"enable"`
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"-"`
}

type rawAppConfig struct {
	Port               int                `yaml:"port"`
	Env                string             `yaml:"env"`
	DSN                string             `yaml:"dsn"`
	DatabaseURL        string             `yaml:"database_url"`
	RedisURL           string             `yaml:"redis_url"`
	Database           rawDatabaseConfig  `yaml:"database"`
	Redis              rawRedisConfig     `yaml:"redis"`
	Upstream           rawUpstreamConfig  `yaml:"upstream"`
	Audit              rawAuditConfig     `yaml:"audit"`
	Archive            rawArchiveConfig   `yaml:"archive"`
	Bark               rawBarkConfig      `yaml:"bark"`
	RateLimit          rawRateLimitConfig `yaml:"ratelimit"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	JWTSecret          string             `yaml:"jwt_secret"`
	JWTSecretLegacy    string             `yaml:"jwtsecret"`
	TrialEnabled       *bool              `yaml:"trial_enabled"`
	EnableTrial        *bool              `yaml:"enable_trial"`
	Timezone           string             `yaml:"timezone"`
	TZ                 string             `yaml:"tz"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// rawUpstreamConfig accepts timeouts either as duration strings
// ("180s", "5m") or as *_seconds integers.
type rawUpstreamConfig struct {
	BaseURL                     string `yaml:"base_url"`
	URL                         string `yaml:"url"`
	DiscoverTimeout             string `yaml:"discover_timeout"`
	DiscoverTimeoutSeconds      *int   `yaml:"discover_timeout_seconds"`
	CompareTimeout              string `yaml:"compare_timeout"`
	CompareTimeoutSeconds       *int   `yaml:"compare_timeout_seconds"`
	TrialDiscoverTimeout        string `yaml:"trial_discover_timeout"`
	TrialDiscoverTimeoutSeconds *int   `yaml:"trial_discover_timeout_seconds"`
	TrialCompareTimeout         string `yaml:"trial_compare_timeout"`
	TrialCompareTimeoutSeconds  *int   `yaml:"trial_compare_timeout_seconds"`
}

type rawAuditConfig struct {
	BufferSize    *int `yaml:"buffer_size"`
	RetentionDays *int `yaml:"retention_days"`
}

type rawArchiveConfig struct {
	Enable          *bool  `yaml:"enable"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess *bool  `yaml:"path_style_access"`
	BufferSize      *int   `yaml:"buffer_size"`
}

type rawBarkConfig struct {
	Enable    *bool  `yaml:"enable"`
	Key       string `yaml:"key"`
	ServerURL string `yaml:"server_url"`
}

type rawRateLimitConfig struct {
	Enable        *bool  `yaml:"enable"`
	Max           *int   `yaml:"max"`
	Window        string `yaml:"window"`
	WindowSeconds *int   `yaml:"window_seconds"`
}

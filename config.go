package goSession

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/refresh"
)

// Config is the complete client configuration. Build it with [DefaultConfig]
// or [LoadConfigFromEnv] and treat it as immutable once passed to a [Builder].
type Config struct {
	API     APIConfig     `envPrefix:"API_"`
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Refresh RefreshConfig `envPrefix:"REFRESH_"`
	Audit   AuditConfig   `envPrefix:"AUDIT_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the remote account API.
type APIConfig struct {
	BaseURL   string        `env:"BASE_URL"`
	Timeout   time.Duration `env:"TIMEOUT"`
	UserAgent string        `env:"USER_AGENT"`
	Paths     api.Paths     `envPrefix:"PATHS_"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageDriver selects the credential backend.
type StorageDriver string

const (
	StorageMemory StorageDriver = "memory"
	StorageRedis  StorageDriver = "redis"
	StorageSQLite StorageDriver = "sqlite"
)

// StorageConfig controls where the credential pair is persisted. AccessTTL and
// RefreshTTL are storage envelopes, independent of the tokens' exp claims.
type StorageConfig struct {
	Driver     StorageDriver `env:"DRIVER"`
	AccessTTL  time.Duration `env:"ACCESS_TTL"`
	RefreshTTL time.Duration `env:"REFRESH_TTL"`
	Secure     bool          `env:"SECURE"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPrefix   string `env:"REDIS_PREFIX"`

	SQLitePath string `env:"SQLITE_PATH"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig bounds renewal calls.
type RefreshConfig struct {
	Timeout time.Duration `env:"TIMEOUT"`
}

// AuditConfig controls the asynchronous notification dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a memory-backed configuration. API.BaseURL must still
// be set.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:   15 * time.Second,
			UserAgent: "goSession",
			Paths:     api.DefaultPaths(),
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			AccessTTL:   credential.DefaultAccessTTL,
			RefreshTTL:  credential.DefaultRefreshTTL,
			Secure:      true,
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "gs",
			SQLitePath:  "gosession.db",
		},
		Refresh: RefreshConfig{
			Timeout: refresh.DefaultRefreshTimeout,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	if _, err := api.ParseBaseURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("API BaseURL: %w", err)
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("Storage RedisAddr is required for the redis driver")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("Storage RedisDB must be >= 0")
		}
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("Storage SQLitePath is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.AccessTTL <= 0 {
		return errors.New("Storage AccessTTL must be > 0")
	}
	if c.Storage.RefreshTTL <= 0 {
		return errors.New("Storage RefreshTTL must be > 0")
	}
	if c.Storage.RefreshTTL < c.Storage.AccessTTL {
		return errors.New("Storage RefreshTTL must be >= AccessTTL")
	}

	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

package goSession

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by [LoadConfigFromEnv].
const EnvPrefix = "GOSESSION_"

// LoadConfigFromEnv overlays GOSESSION_* environment variables on
// [DefaultConfig] and validates the result. Recognised variables:
//
//	GOSESSION_API_BASE_URL            GOSESSION_STORAGE_REDIS_ADDR
//	GOSESSION_API_TIMEOUT             GOSESSION_STORAGE_REDIS_PASSWORD
//	GOSESSION_API_USER_AGENT          GOSESSION_STORAGE_REDIS_DB
//	GOSESSION_STORAGE_DRIVER          GOSESSION_STORAGE_REDIS_PREFIX
//	GOSESSION_STORAGE_ACCESS_TTL      GOSESSION_STORAGE_SQLITE_PATH
//	GOSESSION_STORAGE_REFRESH_TTL     GOSESSION_REFRESH_TIMEOUT
//	GOSESSION_STORAGE_SECURE          GOSESSION_AUDIT_ENABLED
//	GOSESSION_METRICS_ENABLED         GOSESSION_AUDIT_BUFFER_SIZE
//	GOSESSION_METRICS_LATENCY_HISTOGRAMS
//	GOSESSION_AUDIT_DROP_IF_FULL
//	GOSESSION_API_PATHS_{LOGIN,REGISTER,REFRESH,PASSWORD_RESET,PASSWORD_CHANGE}
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

// OverlayEnv applies GOSESSION_* variables onto cfg without validating it, so
// callers can layer flags on top before building.
func OverlayEnv(cfg *Config) error {
	return overlay(cfg, env.Options{Prefix: EnvPrefix})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := DefaultConfig()
	if err := overlay(&cfg, opts); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlay(cfg *Config, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

package goSession

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://lms.example.com/api/v1/"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with base url valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "missing base url invalid",
			mutate: func(c *Config) {
				c.API.BaseURL = "  "
			},
			wantValid: false,
		},
		{
			name: "relative base url invalid",
			mutate: func(c *Config) {
				c.API.BaseURL = "/api/v1/"
			},
			wantValid: false,
		},
		{
			name: "negative api timeout invalid",
			mutate: func(c *Config) {
				c.API.Timeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "zero api timeout valid",
			mutate: func(c *Config) {
				c.API.Timeout = 0
			},
			wantValid: true,
		},
		{
			name: "redis driver valid",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageRedis
			},
			wantValid: true,
		},
		{
			name: "redis driver without addr invalid",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageRedis
				c.Storage.RedisAddr = ""
			},
			wantValid: false,
		},
		{
			name: "redis negative db invalid",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageRedis
				c.Storage.RedisDB = -1
			},
			wantValid: false,
		},
		{
			name: "sqlite driver without path invalid",
			mutate: func(c *Config) {
				c.Storage.Driver = StorageSQLite
				c.Storage.SQLitePath = ""
			},
			wantValid: false,
		},
		{
			name: "unknown driver invalid",
			mutate: func(c *Config) {
				c.Storage.Driver = "cookie"
			},
			wantValid: false,
		},
		{
			name: "zero access ttl invalid",
			mutate: func(c *Config) {
				c.Storage.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl shorter than access ttl invalid",
			mutate: func(c *Config) {
				c.Storage.AccessTTL = time.Hour
				c.Storage.RefreshTTL = time.Minute
			},
			wantValid: false,
		},
		{
			name: "zero refresh timeout invalid",
			mutate: func(c *Config) {
				c.Refresh.Timeout = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit disabled without buffer valid",
			mutate: func(c *Config) {
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.API.Paths.Login == "" || cfg.API.Paths.Refresh == "" {
		t.Fatalf("expected default endpoint paths, got %+v", cfg.API.Paths)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Fatalf("expected memory driver by default, got %q", cfg.Storage.Driver)
	}
}

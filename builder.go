package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Client]. Configure it during initialization; a Builder
// can build exactly once.
type Builder struct {
	config Config

	backend    credential.Backend
	redis      redis.UniversalClient
	api        *api.Client
	issuer     refresh.Issuer
	auditSink  AuditSink
	httpClient *http.Client
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the account API base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithBackend uses backend for credential persistence regardless of the
// configured storage driver. The caller keeps ownership of backend.
func (b *Builder) WithBackend(backend credential.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis persists credentials in client. The caller keeps ownership of
// client; Close does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAPI uses a preconfigured API client instead of one built from
// Config.API.
func (b *Builder) WithAPI(client *api.Client) *Builder {
	b.api = client
	return b
}

// WithIssuer overrides the token endpoints used for login and renewal. The
// API client still serves registration and password reset.
func (b *Builder) WithIssuer(issuer refresh.Issuer) *Builder {
	b.issuer = issuer
	return b
}

// WithAuditSink receives lifecycle events when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithHTTPClient sets the client used for API calls. Its Transport also
// carries authenticated requests made through [Client.Do].
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithClock replaces time.Now for token expiry checks and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, opens the storage backend and returns a
// ready Client. It does not read persisted credentials; call
// [Client.Resolve] for that.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if b.api != nil && cfg.API.BaseURL == "" {
		cfg.API.BaseURL = b.api.BaseURL().String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		config:  cfg,
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- API --------
	hc := b.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.API.Timeout}
	}
	apiClient := b.api
	if apiClient == nil {
		var err error
		apiClient, err = api.NewClient(api.Config{
			BaseURL:    cfg.API.BaseURL,
			Paths:      cfg.API.Paths,
			HTTPClient: hc,
			UserAgent:  cfg.API.UserAgent,
			Timeout:    cfg.API.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}
	c.api = apiClient
	c.baseURL = apiClient.BaseURL()

	// -------- STORAGE --------
	backend, err := b.openBackend(c, cfg.Storage, now)
	if err != nil {
		c.runClosers()
		return nil, err
	}
	c.store = credential.NewStore(backend, cfg.Storage.Secure)
	c.state = session.NewState()

	// -------- COORDINATOR --------
	issuer := b.issuer
	if issuer == nil {
		issuer = apiClient
	}
	coord, err := refresh.NewCoordinator(refresh.Deps{
		Store:          c.store,
		State:          c.state,
		Issuer:         issuer,
		Now:            now,
		AccessTTL:      cfg.Storage.AccessTTL,
		RefreshTTL:     cfg.Storage.RefreshTTL,
		RefreshTimeout: cfg.Refresh.Timeout,
		Report:         c.observe,
	})
	if err != nil {
		c.runClosers()
		return nil, err
	}
	c.coord = coord

	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink, now)

	c.httpClient = &http.Client{
		Transport:     &Transport{Base: hc.Transport, client: c},
		CheckRedirect: hc.CheckRedirect,
		Jar:           hc.Jar,
		Timeout:       hc.Timeout,
	}

	b.built = true

	return c, nil
}

func (b *Builder) openBackend(c *Client, cfg StorageConfig, now func() time.Time) (credential.Backend, error) {
	if b.backend != nil {
		return b.backend, nil
	}
	if b.redis != nil {
		return credential.NewRedisBackend(b.redis, cfg.RedisPrefix), nil
	}

	switch cfg.Driver {
	case StorageRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		c.closers = append(c.closers, rc.Close)
		backend := credential.NewRedisBackend(rc, cfg.RedisPrefix)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return backend, nil
	case StorageSQLite:
		backend, err := credential.OpenSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		c.closers = append(c.closers, backend.Close)
		return backend, nil
	case StorageMemory:
		return credential.NewMemoryBackend(now), nil
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

func (c *Client) runClosers() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}

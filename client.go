package goSession

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
)

// Client owns one session: its credential store, identity state and refresh
// coordinator. Create it with [Builder.Build].
type Client struct {
	config  Config
	api     *api.Client
	store   *credential.Store
	state   *session.State
	coord   *refresh.Coordinator
	audit   *auditDispatcher
	metrics *Metrics
	now     func() time.Time

	baseURL    *url.URL
	httpClient *http.Client

	closed    atomic.Bool
	closeOnce sync.Once
	closers   []func() error
}

// Login exchanges credentials for a session. Validation failures and server
// rejections are returned unchanged and leave any existing session intact.
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*session.Identity, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if err := req.Validate(); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, EventLoginFailure, false, "", err, nil)
		return nil, err
	}
	return c.coord.Login(ctx, req.Email, req.Password)
}

// Register creates an account and then logs in with the same credentials.
// When registration succeeds but the follow-up login fails, the registration
// response is still returned together with the login error.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, *session.Identity, error) {
	if c.closed.Load() {
		return nil, nil, ErrClientClosed
	}
	resp, err := c.api.Register(ctx, req)
	if err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		c.emitAudit(ctx, EventRegisterFailure, false, "", err, map[string]string{"email": req.Email})
		return nil, nil, err
	}
	c.metrics.Inc(MetricRegisterSuccess)
	c.emitAudit(ctx, EventRegisterSuccess, true, "", nil, map[string]string{"email": resp.Email})

	id, err := c.coord.Login(ctx, req.Email, req.Password)
	if err != nil {
		return resp, nil, err
	}
	return resp, id, nil
}

// Logout clears the session. It never fails and is safe when logged out.
func (c *Client) Logout(ctx context.Context) {
	c.coord.Logout(ctx)
}

// Resolve restores a persisted session at startup. Session().Phase() reports
// resolving until it returns.
func (c *Client) Resolve(ctx context.Context) (*session.Identity, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.coord.Resolve(ctx)
}

// EnsureFreshCredentials returns a usable access token, renewing it when
// expired. ok is false when there is no session.
func (c *Client) EnsureFreshCredentials(ctx context.Context) (access string, ok bool, err error) {
	if c.closed.Load() {
		return "", false, ErrClientClosed
	}
	return c.coord.EnsureFresh(ctx)
}

// RequestPasswordReset asks the API to email a password reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.api.RequestPasswordReset(ctx, api.PasswordResetRequest{Email: email}); err != nil {
		return err
	}
	c.metrics.Inc(MetricPasswordResetRequest)
	c.emitAudit(ctx, EventPasswordResetRequested, true, "", nil, map[string]string{"email": email})
	return nil
}

// ChangePassword completes a password reset with the values from the reset link.
func (c *Client) ChangePassword(ctx context.Context, req api.PasswordChangeRequest) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.api.ChangePassword(ctx, req); err != nil {
		c.metrics.Inc(MetricPasswordChangeFailure)
		c.emitAudit(ctx, EventPasswordChangeFailure, false, "", err, nil)
		return err
	}
	c.metrics.Inc(MetricPasswordChangeSuccess)
	c.emitAudit(ctx, EventPasswordChanged, true, "", nil, nil)
	return nil
}

// Session returns the read-only identity view.
func (c *Client) Session() session.View {
	return c.state
}

// State reports the coordinator's lifecycle state.
func (c *Client) State(ctx context.Context) refresh.State {
	return c.coord.State(ctx)
}

// API exposes the underlying account API client.
func (c *Client) API() *api.Client {
	return c.api
}

// MetricsSnapshot copies the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// Close flushes audit events and releases backends the Builder opened. The
// persisted session is left in place.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.audit.Close()
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// observe maps coordinator outcomes onto metrics and audit events.
func (c *Client) observe(ctx context.Context, o refresh.Outcome) {
	switch o.Kind {
	case refresh.OutcomeLogin:
		c.metrics.Inc(MetricLoginSuccess)
		c.emitAudit(ctx, EventLoginSuccess, true, o.SubjectID, nil, nil)
	case refresh.OutcomeLoginFailed:
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, EventLoginFailure, false, "", o.Err, nil)
	case refresh.OutcomeLogout:
		c.metrics.Inc(MetricLogout)
		c.emitAudit(ctx, EventLogout, true, o.SubjectID, nil, nil)
	case refresh.OutcomeRefreshed:
		c.metrics.Inc(MetricRefreshSuccess)
		c.metrics.Observe(MetricRefreshLatency, o.Latency)
		c.emitAudit(ctx, EventRefreshSuccess, true, o.SubjectID, nil, nil)
	case refresh.OutcomeRefreshFailed:
		c.metrics.Inc(MetricRefreshFailure)
		c.metrics.Observe(MetricRefreshLatency, o.Latency)
		c.emitAudit(ctx, EventRefreshFailure, false, "", o.Err, nil)
	case refresh.OutcomeRefreshDiscarded:
		c.metrics.Inc(MetricRefreshDiscarded)
	case refresh.OutcomeRestored:
		c.metrics.Inc(MetricSessionRestored)
		c.emitAudit(ctx, EventSessionRestored, true, o.SubjectID, nil, nil)
	case refresh.OutcomeMissing:
		c.metrics.Inc(MetricSessionMissing)
		c.emitAudit(ctx, EventSessionMissing, false, "", nil, nil)
	case refresh.OutcomeStorageFailed:
		c.metrics.Inc(MetricStorageFailure)
	default:
		log.Printf("goSession: unknown coordinator outcome %d", o.Kind)
	}
}

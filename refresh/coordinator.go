package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds one call to the refresh endpoint.
const DefaultRefreshTimeout = 10 * time.Second

var (
	// ErrRefreshFailed is returned when renewal failed and the session was
	// invalidated. Callers must treat it as "not authenticated" and not retry.
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrSuperseded marks a renewal whose session was replaced by login, logout
	// or invalidation while it was in flight.
	ErrSuperseded = errors.New("session superseded during refresh")
)

// State is the coordinator's lifecycle state.
type State uint8

const (
	StateEmpty State = iota
	StateValid
	StateExpired
	StateRefreshing
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	case StateInvalid:
		return "invalid"
	default:
		return "empty"
	}
}

// Issuer is the remote side that hands out credential pairs.
type Issuer interface {
	ObtainPair(ctx context.Context, email, password string) (credential.Pair, error)
	RefreshPair(ctx context.Context, refreshToken string) (credential.Pair, error)
}

// OutcomeKind classifies a coordinator transition for metrics and audit.
type OutcomeKind uint8

const (
	OutcomeLogin OutcomeKind = iota
	OutcomeLoginFailed
	OutcomeLogout
	OutcomeRefreshed
	OutcomeRefreshFailed
	OutcomeRefreshDiscarded
	OutcomeRestored
	OutcomeMissing
	OutcomeStorageFailed
)

// Outcome describes one completed transition.
type Outcome struct {
	Kind      OutcomeKind
	SubjectID string
	Err       error
	Latency   time.Duration
}

// Deps captures coordinator dependencies.
type Deps struct {
	Store  *credential.Store
	State  *session.State
	Issuer Issuer

	Now            func() time.Time
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RefreshTimeout time.Duration

	Warn   func(string, ...any)
	Report func(context.Context, Outcome)
}

// Coordinator owns the credential store and session state.
type Coordinator struct {
	deps  Deps
	group singleflight.Group

	mu         sync.Mutex
	generation uint64
	invalid    bool

	inflight atomic.Int32
}

// NewCoordinator validates deps and fills defaults.
func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, errors.New("credential store required")
	}
	if deps.State == nil {
		return nil, errors.New("session state required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("issuer required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RefreshTimeout <= 0 {
		deps.RefreshTimeout = DefaultRefreshTimeout
	}
	if deps.Warn == nil {
		deps.Warn = log.Printf
	}
	if deps.Report == nil {
		deps.Report = func(context.Context, Outcome) {}
	}
	return &Coordinator{deps: deps}, nil
}

// State derives the lifecycle state from storage and the in-flight flag.
func (c *Coordinator) State(ctx context.Context) State {
	if c.inflight.Load() > 0 {
		return StateRefreshing
	}
	c.mu.Lock()
	invalid := c.invalid
	c.mu.Unlock()

	pair, ok, err := c.deps.Store.Load(ctx)
	switch {
	case err != nil:
		return StateInvalid
	case !ok && invalid:
		return StateInvalid
	case !ok:
		return StateEmpty
	case jwt.IsExpired(pair.AccessToken, c.deps.Now()):
		return StateExpired
	default:
		return StateValid
	}
}

// EnsureFresh returns a usable access token.
//
// ok is false with a nil error when no credentials are stored (or storage is
// unreadable). When renewal fails the session is invalidated and the error
// wraps [ErrRefreshFailed]. A ctx that ends while waiting for renewal is a
// renewal failure.
func (c *Coordinator) EnsureFresh(ctx context.Context) (access string, ok bool, err error) {
	gen := c.currentGeneration()

	pair, present, err := c.deps.Store.Load(ctx)
	if err != nil {
		c.degrade(ctx, gen, err)
		return "", false, nil
	}
	if !present {
		c.dropIdentity(gen)
		return "", false, nil
	}

	if claims, decErr := jwt.Decode(pair.AccessToken); decErr == nil && !claims.Expired(c.deps.Now()) {
		c.adoptIdentity(gen, claims)
		return pair.AccessToken, true, nil
	}

	ch := c.group.DoChan(pair.RefreshToken, func() (any, error) {
		return c.renew(ctx, pair, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		return res.Val.(string), true, nil
	case <-ctx.Done():
		return "", false, c.fail(ctx, gen, ctx.Err(), 0)
	}
}

// Login exchanges email and password for a credential pair, persists it and
// publishes the new identity. Issuer errors are returned unchanged and leave
// all state untouched.
func (c *Coordinator) Login(ctx context.Context, email, password string) (*session.Identity, error) {
	start := c.deps.Now()
	pair, err := c.deps.Issuer.ObtainPair(ctx, email, password)
	if err != nil {
		c.deps.Report(ctx, Outcome{Kind: OutcomeLoginFailed, Err: err, Latency: c.since(start)})
		return nil, err
	}
	claims, err := validPair(pair, c.deps.Now())
	if err != nil {
		c.deps.Report(ctx, Outcome{Kind: OutcomeLoginFailed, Err: err, Latency: c.since(start)})
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.invalid = false

	if err := c.deps.Store.Save(ctx, pair, c.deps.AccessTTL, c.deps.RefreshTTL); err != nil {
		c.clearLocked(ctx)
		err = fmt.Errorf("store credentials: %w", err)
		c.deps.Report(ctx, Outcome{Kind: OutcomeStorageFailed, Err: err})
		return nil, err
	}
	id := identityFrom(claims)
	c.deps.State.SetIdentity(id)
	c.deps.Report(ctx, Outcome{Kind: OutcomeLogin, SubjectID: id.SubjectID, Latency: c.since(start)})
	return id, nil
}

// Logout clears storage and session state. It never fails; storage errors are
// logged.
func (c *Coordinator) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var subject string
	if id := c.deps.State.CurrentIdentity(); id != nil {
		subject = id.SubjectID
	}
	c.generation++
	c.invalid = false
	c.clearLocked(ctx)
	c.deps.Report(ctx, Outcome{Kind: OutcomeLogout, SubjectID: subject})
}

// Resolve restores the session from storage at startup, renewing the access
// token when it has expired. The session phase is resolving for the duration.
func (c *Coordinator) Resolve(ctx context.Context) (*session.Identity, error) {
	c.deps.State.SetResolving(true)
	defer c.deps.State.SetResolving(false)

	_, ok, err := c.EnsureFresh(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.deps.Report(ctx, Outcome{Kind: OutcomeMissing})
		return nil, nil
	}
	id := c.deps.State.CurrentIdentity()
	if id != nil {
		c.deps.Report(ctx, Outcome{Kind: OutcomeRestored, SubjectID: id.SubjectID})
	}
	return id, nil
}

// renew exchanges stale.RefreshToken for a new pair. Only Resolve marks the
// session phase as resolving; renew leaves it unchanged.
func (c *Coordinator) renew(ctx context.Context, stale credential.Pair, gen uint64) (string, error) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	// The flight must outlive the caller that started it.
	base := context.WithoutCancel(ctx)
	start := c.deps.Now()
	refreshToken := stale.RefreshToken

	// An earlier flight may have committed after this caller loaded the stale
	// pair. Servers that do not rotate leave the refresh token unchanged, so
	// only the access token tells the two apart.
	if cur, ok, err := c.deps.Store.Load(base); err == nil && ok &&
		cur.AccessToken != stale.AccessToken && !jwt.IsExpired(cur.AccessToken, c.deps.Now()) {
		return cur.AccessToken, nil
	}

	callCtx, cancel := context.WithTimeout(base, c.deps.RefreshTimeout)
	defer cancel()

	next, err := c.deps.Issuer.RefreshPair(callCtx, refreshToken)
	if err != nil {
		return "", c.fail(base, gen, err, c.since(start))
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	claims, err := validPair(next, c.deps.Now())
	if err != nil {
		return "", c.fail(base, gen, err, c.since(start))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.deps.Warn("goSession: discarding refreshed credentials for a superseded session")
		c.deps.Report(base, Outcome{Kind: OutcomeRefreshDiscarded, Latency: c.since(start)})
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, ErrSuperseded)
	}
	if err := c.deps.Store.Save(base, next, c.deps.AccessTTL, c.deps.RefreshTTL); err != nil {
		c.generation++
		c.invalid = true
		c.clearLocked(base)
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		c.deps.Report(base, Outcome{Kind: OutcomeRefreshFailed, Err: err, Latency: c.since(start)})
		return "", err
	}
	id := identityFrom(claims)
	c.deps.State.SetIdentity(id)
	c.invalid = false
	c.deps.Report(base, Outcome{Kind: OutcomeRefreshed, SubjectID: id.SubjectID, Latency: c.since(start)})
	return next.AccessToken, nil
}

// fail invalidates the session of generation gen and returns the wrapped cause.
func (c *Coordinator) fail(ctx context.Context, gen uint64, cause error, latency time.Duration) error {
	err := fmt.Errorf("%w: %w", ErrRefreshFailed, cause)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return err
	}
	c.generation++
	c.invalid = true
	c.clearLocked(ctx)
	c.deps.Report(ctx, Outcome{Kind: OutcomeRefreshFailed, Err: err, Latency: latency})
	return err
}

// degrade drops the identity after a storage read failure.
func (c *Coordinator) degrade(ctx context.Context, gen uint64, err error) {
	c.deps.Warn("goSession: credential storage unavailable: %v", err)
	c.deps.Report(ctx, Outcome{Kind: OutcomeStorageFailed, Err: err})
	c.dropIdentity(gen)
}

func (c *Coordinator) dropIdentity(gen uint64) {
	if !c.deps.State.IsAuthenticated() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.deps.State.SetIdentity(nil)
	}
}

func (c *Coordinator) adoptIdentity(gen uint64, claims *jwt.Claims) {
	id := identityFrom(claims)
	if cur := c.deps.State.CurrentIdentity(); cur != nil && *cur == *id {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.deps.State.SetIdentity(id)
	}
}

// clearLocked must be called with c.mu held.
func (c *Coordinator) clearLocked(ctx context.Context) {
	if err := c.deps.Store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.deps.Warn("goSession: clearing credentials failed: %v", err)
	}
	c.deps.State.SetIdentity(nil)
}

func (c *Coordinator) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Coordinator) since(start time.Time) time.Duration {
	return c.deps.Now().Sub(start)
}

// validPair rejects pairs that cannot form a session.
func validPair(pair credential.Pair, now time.Time) (*jwt.Claims, error) {
	if !pair.Complete() {
		return nil, credential.ErrIncompletePair
	}
	claims, err := jwt.Decode(pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if claims.Expired(now) {
		return nil, fmt.Errorf("%w: issued access token already expired", jwt.ErrMalformedToken)
	}
	return claims, nil
}

func identityFrom(claims *jwt.Claims) *session.Identity {
	return &session.Identity{
		SubjectID:   claims.SubjectID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	}
}

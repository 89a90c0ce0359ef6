package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Login          string `env:"LOGIN"`
	Register       string `env:"REGISTER"`
	Refresh        string `env:"REFRESH"`
	PasswordReset  string `env:"PASSWORD_RESET"`
	PasswordChange string `env:"PASSWORD_CHANGE"`
}

// DefaultPaths returns the account API's stock routes.
func DefaultPaths() Paths {
	return Paths{
		Login:          "user/token",
		Register:       "user/register/",
		Refresh:        "user/token/refresh/",
		PasswordReset:  "user/password-reset/",
		PasswordChange: "user/password-change/",
	}
}

// Config configures a [Client].
type Config struct {
	BaseURL    string
	Paths      Paths
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
}

// Client calls the account API. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	paths     Paths
	http      *http.Client
	userAgent string
}

// NewClient validates cfg and returns a Client. Empty paths take their
// [DefaultPaths] value.
func NewClient(cfg Config) (*Client, error) {
	base, err := ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	paths := cfg.Paths
	def := DefaultPaths()
	if paths.Login == "" {
		paths.Login = def.Login
	}
	if paths.Register == "" {
		paths.Register = def.Register
	}
	if paths.Refresh == "" {
		paths.Refresh = def.Refresh
	}
	if paths.PasswordReset == "" {
		paths.PasswordReset = def.PasswordReset
	}
	if paths.PasswordChange == "" {
		paths.PasswordChange = def.PasswordChange
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "goSession"
	}

	return &Client{base: base, paths: paths, http: hc, userAgent: userAgent}, nil
}

// ParseBaseURL parses an absolute http(s) base URL and guarantees a trailing
// slash so relative paths resolve beneath it.
func ParseBaseURL(raw string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: absolute http(s) url required", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base, nil
}

// BaseURL returns a copy of the configured base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, req LoginRequest) (credential.Pair, error) {
	if err := req.Validate(); err != nil {
		return credential.Pair{}, err
	}
	var resp tokenResponse
	if err := c.call(ctx, "login", http.MethodPost, c.paths.Login, req, &resp); err != nil {
		return credential.Pair{}, err
	}
	pair := resp.pair()
	if pair.Access == "" || pair.Refresh == "" {
		return credential.Pair{}, fmt.Errorf("%w: login response missing tokens", ErrMalformedResponse)
	}
	return credential.Pair{AccessToken: pair.Access, RefreshToken: pair.Refresh}, nil
}

// ObtainPair implements the coordinator's issuer contract.
func (c *Client) ObtainPair(ctx context.Context, email, password string) (credential.Pair, error) {
	return c.Login(ctx, LoginRequest{Email: email, Password: password})
}

// RefreshPair exchanges a refresh token for a new pair. The returned refresh
// token is empty when the server did not rotate it.
func (c *Client) RefreshPair(ctx context.Context, refreshToken string) (credential.Pair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return credential.Pair{}, errors.New("refresh token required")
	}
	var resp tokenResponse
	if err := c.call(ctx, "refresh", http.MethodPost, c.paths.Refresh, refreshRequest{Refresh: refreshToken}, &resp); err != nil {
		return credential.Pair{}, err
	}
	pair := resp.pair()
	if pair.Access == "" {
		return credential.Pair{}, fmt.Errorf("%w: refresh response missing access token", ErrMalformedResponse)
	}
	return credential.Pair{AccessToken: pair.Access, RefreshToken: pair.Refresh}, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var resp RegisterResponse
	if err := c.call(ctx, "register", http.MethodPost, c.paths.Register, req, &resp); err != nil {
		return nil, err
	}
	if resp.Email == "" {
		resp.Email = req.Email
	}
	if resp.FullName == "" {
		resp.FullName = req.FullName
	}
	return &resp, nil
}

// RequestPasswordReset asks the API to email a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	path := strings.TrimSuffix(c.paths.PasswordReset, "/") + "/" + url.PathEscape(req.Email) + "/"
	return c.call(ctx, "password reset", http.MethodGet, path, nil, nil)
}

// ChangePassword completes a password reset.
func (c *Client) ChangePassword(ctx context.Context, req PasswordChangeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.call(ctx, "password change", http.MethodPost, c.paths.PasswordChange, req.body(), nil)
}

// call sends one JSON request. out may be nil when the body is ignored.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	target, err := c.base.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", op, path, err)
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	userAgent := userAgentFromContext(ctx)
	if userAgent == "" {
		userAgent = c.userAgent
	}
	req.Header.Set("User-Agent", userAgent)
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejection(op, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

package goSession

import (
	"errors"
	"fmt"
	"log"
	"net/http"
)

// Transport is an http.RoundTripper that attaches the session's bearer token.
//
// When renewal fails the request is still sent, without Authorization, and the
// server's answer is returned unchanged. Callers that need to know should
// check Session().IsAuthenticated().
type Transport struct {
	Base   http.RoundTripper
	client *Client
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	access, ok, err := t.client.coord.EnsureFresh(ctx)
	if err != nil {
		log.Printf("goSession: sending %s %s unauthenticated: %v", req.Method, req.URL.Redacted(), err)
	}

	out := req.Clone(ctx)
	if ok {
		out.Header.Set("Authorization", "Bearer "+access)
		t.client.metrics.Inc(MetricRequestAuthenticated)
	} else {
		out.Header.Del("Authorization")
		t.client.metrics.Inc(MetricRequestUnauthenticated)
	}
	if rid := RequestIDFromContext(ctx); rid != "" && out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", rid)
	}
	return base.RoundTrip(out)
}

// HTTPClient returns an *http.Client whose requests carry the session's
// bearer token.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do resolves a relative request URL against the API base URL and sends the
// request with the current bearer token.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if req == nil || req.URL == nil {
		return nil, errors.New("request with URL required")
	}
	if !req.URL.IsAbs() {
		r2 := req.Clone(req.Context())
		r2.URL = c.baseURL.ResolveReference(req.URL)
		r2.Host = ""
		req = r2
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}

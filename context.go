package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/api"
	"github.com/google/uuid"
)

// WithRequestID attaches a request identifier to ctx. It is sent to the API as
// X-Request-ID and copied onto audit events. An empty id generates one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return api.WithRequestID(ctx, id)
}

// WithUserAgent overrides the User-Agent sent to the API for calls made with ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return api.WithUserAgent(ctx, userAgent)
}

// RequestIDFromContext returns the identifier set by [WithRequestID].
func RequestIDFromContext(ctx context.Context) string {
	return api.RequestIDFromContext(ctx)
}

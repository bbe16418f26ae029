// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these; services and the audit publisher read them without
// importing net/http.
package requestcontext

import (
	"context"
	"time"

	id "eventpass/pkg/domain"
)

type (
	identityIDKey  struct{}
	emailKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyIdentityID  = identityIDKey{}
	ContextKeyEmail       = emailKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// IdentityID retrieves the authenticated identity from the context.
// Returns the zero value (nil UUID) if not set.
func IdentityID(ctx context.Context) id.IdentityID {
	if identityID, ok := ctx.Value(ContextKeyIdentityID).(id.IdentityID); ok {
		return identityID
	}
	return id.IdentityID{}
}

// WithIdentityID injects an identity into the context.
func WithIdentityID(ctx context.Context, identityID id.IdentityID) context.Context {
	return context.WithValue(ctx, ContextKeyIdentityID, identityID)
}

// Email retrieves the display email supplied by the identity provider.
func Email(ctx context.Context) string {
	if email, ok := ctx.Value(ContextKeyEmail).(string); ok {
		return email
	}
	return ""
}

func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ContextKeyEmail, email)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (CLI commands, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for service tests that need a fixed "today" for age derivation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

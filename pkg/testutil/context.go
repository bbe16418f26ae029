package testutil

import (
	"context"
	"net/http"
	"time"

	id "eventpass/pkg/domain"
	"eventpass/pkg/requestcontext"
)

// WithIdentity adds an identity to the request context, as the bearer
// middleware would. Invalid IDs leave the request unchanged.
func WithIdentity(req *http.Request, identityID string) *http.Request {
	parsed, err := id.ParseIdentityID(identityID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithIdentityID(req.Context(), parsed))
}

// WithRequestTime pins the clock the workflow reads for this request.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}

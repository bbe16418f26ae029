package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"eventpass/internal/platform/identity"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/httputil"
	"eventpass/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to an identity.
type TokenValidator interface {
	Validate(token string) (identity.Identity, error)
}

// RequireIdentity rejects requests without a valid bearer token and puts
// the identity and email in the request context.
func RequireIdentity(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			who, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(ctx, who)))
		})
	}
}

func withIdentity(ctx context.Context, who identity.Identity) context.Context {
	ctx = requestcontext.WithIdentityID(ctx, who.ID)
	if who.Email != "" {
		ctx = requestcontext.WithEmail(ctx, who.Email)
	}
	return ctx
}

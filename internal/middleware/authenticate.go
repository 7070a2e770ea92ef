package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/logging"
)

// IdentityResolver resolves the token from the Authorization header.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

// Authenticate resolves the caller's identity and stores it on the request
// context. Requests without a token continue as the anonymous identity; a
// malformed token is rejected with 400 and a stale one with 401.
func Authenticate(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := auth.TokenFromHeader(r.Header.Get("Authorization"))

			identity, err := resolver.Resolve(ctx, token)
			if err != nil {
				logger := logging.FromContext(ctx)
				switch {
				case errors.Is(err, auth.ErrInvalidToken):
					logger.Warn("rejected invalid auth token", "error", err)
					writeError(w, http.StatusBadRequest, "invalid auth token")
				case errors.Is(err, auth.ErrStaleToken), errors.Is(err, auth.ErrUserNotFound):
					logger.Warn("rejected outdated auth token", "error", err)
					writeError(w, http.StatusUnauthorized, "auth token is no longer valid")
				default:
					logger.Error("identity resolution failed", "error", err)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			if !identity.IsAnonymous() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("userId", identity.UserID()))
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, identity)))
		})
	}
}

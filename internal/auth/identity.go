package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/repositories"
)

// Identity is the principal acting on a request: a user or the anonymous principal.
type Identity struct {
	user *models.User
}

// Anonymous returns the identity used for requests without a token.
func Anonymous() Identity {
	return Identity{}
}

// UserIdentity returns an identity bound to user.
func UserIdentity(user models.User) Identity {
	return Identity{user: &user}
}

// IsAnonymous reports whether no user is bound to the identity.
func (i Identity) IsAnonymous() bool {
	return i.user == nil
}

// UserID returns the bound user's id, or "" for the anonymous identity.
func (i Identity) UserID() string {
	if i.user == nil {
		return ""
	}
	return i.user.ID
}

// User returns the bound user.
func (i Identity) User() (models.User, bool) {
	if i.user == nil {
		return models.User{}, false
	}
	return *i.user, true
}

// Owns reports whether the identity holds the ownership capability for ownerID.
func (i Identity) Owns(ownerID string) bool {
	return i.user != nil && ownerID != "" && i.user.ID == ownerID
}

// UserLookup loads users by id.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// IdentityResolver turns an inbound token into an Identity.
type IdentityResolver struct {
	tokens *TokenService
	users  UserLookup
}

// NewIdentityResolver constructs a resolver.
func NewIdentityResolver(tokens *TokenService, users UserLookup) *IdentityResolver {
	if tokens == nil || users == nil {
		panic("auth: identity resolver requires a token service and user lookup")
	}
	return &IdentityResolver{tokens: tokens, users: users}
}

// Resolve returns Anonymous for an empty token, otherwise the identity of the
// token's user. It fails with ErrInvalidToken, ErrUserNotFound or ErrStaleToken.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Anonymous(), nil
	}

	payload, err := r.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	user, err := r.users.FindByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, fmt.Errorf("load token user: %w", err)
	}

	current := FingerprintSuffix(user.PasswordHash)
	if subtle.ConstantTimeCompare([]byte(current), []byte(payload.FingerprintSuffix)) != 1 {
		return Identity{}, ErrStaleToken
	}

	return UserIdentity(user), nil
}

// TokenFromHeader extracts the token from an "Authorization: Token <value>" header.
func TokenFromHeader(header string) string {
	const prefix = "Token "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type identityKey struct{}

// WithIdentity stores the request's identity on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the request's identity, or Anonymous when none was stored.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Anonymous()
	}
	if identity, ok := ctx.Value(identityKey{}).(Identity); ok {
		return identity
	}
	return Anonymous()
}

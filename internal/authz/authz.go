// Package authz decides what an identity may do with a stream or its entries.
// Every decision is a pure function of the identity and the resource.
package authz

import (
	"errors"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/models"
)

var (
	// ErrUnauthenticated indicates an anonymous caller on an operation that needs a user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates an authenticated caller without the ownership capability.
	ErrForbidden = errors.New("forbidden")
)

// ViewDecision is the outcome of a read check.
type ViewDecision int

const (
	ViewAllowed ViewDecision = iota
	ViewUnauthenticated
	ViewForbidden
)

func (d ViewDecision) String() string {
	switch d {
	case ViewAllowed:
		return "allowed"
	case ViewUnauthenticated:
		return "unauthenticated"
	case ViewForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Err converts the decision to the matching sentinel error, or nil when allowed.
func (d ViewDecision) Err() error {
	switch d {
	case ViewAllowed:
		return nil
	case ViewUnauthenticated:
		return ErrUnauthenticated
	default:
		return ErrForbidden
	}
}

// CanMutate reports whether identity may change a resource owned by ownerID.
func CanMutate(identity auth.Identity, ownerID string) bool {
	return !identity.IsAnonymous() && identity.Owns(ownerID)
}

// CanView decides whether identity may read stream and its entries.
func CanView(identity auth.Identity, stream models.Stream) ViewDecision {
	if stream.Public || identity.Owns(stream.CreatorID) {
		return ViewAllowed
	}
	if identity.IsAnonymous() {
		return ViewUnauthenticated
	}
	return ViewForbidden
}

// RequireAuthenticated fails with ErrUnauthenticated for the anonymous identity.
func RequireAuthenticated(identity auth.Identity) error {
	if identity.IsAnonymous() {
		return ErrUnauthenticated
	}
	return nil
}

// RequireOwner fails with ErrUnauthenticated or ErrForbidden unless identity owns ownerID.
func RequireOwner(identity auth.Identity, ownerID string) error {
	if err := RequireAuthenticated(identity); err != nil {
		return err
	}
	if !CanMutate(identity, ownerID) {
		return ErrForbidden
	}
	return nil
}

// RequireView is CanView expressed as an error.
func RequireView(identity auth.Identity, stream models.Stream) error {
	return CanView(identity, stream).Err()
}

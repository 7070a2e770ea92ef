package auth

import "errors"

var (
	// ErrInvalidToken indicates a token whose signature or payload cannot be verified.
	ErrInvalidToken = errors.New("invalid auth token")
	// ErrStaleToken indicates a correctly signed token minted before the user's last password change.
	ErrStaleToken = errors.New("stale auth token")
	// ErrUserNotFound indicates a token referencing a user that no longer exists.
	ErrUserNotFound = errors.New("token user not found")
)

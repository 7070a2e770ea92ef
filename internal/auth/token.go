package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamr/backend/internal/models"
)

// FingerprintSuffixLength is how much of the password fingerprint a token carries.
const FingerprintSuffixLength = 10

// Payload is the data carried inside an auth token.
type Payload struct {
	UserID            string
	IssuedAt          time.Time
	FingerprintSuffix string
}

type tokenClaims struct {
	UserID            string `json:"uid"`
	FingerprintSuffix string `json:"fp"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies stateless, HMAC-signed auth tokens.
//
// Tokens carry no expiry. They stay valid until the user's password changes,
// which the IdentityResolver detects through the fingerprint suffix.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService returns a TokenService signing with secret.
func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: secret key must not be empty")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue mints a token for user bound to their current password fingerprint.
func (s *TokenService) Issue(user models.User) (string, error) {
	if user.ID == "" {
		return "", errors.New("auth: user id must be provided")
	}

	claims := tokenClaims{
		UserID:            user.ID,
		FingerprintSuffix: FingerprintSuffix(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and decodes its payload. It does not check
// whether the embedded fingerprint is still current.
func (s *TokenService) Verify(token string) (Payload, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return Payload{}, ErrInvalidToken
	}

	payload := Payload{
		UserID:            claims.UserID,
		FingerprintSuffix: claims.FingerprintSuffix,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

// FingerprintSuffix returns the trailing characters of a password fingerprint
// that tokens are bound to.
func FingerprintSuffix(fingerprint string) string {
	if len(fingerprint) <= FingerprintSuffixLength {
		return fingerprint
	}
	return fingerprint[len(fingerprint)-FingerprintSuffixLength:]
}

// Package security hashes and verifies user passwords.
//
// Stored fingerprints are self-describing: each one records the algorithm and
// cost parameters it was produced with, so changing the configured parameters
// never invalidates existing accounts.
//
//	scrypt:<N>:<r>:<p>$<salt>$<digest>
//	argon2id:<time>:<memoryKiB>:<threads>$<salt>$<digest>
//
// Salt and digest are standard base64, which never contains the '$' separator.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

const (
	AlgorithmScrypt   = "scrypt"
	AlgorithmArgon2ID = "argon2id"

	saltBytes = 64
	keyLength = 64
	separator = "$"
)

// Upper bounds applied to configured and stored parameters. A single
// derivation never needs more than maxKDFMemory bytes.
const (
	maxKDFMemory     = 256 << 20
	maxScryptN       = 1 << 20
	maxScryptR       = 32
	maxScryptP       = 16
	maxArgonTime     = 16
	maxArgonMemory   = maxKDFMemory >> 10
	maxArgonThreads  = 64
	defaultScryptN   = 1 << 15
	defaultScryptR   = 8
	defaultScryptP   = 1
	defaultArgonTime = 1
	defaultArgonMem  = 64 * 1024
	defaultArgonThr  = 4
)

// ErrInvalidParams is returned by NewHasher for unusable cost parameters.
var ErrInvalidParams = errors.New("invalid password hashing parameters")

// Params selects the algorithm and cost used for new fingerprints.
type Params struct {
	Algorithm string

	ScryptN int
	ScryptR int
	ScryptP int

	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
}

// DefaultParams returns production scrypt parameters.
func DefaultParams() Params {
	return Params{
		Algorithm:     AlgorithmScrypt,
		ScryptN:       defaultScryptN,
		ScryptR:       defaultScryptR,
		ScryptP:       defaultScryptP,
		Argon2Time:    defaultArgonTime,
		Argon2Memory:  defaultArgonMem,
		Argon2Threads: defaultArgonThr,
	}
}

// Hasher produces and checks password fingerprints. It is safe for concurrent use.
type Hasher struct {
	params Params

	dummyOnce sync.Once
	dummy     string
}

// NewHasher validates params and returns a Hasher using them for new fingerprints.
func NewHasher(params Params) (*Hasher, error) {
	switch params.Algorithm {
	case AlgorithmScrypt:
		if !validScrypt(params.ScryptN, params.ScryptR, params.ScryptP) {
			return nil, fmt.Errorf("%w: scrypt N=%d r=%d p=%d", ErrInvalidParams, params.ScryptN, params.ScryptR, params.ScryptP)
		}
	case AlgorithmArgon2ID:
		if !validArgon(params.Argon2Time, params.Argon2Memory, params.Argon2Threads) {
			return nil, fmt.Errorf("%w: argon2id t=%d m=%d threads=%d", ErrInvalidParams, params.Argon2Time, params.Argon2Memory, params.Argon2Threads)
		}
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, params.Algorithm)
	}
	return &Hasher{params: params}, nil
}

// Hash returns a fresh fingerprint for password.
func (h *Hasher) Hash(password string) (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := base64.StdEncoding.EncodeToString(raw)

	var (
		method string
		digest []byte
		err    error
	)
	switch h.params.Algorithm {
	case AlgorithmArgon2ID:
		p := h.params
		method = fmt.Sprintf("%s:%d:%d:%d", AlgorithmArgon2ID, p.Argon2Time, p.Argon2Memory, p.Argon2Threads)
		digest = argon2.IDKey([]byte(password), []byte(salt), p.Argon2Time, p.Argon2Memory, p.Argon2Threads, keyLength)
	default:
		p := h.params
		method = fmt.Sprintf("%s:%d:%d:%d", AlgorithmScrypt, p.ScryptN, p.ScryptR, p.ScryptP)
		digest, err = scrypt.Key([]byte(password), []byte(salt), p.ScryptN, p.ScryptR, p.ScryptP, keyLength)
		if err != nil {
			return "", fmt.Errorf("scrypt: %w", err)
		}
	}

	return strings.Join([]string{method, salt, base64.StdEncoding.EncodeToString(digest)}, separator), nil
}

// DummyFingerprint returns a fingerprint with the current parameters that no
// password matches. Verifying against it costs the same as a real check, so
// logins for unknown accounts take as long as logins with a wrong password.
func (h *Hasher) DummyFingerprint() string {
	h.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err == nil {
			h.dummy, _ = h.Hash(base64.StdEncoding.EncodeToString(secret))
		}
	})
	return h.dummy
}

// Verify reports whether password matches fingerprint. Malformed fingerprints
// verify as false.
func (h *Hasher) Verify(password, fingerprint string) bool {
	parts := strings.Split(fingerprint, separator)
	if len(parts) != 3 || parts[1] == "" {
		return false
	}
	method, salt := parts[0], parts[1]

	want, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}

	fields := strings.Split(method, ":")
	if len(fields) != 4 {
		return false
	}
	a, errA := strconv.Atoi(fields[1])
	b, errB := strconv.Atoi(fields[2])
	c, errC := strconv.Atoi(fields[3])
	if errA != nil || errB != nil || errC != nil {
		return false
	}

	var got []byte
	switch fields[0] {
	case AlgorithmScrypt:
		if !validScrypt(a, b, c) {
			return false
		}
		got, err = scrypt.Key([]byte(password), []byte(salt), a, b, c, len(want))
		if err != nil {
			return false
		}
	case AlgorithmArgon2ID:
		if a <= 0 || a > maxArgonTime || b <= 0 || b > maxArgonMemory || c <= 0 || c > maxArgonThreads {
			return false
		}
		if !validArgon(uint32(a), uint32(b), uint8(c)) {
			return false
		}
		got = argon2.IDKey([]byte(password), []byte(salt), uint32(a), uint32(b), uint8(c), uint32(len(want)))
	default:
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}

func validScrypt(n, r, p int) bool {
	if n <= 1 || n > maxScryptN || n&(n-1) != 0 {
		return false
	}
	if r <= 0 || r > maxScryptR || p <= 0 || p > maxScryptP {
		return false
	}
	// scrypt's working set is 128*N*r bytes.
	return 128*int64(n)*int64(r) <= maxKDFMemory
}

func validArgon(t, m uint32, threads uint8) bool {
	return t > 0 && t <= maxArgonTime && m >= 8*uint32(threads) && m <= maxArgonMemory && threads > 0 && threads <= maxArgonThreads
}

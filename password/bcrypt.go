package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinCost is the floor for the adaptive cost factor.
	MinCost = 10
	// MaxCost mirrors the bcrypt upper bound.
	MaxCost = 31

	// bcrypt silently truncates beyond 72 bytes; reject instead.
	maxSecretBytes = 72
)

// Config defines hashing parameters.
type Config struct {
	Cost      int
	MinLength int
}

// Hasher hashes and verifies admin secrets with bcrypt. A dummy hash is
// precomputed at construction so that verification work can be performed
// even when no stored hash exists, keeping response timing uniform for
// unknown identifiers.
type Hasher struct {
	config    Config
	dummyHash string
}

// New validates cfg and returns a [Hasher].
func New(cfg Config) (*Hasher, error) {
	if cfg.Cost < MinCost || cfg.Cost > MaxCost {
		return nil, errors.New("bcrypt cost must be within 10..31")
	}
	if cfg.MinLength < 8 {
		return nil, errors.New("minimum secret length must be at least 8")
	}

	filler := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, filler); err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword(
		[]byte(base64.StdEncoding.EncodeToString(filler)),
		cfg.Cost,
	)
	if err != nil {
		return nil, err
	}

	return &Hasher{config: cfg, dummyHash: string(dummy)}, nil
}

// Hash derives a salted hash for a new secret, enforcing the length policy.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < h.config.MinLength {
		return "", errors.New("secret below minimum length")
	}
	if len(secret) > maxSecretBytes {
		return "", errors.New("secret exceeds 72 bytes")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.config.Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether secret matches the stored hash. The comparison is
// constant-time within bcrypt.
func (h *Hasher) Verify(secret, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret)) == nil
}

// VerifyDummy burns one full verification against the precomputed dummy
// hash and discards the result. Called when the identifier is unknown so
// the caller's timing profile matches a real mismatch.
func (h *Hasher) VerifyDummy(secret string) {
	_ = bcrypt.CompareHashAndPassword([]byte(h.dummyHash), []byte(secret))
}

// NeedsUpgrade reports whether a stored hash was minted below the currently
// configured cost.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < h.config.Cost, nil
}

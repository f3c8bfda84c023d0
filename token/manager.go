package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed is returned when a token is structurally invalid.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when a token's signature does not verify
	// against the server secret.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when a token's expiry has passed.
	ErrExpired = errors.New("token expired")
)

const maxLeeway = 60 * time.Second

// Config defines token issuance and verification parameters.
type Config struct {
	// Secret is the symmetric HS256 signing key, minimum 32 bytes.
	Secret []byte
	// TTL is the lifetime embedded at issuance.
	TTL time.Duration
	// Issuer, when set, is embedded and enforced on verification.
	Issuer string
	// Leeway is the expiry tolerance, 0..60s.
	Leeway time.Duration
}

// Claims is the structured payload of a session token: a denormalized copy
// of the principal so that signature-level verification needs no lookup,
// plus the session ID that anchors the token in the session store.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	SID   string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues and verifies signed session tokens. Instances are immutable
// and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue mints a signed token for the given principal fields and session ID.
// It returns the opaque token string and the absolute expiry embedded in it.
func (m *Manager) Issue(principalID, email, name, roleName, sessionID string) (string, time.Time, error) {
	if principalID == "" || sessionID == "" {
		return "", time.Time{}, errors.New("principal id and session id are required")
	}

	now := time.Now()
	expiresAt := now.Add(m.config.TTL)

	claims := Claims{
		Email: email,
		Name:  name,
		Role:  roleName,
		SID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Parse verifies structure, signature, and expiry, and returns the decoded
// claims. Failures are one of [ErrMalformed], [ErrBadSignature], or
// [ErrExpired]; callers collapse these to a uniform invalid-session error
// before anything reaches a client.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

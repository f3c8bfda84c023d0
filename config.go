package adminauth

import (
	"errors"
	"net/http"
	"time"
)

const (
	// maxTokenLeeway caps the configurable verification clock tolerance.
	maxTokenLeeway = 60 * time.Second

	minSecretBytes  = 32
	minPasswordCost = 10
	maxPasswordCost = 31
)

// TokenConfig controls session token issuance and verification.
type TokenConfig struct {
	// Secret is the server-held HS256 signing key. Minimum 32 bytes.
	Secret []byte
	// TTL is the absolute session lifetime embedded at issuance.
	TTL time.Duration
	// Issuer is an optional iss claim enforced on verification when set.
	Issuer string
	// Leeway is the expiry comparison tolerance, 0..60s. The default is 0;
	// any non-zero value is a deliberate deviation and should be recorded in
	// the deployment notes.
	Leeway time.Duration
}

// SessionConfig controls the Redis session store.
type SessionConfig struct {
	// RedisPrefix namespaces all session keys.
	RedisPrefix string
}

// PasswordConfig controls bcrypt hashing.
type PasswordConfig struct {
	// Cost is the bcrypt cost factor, 10..31.
	Cost int
	// MinLength is the minimum accepted secret length for new passwords.
	MinLength int
}

// CookieConfig describes the session cookie the HTTP boundary reads and
// writes. The cookie is always HTTP-only; Max-Age follows the token TTL.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// SecurityConfig gates the optional login throttle.
type SecurityConfig struct {
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when the
	// buffer is saturated. Dropped events are counted.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the complete engine configuration. Instances are treated as
// immutable after [Builder.Build].
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Password PasswordConfig
	Cookie   CookieConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// DefaultConfig returns the configuration [New] starts from: 24h sessions,
// bcrypt cost 10, a Secure Lax cookie, audit and metrics on, throttle off.
// Callers must still supply a token secret.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:    24 * time.Hour,
			Leeway: 0,
		},
		Session: SessionConfig{
			RedisPrefix: "aas",
		},
		Password: PasswordConfig{
			Cost:      minPasswordCost,
			MinLength: 8,
		},
		Cookie: CookieConfig{
			Name:     "mtp-admin-token",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: false,
			EnableIPThrottle:    true,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for internal consistency. Build refuses
// configurations that fail validation.
func (c Config) Validate() error {
	if len(c.Token.Secret) < minSecretBytes {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > maxTokenLeeway {
		return errors.New("token leeway must be within 0..60s")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix must not be empty")
	}
	if c.Password.Cost < minPasswordCost || c.Password.Cost > maxPasswordCost {
		return errors.New("password cost must be within 10..31")
	}
	if c.Password.MinLength < 8 {
		return errors.New("password min length must be at least 8")
	}
	if c.Cookie.Name == "" {
		return errors.New("cookie name must not be empty")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("login throttle requires a positive attempt budget")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("login throttle requires a positive cooldown")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

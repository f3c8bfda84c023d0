package adminauth

import (
	"context"
	"time"

	"github.com/mtp-sa/adminauth/role"
)

// Principal is an admin identity capable of holding sessions. Principals are
// provisioned out-of-band (there is no self-registration); deactivation via
// Active=false is the removal mechanism, records are never hard-deleted by
// the engine.
type Principal struct {
	ID           string
	Email        string
	Name         string
	Role         role.Role
	PasswordHash string
	Active       bool
}

// AuthResult is returned by [Engine.Login] and [Engine.Validate]. It carries
// the authenticated principal's identity and the session it rode in on.
type AuthResult struct {
	PrincipalID string
	Email       string
	Name        string
	Role        role.Role
	SessionID   string
}

// LoginResult is returned by [Engine.Login] on success.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal AuthResult
}

// PrincipalProvider is the interface callers implement to integrate
// adminauth with their principal database. Lookups use exact matches on the
// canonical identifier fields.
//
// Implementations must return [ErrPrincipalNotFound] for missing rows and
// wrap any transport or backend failure in [ErrStoreUnavailable] so the
// engine can keep the two failure classes apart.
type PrincipalProvider interface {
	GetByEmail(ctx context.Context, email string) (Principal, error)
	GetByID(ctx context.Context, id string) (Principal, error)
	UpdatePasswordHash(ctx context.Context, id, newHash string) error
}

// LoginAttempt is the append-only audit record written for every login
// attempt, success or failure. It is never consulted to gate a login.
type LoginAttempt struct {
	Email     string
	Success   bool
	IP        string
	UserAgent string
	At        time.Time
}

// AttemptRecorder persists [LoginAttempt] records. Recording is best-effort:
// a recorder failure is logged and never changes the login outcome.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt LoginAttempt) error
}

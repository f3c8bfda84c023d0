package adminauth

import "errors"

var (
	// ErrInvalidCredentials is returned when the identifier is unknown or the
	// secret does not match. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when credentials are valid but the
	// principal has been deactivated. Only surfaced after the hash check.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrInvalidSession is returned for any structurally invalid, mis-signed,
	// or expired token. The specific cause is audit-only.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionRevoked is returned when a token verifies but the session is
	// no longer present in the session store.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrInsufficientRole is returned by [Engine.Authorize] when the
	// principal's role ranks below the required role.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrStoreUnavailable marks a persistence collaborator failure. It must
	// never be collapsed into an authentication failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPrincipalNotFound is returned by [PrincipalProvider] lookups for
	// missing rows.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrLoginRateLimited is returned when the optional login throttle is
	// enabled and the attempt budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPasswordPolicy is returned when a new secret violates the configured
	// policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new secret equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrSessionInvalidationFailed is returned when revoking sessions after a
	// password change fails.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrEngineNotReady is returned when an Engine method is called on an
	// engine that was not built through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
)

package adminauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mtp-sa/adminauth/internal"
	"github.com/mtp-sa/adminauth/internal/rate"
	"github.com/mtp-sa/adminauth/password"
	"github.com/mtp-sa/adminauth/role"
	"github.com/mtp-sa/adminauth/session"
	"github.com/mtp-sa/adminauth/token"
)

// Engine is the service facade. It owns credential verification, token
// issuance, session lifecycle, and role authorization. Engines are built via
// [Builder.Build] and safe for concurrent use.
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	hasher       *password.Hasher
	tokens       *token.Manager
	provider     PrincipalProvider
	attempts     AttemptRecorder
}

// Close flushes the audit dispatcher. Call once when shutting down.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current metric values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Cookie returns the session cookie parameters the HTTP boundary should use.
func (e *Engine) Cookie() CookieConfig {
	return e.config.Cookie
}

// SessionTTL returns the configured absolute session lifetime.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.Token.TTL
}

// Login verifies credentials and, on success, creates a session and issues a
// signed token for it.
//
// Unknown identifier and wrong secret both fail with [ErrInvalidCredentials];
// the unknown-identifier path burns a dummy hash comparison so the two cases
// are indistinguishable by timing as well as by message. A deactivated
// account is only reported as [ErrAccountDisabled] after the secret has been
// verified, so disabled status is never leaked to guessers.
func (e *Engine) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	if e == nil || e.hasher == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Check(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{
						"identifier": email,
					}
				})
				return nil, ErrLoginRateLimited
			}
			e.metricInc(MetricStoreFailure)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if email == "" || secret == "" {
		// Burn the comparison anyway so empty submissions cost the same.
		e.hasher.VerifyDummy(secret)
		return nil, e.failLogin(ctx, email, "", "empty_input")
	}

	principal, err := e.provider.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.hasher.VerifyDummy(secret)
			return nil, e.failLogin(ctx, email, "", "unknown_identifier")
		}
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "provider_failure",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !e.hasher.Verify(secret, principal.PasswordHash) {
		return nil, e.failLogin(ctx, email, principal.ID, "secret_mismatch")
	}

	if !principal.Active {
		e.recordAttempt(ctx, email, false)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "account_disabled",
			}
		})
		return nil, ErrAccountDisabled
	}

	if needsUpgrade, upErr := e.hasher.NeedsUpgrade(principal.PasswordHash); upErr == nil && needsUpgrade {
		if upgraded, hashErr := e.hasher.Hash(secret); hashErr == nil {
			// Rehash is best-effort and must not block a successful login.
			if err := e.provider.UpdatePasswordHash(ctx, principal.ID, upgraded); err != nil {
				log.Print("adminauth: password hash upgrade failed")
			}
		}
	}
	secret = ""

	sid, err := internal.NewSessionID()
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", err, nil)
		return nil, err
	}
	sessionID := sid.String()

	now := time.Now()
	ttl := e.config.Token.TTL
	sess := &session.Session{
		SID:         sessionID,
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Name:        principal.Name,
		Role:        string(principal.Role),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}

	if err := e.sessionStore.Put(ctx, sess, ttl); err != nil {
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, sessionID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "session_save_failed",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	signed, expiresAt, err := e.tokens.Issue(
		principal.ID,
		principal.Email,
		principal.Name,
		string(principal.Role),
		sessionID,
	)
	if err != nil {
		_ = e.sessionStore.Delete(ctx, sessionID)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, sessionID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "token_issue_failed",
			}
		})
		return nil, err
	}

	if e.rateLimiter != nil {
		// Counter reset is best-effort; a failure here never blocks the login.
		if err := e.rateLimiter.Reset(ctx, email, ip); err != nil {
			log.Print("adminauth: login limiter reset failed")
		}
	}

	e.recordAttempt(ctx, email, true)
	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal.ID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})

	return &LoginResult{
		Token:     signed,
		ExpiresAt: expiresAt,
		Principal: AuthResult{
			PrincipalID: principal.ID,
			Email:       principal.Email,
			Name:        principal.Name,
			Role:        principal.Role,
			SessionID:   sessionID,
		},
	}, nil
}

// failLogin is the shared failure tail for credential rejections: attempt
// record, throttle increment, metrics, audit, and always the same generic
// error back to the caller.
func (e *Engine) failLogin(ctx context.Context, email, principalID, reason string) error {
	e.recordAttempt(ctx, email, false)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Increment(ctx, email, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, principalID, "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{
						"identifier": email,
					}
				})
				return ErrLoginRateLimited
			}
			log.Print("adminauth: login limiter increment failed")
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, principalID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": email,
			"reason":     reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) recordAttempt(ctx context.Context, email string, success bool) {
	if e.attempts == nil {
		return
	}
	attempt := LoginAttempt{
		Email:     email,
		Success:   success,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		At:        time.Now().UTC(),
	}
	// The attempt log is an audit trail, not a gate. Failures are logged and
	// otherwise ignored.
	if err := e.attempts.RecordAttempt(ctx, attempt); err != nil {
		log.Print("adminauth: login attempt recording failed")
	}
}

// Validate checks a presented token end to end: signature and expiry, then
// session store presence, then current account activation. The returned
// identity reflects the principal record as it is now, not as it was at
// login.
//
// A store outage surfaces as [ErrStoreUnavailable], never as an
// authentication failure.
func (e *Engine) Validate(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		e.metricInc(MetricValidateRejected)
		e.emitAudit(ctx, auditEventValidateRejected, false, "", "", ErrInvalidSession, func() map[string]string {
			return map[string]string{
				"reason": "token_rejected",
			}
		})
		return nil, ErrInvalidSession
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			e.metricInc(MetricStoreFailure)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricValidateRejected)
		e.emitAudit(ctx, auditEventValidateRejected, false, claims.Subject, claims.SID, ErrSessionRevoked, func() map[string]string {
			return map[string]string{
				"reason": "session_absent",
			}
		})
		return nil, ErrSessionRevoked
	}

	principal, err := e.provider.GetByID(ctx, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			_ = e.sessionStore.Delete(ctx, claims.SID)
			e.metricInc(MetricSessionInvalidated)
			e.metricInc(MetricValidateRejected)
			e.emitAudit(ctx, auditEventValidateRejected, false, sess.PrincipalID, claims.SID, ErrInvalidSession, func() map[string]string {
				return map[string]string{
					"reason": "principal_missing",
				}
			})
			return nil, ErrInvalidSession
		}
		e.metricInc(MetricStoreFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !principal.Active {
		// Deactivation takes effect on the next request, not at token expiry.
		_ = e.sessionStore.DeleteAllForPrincipal(ctx, principal.ID)
		e.metricInc(MetricSessionInvalidated)
		e.metricInc(MetricValidateRejected)
		e.emitAudit(ctx, auditEventValidateRejected, false, principal.ID, claims.SID, ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"reason": "account_disabled",
			}
		})
		return nil, ErrAccountDisabled
	}

	e.metricInc(MetricValidateSuccess)

	return &AuthResult{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Name:        principal.Name,
		Role:        principal.Role,
		SessionID:   claims.SID,
	}, nil
}

// Authorize reports whether the authenticated principal may act at the
// required role level. Equal or higher rank passes.
func (e *Engine) Authorize(result *AuthResult, required role.Role) error {
	if result == nil {
		return ErrInvalidSession
	}
	if !result.Role.Allows(required) {
		return ErrInsufficientRole
	}
	return nil
}

// Logout revokes a single session. Revoking an unknown or already revoked
// session succeeds, so repeated logouts are harmless.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := e.sessionStore.Delete(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventLogoutSession, false, "", sessionID, err, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// LogoutByToken revokes the session named in a presented token. A token that
// does not verify has no session to revoke, so it succeeds as a no-op.
func (e *Engine) LogoutByToken(ctx context.Context, tokenStr string) error {
	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		return nil
	}
	return e.Logout(ctx, claims.SID)
}

// LogoutAll revokes every tracked session of a principal.
func (e *Engine) LogoutAll(ctx context.Context, principalID string) error {
	err := e.sessionStore.DeleteAllForPrincipal(ctx, principalID)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventLogoutAll, false, principalID, "", err, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutAll, true, principalID, "", nil, nil)
	return nil
}

// ChangePassword re-verifies the current secret, rejects reuse, persists the
// new hash, and revokes every other session of the principal. keepSID names
// the session performing the change; pass "" to revoke all sessions
// including the current one.
func (e *Engine) ChangePassword(ctx context.Context, principalID, currentSecret, newSecret, keepSID string) error {
	if e == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	if principalID == "" || currentSecret == "" || newSecret == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, keepSID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrPasswordPolicy
	}

	principal, err := e.provider.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, keepSID, ErrPrincipalNotFound, func() map[string]string {
				return map[string]string{
					"reason": "principal_missing",
				}
			})
			return ErrPrincipalNotFound
		}
		e.metricInc(MetricStoreFailure)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !principal.Active {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, keepSID, ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"reason": "account_disabled",
			}
		})
		return ErrAccountDisabled
	}

	if !e.hasher.Verify(currentSecret, principal.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, principalID, keepSID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if e.hasher.Verify(newSecret, principal.PasswordHash) {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, principalID, keepSID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newSecret)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, keepSID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "hash_policy",
			}
		})
		return ErrPasswordPolicy
	}

	if err := e.provider.UpdatePasswordHash(ctx, principalID, newHash); err != nil {
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, keepSID, err, func() map[string]string {
			return map[string]string{
				"reason": "update_hash_failed",
			}
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.sessionStore.DeleteAllExcept(ctx, principalID, keepSID); err != nil {
		log.Print("adminauth: session invalidation failed after password change")
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, keepSID, ErrSessionInvalidationFailed, func() map[string]string {
			return map[string]string{
				"reason": "session_invalidation_failed",
			}
		})
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	if e.rateLimiter != nil {
		// Limiter reset is best-effort and must not block the change.
		if err := e.rateLimiter.Reset(ctx, principal.Email, clientIPFromContext(ctx)); err != nil {
			log.Print("adminauth: login limiter reset failed after password change")
		}
	}

	currentSecret = ""
	newSecret = ""
	e.metricInc(MetricSessionInvalidated)
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, principalID, keepSID, nil, nil)

	return nil
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/role"
)

type authResultContextKey struct{}

// PrincipalFromContext returns the authenticated principal placed in the
// request context by [Guard].
func PrincipalFromContext(ctx context.Context) (*adminauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*adminauth.AuthResult)
	return res, ok
}

// Options tunes a [Guard] instance.
type Options struct {
	// RequiredRole, when non-empty, is the minimum role rank a request must
	// hold. Empty means any authenticated principal passes.
	RequiredRole role.Role
	// LoginURL, when set, turns authentication failures into redirects for
	// browser page loads instead of JSON 401 responses. API routes leave it
	// empty.
	LoginURL string
}

// Guard returns middleware that authenticates every request from the session
// cookie and authorizes it against the required role.
//
// Each request is validated in full: token signature and expiry, session
// store presence, and current account activation. Authentication failures
// produce 401 (or a redirect to LoginURL), authorization failures 403, and a
// session store outage 500. The outage case must stay a 500: treating it as
// 401 would mass-logout every admin whenever Redis blips, and treating it as
// a pass would fail open.
func Guard(engine *adminauth.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				reject(w, r, opts, http.StatusUnauthorized)
				return
			}

			cookie, err := r.Cookie(engine.Cookie().Name)
			if err != nil || cookie.Value == "" {
				reject(w, r, opts, http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, adminauth.ErrStoreUnavailable) {
					writeGuardError(w, http.StatusInternalServerError, "service unavailable")
					return
				}
				ClearSessionCookie(w, engine.Cookie())
				reject(w, r, opts, http.StatusUnauthorized)
				return
			}

			if opts.RequiredRole != "" {
				if err := engine.Authorize(res, opts.RequiredRole); err != nil {
					reject(w, r, opts, http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, opts Options, status int) {
	if opts.LoginURL != "" && status == http.StatusUnauthorized {
		http.Redirect(w, r, opts.LoginURL, http.StatusFound)
		return
	}
	if status == http.StatusForbidden {
		writeGuardError(w, status, "forbidden")
		return
	}
	writeGuardError(w, status, "unauthorized")
}

// Rejections on API routes carry the same JSON error shape as the handlers.
func writeGuardError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

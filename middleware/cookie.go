package middleware

import (
	"net/http"
	"time"

	adminauth "github.com/mtp-sa/adminauth"
)

// SetSessionCookie writes the HTTP-only session cookie. Max-Age follows the
// token expiry so browser and server agree on the session's end of life.
func SetSessionCookie(w http.ResponseWriter, cfg adminauth.CookieConfig, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     cookiePath(cfg),
		Domain:   cfg.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, cfg adminauth.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cookiePath(cfg),
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func cookiePath(cfg adminauth.CookieConfig) string {
	if cfg.Path == "" {
		return "/"
	}
	return cfg.Path
}

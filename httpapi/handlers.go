package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/middleware"
)

// Handler exposes the admin auth endpoints over HTTP.
type Handler struct {
	engine *adminauth.Engine
}

// NewHandler wraps an engine.
func NewHandler(engine *adminauth.Engine) *Handler {
	return &Handler{engine: engine}
}

// Router builds the route table. Login and logout are open; whoami and
// change-password sit behind the session guard.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", h.handleLogout).Methods(http.MethodPost)

	guarded := r.PathPrefix("/api/auth").Subrouter()
	guarded.Use(middleware.Guard(h.engine, middleware.Options{}))
	guarded.HandleFunc("/me", h.handleWhoami).Methods(http.MethodGet)
	guarded.HandleFunc("/change-password", h.handleChangePassword).Methods(http.MethodPost)

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type principalPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Success bool             `json:"success"`
	User    principalPayload `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := adminauth.WithClientIP(r.Context(), clientIP(r))
	ctx = adminauth.WithUserAgent(ctx, r.UserAgent())

	result, err := h.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, adminauth.ErrLoginRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		case errors.Is(err, adminauth.ErrStoreUnavailable):
			writeError(w, http.StatusInternalServerError, "service unavailable")
		case errors.Is(err, adminauth.ErrAccountDisabled):
			// Distinct response. The engine only reaches this state after
			// the secret verified, so it leaks nothing to guessers.
			writeError(w, http.StatusUnauthorized, "account is disabled")
		default:
			// Unknown identifier and wrong secret collapse to the same
			// response.
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		}
		return
	}

	middleware.SetSessionCookie(w, h.engine.Cookie(), result.Token, result.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    toPayload(&result.Principal),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := adminauth.WithClientIP(r.Context(), clientIP(r))

	if cookie, err := r.Cookie(h.engine.Cookie().Name); err == nil && cookie.Value != "" {
		if err := h.engine.LogoutByToken(ctx, cookie.Value); err != nil {
			writeError(w, http.StatusInternalServerError, "service unavailable")
			return
		}
	}

	// Logging out without a session is still a successful logout.
	middleware.ClearSessionCookie(w, h.engine.Cookie())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]principalPayload{"user": toPayload(principal)})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := adminauth.WithClientIP(r.Context(), clientIP(r))

	err := h.engine.ChangePassword(ctx, principal.PrincipalID, req.CurrentPassword, req.NewPassword, principal.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, adminauth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, adminauth.ErrPasswordReuse):
			writeError(w, http.StatusBadRequest, "new password must be different from current password")
		case errors.Is(err, adminauth.ErrPasswordPolicy):
			writeError(w, http.StatusBadRequest, "new password does not meet policy")
		default:
			writeError(w, http.StatusInternalServerError, "service unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func toPayload(p *adminauth.AuthResult) principalPayload {
	return principalPayload{
		ID:    p.PrincipalID,
		Email: p.Email,
		Name:  p.Name,
		Role:  string(p.Role),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

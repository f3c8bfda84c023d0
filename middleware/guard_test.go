package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/middleware"
	"github.com/mtp-sa/adminauth/role"
	"github.com/mtp-sa/adminauth/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type guardFixture struct {
	engine   *adminauth.Engine
	provider *memory.Provider
	redis    *miniredis.Miniredis
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	provider := memory.NewProvider()

	engine, err := adminauth.New().
		WithTokenSecret(testSecret).
		WithRedis(client).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &guardFixture{engine: engine, provider: provider, redis: mr}
}

func (f *guardFixture) addPrincipal(t *testing.T, email string, r role.Role, secret string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 10)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	id, err := f.provider.CreatePrincipal(email, "Test Admin", r, string(hash), true)
	if err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	return id
}

func (f *guardFixture) login(t *testing.T, email, secret string) *adminauth.LoginResult {
	t.Helper()

	res, err := f.engine.Login(context.Background(), email, secret)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.PrincipalFromContext(r.Context()); !ok {
			http.Error(w, "no principal in context", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithCookie(cfg adminauth.CookieConfig, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cfg.Name, Value: token})
	}
	return req
}

func TestGuardAllowsValidSession(t *testing.T) {
	f := newGuardFixture(t)
	f.addPrincipal(t, "editor@example.com", role.Editor, "editor-secret")
	login := f.login(t, "editor@example.com", "editor-secret")

	handler := middleware.Guard(f.engine, middleware.Options{})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), login.Token))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}

func TestGuardRejectsMissingCookie(t *testing.T) {
	f := newGuardFixture(t)
	handler := middleware.Guard(f.engine, middleware.Options{})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGuardRejectsGarbageToken(t *testing.T) {
	f := newGuardFixture(t)
	handler := middleware.Guard(f.engine, middleware.Options{})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), "not-a-token"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGuardRejectsRevokedSession(t *testing.T) {
	f := newGuardFixture(t)
	f.addPrincipal(t, "editor@example.com", role.Editor, "editor-secret")
	login := f.login(t, "editor@example.com", "editor-secret")

	if err := f.engine.Logout(context.Background(), login.Principal.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	handler := middleware.Guard(f.engine, middleware.Options{})(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), login.Token))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status after logout = %d, want 401", rec.Code)
	}
}

func TestGuardRejectsDeactivatedMidSession(t *testing.T) {
	f := newGuardFixture(t)
	id := f.addPrincipal(t, "editor@example.com", role.Editor, "editor-secret")
	login := f.login(t, "editor@example.com", "editor-secret")

	if err := f.provider.SetActive(id, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	handler := middleware.Guard(f.engine, middleware.Options{})(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), login.Token))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status after deactivation = %d, want 401", rec.Code)
	}
}

func TestGuardRoleEnforcement(t *testing.T) {
	f := newGuardFixture(t)
	f.addPrincipal(t, "editor@example.com", role.Editor, "editor-secret")
	f.addPrincipal(t, "root@example.com", role.SuperAdmin, "super-secret-1")

	editorLogin := f.login(t, "editor@example.com", "editor-secret")
	superLogin := f.login(t, "root@example.com", "super-secret-1")

	handler := middleware.Guard(f.engine, middleware.Options{RequiredRole: role.Admin})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), editorLogin.Token))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("editor on admin route = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), superLogin.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("super_admin on admin route = %d, want 200", rec.Code)
	}
}

func TestGuardStoreOutageIs500Not401(t *testing.T) {
	f := newGuardFixture(t)
	f.addPrincipal(t, "editor@example.com", role.Editor, "editor-secret")
	login := f.login(t, "editor@example.com", "editor-secret")

	f.redis.Close()

	handler := middleware.Guard(f.engine, middleware.Options{})(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), login.Token))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status with store down = %d, want 500", rec.Code)
	}
}

func TestGuardRejectionBodiesAreJSON(t *testing.T) {
	f := newGuardFixture(t)
	f.addPrincipal(t, "editor@example.com", role.Editor, "editor-secret")
	login := f.login(t, "editor@example.com", "editor-secret")

	open := middleware.Guard(f.engine, middleware.Options{})(okHandler())
	adminOnly := middleware.Guard(f.engine, middleware.Options{RequiredRole: role.Admin})(okHandler())

	checkBody := func(rec *httptest.ResponseRecorder, wantStatus int, wantError string) {
		t.Helper()
		if rec.Code != wantStatus {
			t.Fatalf("status = %d, want %d", rec.Code, wantStatus)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("Content-Type = %q, want application/json", ct)
		}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != wantError {
			t.Fatalf("error = %q, want %q", body.Error, wantError)
		}
	}

	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), ""))
	checkBody(rec, http.StatusUnauthorized, "unauthorized")

	rec = httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), login.Token))
	checkBody(rec, http.StatusForbidden, "forbidden")

	f.redis.Close()
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), login.Token))
	checkBody(rec, http.StatusInternalServerError, "service unavailable")
}

func TestGuardRedirectsBrowserRequests(t *testing.T) {
	f := newGuardFixture(t)

	handler := middleware.Guard(f.engine, middleware.Options{LoginURL: "/admin/login"})(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithCookie(f.engine.Cookie(), ""))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/login" {
		t.Fatalf("Location = %q, want /admin/login", loc)
	}
}

func TestSetAndClearSessionCookie(t *testing.T) {
	cfg := adminauth.CookieConfig{
		Name:     "mtp-admin-token",
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}

	rec := httptest.NewRecorder()
	middleware.SetSessionCookie(rec, cfg, "tok", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("len(cookies) = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes wrong: %+v", c)
	}
	if c.MaxAge <= 0 {
		t.Fatalf("MaxAge = %d, want positive", c.MaxAge)
	}

	rec = httptest.NewRecorder()
	middleware.ClearSessionCookie(rec, cfg)
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("clear cookie wrong: %+v", cookies)
	}
}

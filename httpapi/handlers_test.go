package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/httpapi"
	"github.com/mtp-sa/adminauth/role"
	"github.com/mtp-sa/adminauth/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type apiFixture struct {
	engine   *adminauth.Engine
	provider *memory.Provider
	redis    *miniredis.Miniredis
	server   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	provider := memory.NewProvider()

	engine, err := adminauth.New().
		WithTokenSecret(testSecret).
		WithRedis(client).
		WithProvider(provider).
		WithAttemptRecorder(provider).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &apiFixture{
		engine:   engine,
		provider: provider,
		redis:    mr,
		server:   httpapi.NewHandler(engine).Router(),
	}
}

func (f *apiFixture) addPrincipal(t *testing.T, email string, r role.Role, secret string, active bool) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 10)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	id, err := f.provider.CreatePrincipal(email, "Test Admin", r, string(hash), active)
	if err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	return id
}

func (f *apiFixture) postJSON(t *testing.T, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) login(t *testing.T, email, secret string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()

	rec := f.postJSON(t, "/api/auth/login", map[string]string{
		"email":    email,
		"password": secret,
	}, nil)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == f.engine.Cookie().Name && c.Value != "" {
			sessionCookie = c
		}
	}
	return rec, sessionCookie
}

func TestLoginSuccessSetsCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)

	rec, cookie := f.login(t, "admin@example.com", "correct-horse")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie is not HTTP-only")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("SameSite = %v, want Lax", cookie.SameSite)
	}

	var body struct {
		Success bool `json:"success"`
		User    struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.User.Email != "admin@example.com" || body.User.Role != "admin" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)

	unknown, _ := f.login(t, "nobody@example.com", "whatever-secret")
	wrongSecret, _ := f.login(t, "admin@example.com", "wrong-secret")

	for name, rec := range map[string]*httptest.ResponseRecorder{
		"unknown identifier": unknown,
		"wrong secret":       wrongSecret,
	} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}

	if unknown.Body.String() != wrongSecret.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", unknown.Body.String(), wrongSecret.Body.String())
	}
}

func TestLoginDisabledAccountIsDistinct(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)
	f.addPrincipal(t, "frozen@example.com", role.Editor, "frozen-secret", false)

	// Correct secret on a disabled account names the condition.
	disabled, _ := f.login(t, "frozen@example.com", "frozen-secret")
	if disabled.Code != http.StatusUnauthorized {
		t.Fatalf("disabled: status = %d, want 401", disabled.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(disabled.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "account is disabled" {
		t.Fatalf("disabled error = %q, want %q", body.Error, "account is disabled")
	}

	// Wrong secret on the same disabled account stays opaque.
	wrongSecret, _ := f.login(t, "frozen@example.com", "wrong-secret")
	opaque, _ := f.login(t, "nobody@example.com", "whatever-secret")
	if wrongSecret.Body.String() != opaque.Body.String() {
		t.Fatalf("wrong-secret body differs: %q vs %q", wrongSecret.Body.String(), opaque.Body.String())
	}
}

func TestLoginStoreOutageIs500(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)
	f.redis.Close()

	rec, _ := f.login(t, "admin@example.com", "correct-horse")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status with store down = %d, want 500", rec.Code)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)
	_, cookie := f.login(t, "admin@example.com", "correct-horse")

	first := f.postJSON(t, "/api/auth/logout", nil, cookie)
	if first.Code != http.StatusOK {
		t.Fatalf("first logout = %d, want 200", first.Code)
	}

	// Replaying the same cookie, and no cookie at all, both succeed.
	second := f.postJSON(t, "/api/auth/logout", nil, cookie)
	if second.Code != http.StatusOK {
		t.Fatalf("second logout = %d, want 200", second.Code)
	}
	third := f.postJSON(t, "/api/auth/logout", nil, nil)
	if third.Code != http.StatusOK {
		t.Fatalf("logout without cookie = %d, want 200", third.Code)
	}
}

func TestWhoami(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)
	_, cookie := f.login(t, "admin@example.com", "correct-horse")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Email != "admin@example.com" {
		t.Fatalf("email = %q, want admin@example.com", body.User.Email)
	}

	// Without a cookie the route is closed.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated whoami = %d, want 401", rec.Code)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.addPrincipal(t, "admin@example.com", role.Admin, "correct-horse", true)
	_, cookie := f.login(t, "admin@example.com", "correct-horse")
	_, otherCookie := f.login(t, "admin@example.com", "correct-horse")

	// Wrong current password.
	rec := f.postJSON(t, "/api/auth/change-password", map[string]string{
		"currentPassword": "wrong-secret",
		"newPassword":     "brand-new-secret",
	}, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current = %d, want 401", rec.Code)
	}

	// Reusing the current password.
	rec = f.postJSON(t, "/api/auth/change-password", map[string]string{
		"currentPassword": "correct-horse",
		"newPassword":     "correct-horse",
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reuse = %d, want 400", rec.Code)
	}

	// Too short for policy.
	rec = f.postJSON(t, "/api/auth/change-password", map[string]string{
		"currentPassword": "correct-horse",
		"newPassword":     "short",
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("policy violation = %d, want 400", rec.Code)
	}

	// Success.
	rec = f.postJSON(t, "/api/auth/change-password", map[string]string{
		"currentPassword": "correct-horse",
		"newPassword":     "brand-new-secret",
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("change = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	// The changing session survives; the other session is revoked.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	live := httptest.NewRecorder()
	f.server.ServeHTTP(live, req)
	if live.Code != http.StatusOK {
		t.Fatalf("changing session after change = %d, want 200", live.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(otherCookie)
	revoked := httptest.NewRecorder()
	f.server.ServeHTTP(revoked, req)
	if revoked.Code != http.StatusUnauthorized {
		t.Fatalf("other session after change = %d, want 401", revoked.Code)
	}

	// Old password no longer logs in; new one does.
	old, _ := f.login(t, "admin@example.com", "correct-horse")
	if old.Code != http.StatusUnauthorized {
		t.Fatalf("old password login = %d, want 401", old.Code)
	}
	fresh, _ := f.login(t, "admin@example.com", "brand-new-secret")
	if fresh.Code != http.StatusOK {
		t.Fatalf("new password login = %d, want 200", fresh.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	provider := memory.NewProvider()

	cfg := adminauth.DefaultConfig()
	cfg.Token.Secret = testSecret
	cfg.Security.EnableLoginThrottle = true
	cfg.Security.MaxLoginAttempts = 2

	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	server := httpapi.NewHandler(engine).Router()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), 10)
	if _, err := provider.CreatePrincipal("admin@example.com", "Admin", role.Admin, string(hash), true); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}

	attempt := func() int {
		body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := attempt(); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d, want 401", i+1, code)
		}
	}
	if code := attempt(); code != http.StatusTooManyRequests {
		t.Fatalf("attempt over budget = %d, want 429", code)
	}
}

// Package httpapi wires the auth endpoints onto a mux router.
//
// Routes:
//
//	POST /api/auth/login            verify credentials, set session cookie
//	POST /api/auth/logout           revoke session, clear cookie, always 200
//	GET  /api/auth/me               authenticated principal (guarded)
//	POST /api/auth/change-password  rotate secret, revoke other sessions (guarded)
//
// Login failures are opaque 401s regardless of cause. A session store outage
// is a 500 on every route that touches it.
package httpapi

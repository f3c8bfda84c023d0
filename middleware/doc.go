// Package middleware provides the HTTP route guard and session cookie
// helpers for the admin area.
//
// The guard authenticates every request from the session cookie, revalidates
// the session against the store and the principal record, and enforces a
// minimum role. Downstream handlers read the authenticated principal via
// PrincipalFromContext.
//
// # Architecture boundaries
//
// The guard is a thin adapter over Engine.Validate and Engine.Authorize. It
// owns HTTP status mapping and cookie handling, nothing else.
//
// # What this package must NOT do
//
//   - Distinguish token failure causes in responses. All authentication
//     failures look the same to a client.
//   - Convert a store outage into 401. An outage is a 500.
//   - Read credentials from anywhere but the session cookie.
package middleware

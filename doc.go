// Package adminauth provides the session and authorization engine that
// protects the admin area of the MTP corporate site: bcrypt credential
// verification, HS256-signed session tokens, a Redis-backed revocable
// session store, and a strict role hierarchy for route-level authorization.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// adminauth is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and value types. Token signing lives in the token
// subpackage, session persistence in session, role ordering in role, and the
// HTTP boundary in middleware and httpapi. Principal storage is always
// injected through [PrincipalProvider]; the engine never opens a database
// itself.
//
// # What this package must NOT do
//
//   - Serve HTTP or read cookies (middleware and httpapi own the transport).
//   - Treat a persistence failure as an authentication failure. Store errors
//     surface as [ErrStoreUnavailable] and must reach the caller as such.
//   - Echo internal failure distinctions (unknown identifier vs. wrong
//     secret, malformed vs. expired token) to clients. Those reach the audit
//     trail only.
package adminauth

// Package session implements the Redis-backed store of revocable admin
// sessions: persistence keyed by session ID, lazy expiry enforcement on
// read, idempotent deletion, and per-principal bulk revocation.
//
// # Architecture boundaries
//
// This package is the server-side half of session validity. It knows nothing
// about tokens, signatures, roles, or principals beyond the denormalized
// payload it stores; the engine composes it with the token codec and the
// principal provider.
package session

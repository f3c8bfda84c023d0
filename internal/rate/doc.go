// Package rate implements fixed-window login throttling on Redis counters.
//
// A failed attempt increments a per-identifier counter (and optionally a
// per-IP counter); the first increment in a window arms the cooldown TTL.
// Once a counter passes the configured maximum, further attempts fail with
// ErrRateLimited until the window expires.
//
// # Architecture boundaries
//
// This package knows nothing about principals, passwords, or sessions. It
// counts opaque identifiers. The engine decides what an identifier is and
// when counting happens.
//
// # What this package must NOT do
//
//   - Distinguish existing accounts from unknown ones.
//   - Block successful logins that arrive before the budget is spent.
//   - Persist anything beyond the cooldown window.
package rate

// Package token implements the signed session token codec: HS256-signed JWTs
// carrying a denormalized principal payload and the session ID used for
// server-side revocation checks.
//
// # Architecture boundaries
//
// This package only signs and verifies. It never consults the session store
// or the principal database; a valid signature does not imply a live,
// authorized session. Engine.Validate layers those checks on top.
package token

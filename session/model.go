package session

// Session is the server-side record of one live admin session. The payload
// duplicates the token claims so revocation checks never need to re-parse
// the token, and expiry is carried explicitly so an entry that outlives its
// Redis TTL still reads as absent.
type Session struct {
	SID         string `json:"sid"`
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role"`

	CreatedAt int64 `json:"created_at"`
	ExpiresAt int64 `json:"expires_at"`
}

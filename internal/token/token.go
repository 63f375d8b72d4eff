package token

import "time"

// TTL is the fixed validity window of every issued credential, measured
// from issuance time.
const TTL = 3600 * time.Second

// WildcardUID is the sentinel uid meaning "platform assigns one at join time".
const WildcardUID = "0"

// JoinRequest is the body of a token request: who wants to join which room.
type JoinRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// Credential is a signed, time-bounded authorization to join exactly one
// channel as exactly one uid. Credentials are never mutated; renewal
// produces a new one that supersedes the old.
type Credential struct {
	Token     string
	Channel   string
	UID       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential is past its validity window.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

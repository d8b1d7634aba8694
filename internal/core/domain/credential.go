package domain

import "time"

const DefaultCredentialTTL = 60 * time.Minute

// SessionCredential admits the holder to a call channel until ExpiresAt.
type SessionCredential struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c SessionCredential) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

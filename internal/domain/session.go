// Package domain contains core domain types for the docgate application.
package domain

import (
	"time"
)

// SessionRecord is the cached token of one device (browser or terminal client).
type SessionRecord struct {
	DeviceID  string    `json:"device_id"`
	Token     string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	Roles     []string  `json:"roles,omitempty"` // last fetched roles, informational only
	UpdatedAt time.Time `json:"updated_at"`
}

// Valid reports whether the record holds a token younger than ttl at now.
func (r *SessionRecord) Valid(now time.Time, ttl time.Duration) bool {
	if r == nil || r.Token == "" || r.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(r.IssuedAt) < ttl
}

// Remaining returns the time until the record expires.
// Returns 0 if it has already expired.
func (r *SessionRecord) Remaining(now time.Time, ttl time.Duration) time.Duration {
	if !r.Valid(now, ttl) {
		return 0
	}
	return r.IssuedAt.Add(ttl).Sub(now)
}

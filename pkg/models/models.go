package models

import "time"

// User represents a user known to the static identity verifier
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	Password  string    `json:"-" yaml:"password"` // Never serialized in responses
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// SessionRecord is the durable snapshot of one browser session: the state
// that must survive a provider restart or be visible to other instances.
// Per-request protocol parameters are deliberately not part of it.
type SessionRecord struct {
	Token          string    `json:"token"`
	Authenticated  bool      `json:"authenticated"`
	UserID         string    `json:"user_id,omitempty"`
	ApprovedRealms []string  `json:"approved_realms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

package domain

import "time"

// Session binds the hash of a bearer token to one user on one hostname.
// The token itself is never stored; ID is the SHA-256 hex of it.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"index;size:64;not null" json:"user_id"`
	Hostname  string    `gorm:"size:255;not null" json:"hostname"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	// Fresh is set on reads that extended ExpiresAt this request; it is
	// never persisted.
	Fresh bool `gorm:"-" json:"-"`
}

// Package model defines the data structures used throughout the application.
package model

import "time"

// Account is a registered user with credentials and identity fields.
//
// The internal ID is an xid string and never leaves the system as an
// authentication credential — clients identify themselves with the 8-digit
// RiderID generated at registration. Email is stored lowercased. The system
// tolerates duplicate emails (no UNIQUE constraint); login resolves
// duplicates to the earliest-created account.
type Account struct {
	ID           string     `json:"user_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	RiderID      string     `json:"rider_id"` // 8-digit external identifier
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login"` // nil until first login
}

// Profile is the one-to-one companion of an Account, created with it in the
// same transaction. Avatar is a reference string (a path or URL) — file
// handling is out of scope.
type Profile struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	Location  string    `json:"location"`
	Avatar    string    `json:"avatar"`
	RiderID   string    `json:"rider_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RiderInfo is the denormalized secondary record keyed by rider_id. It
// duplicates email and username from the Account for lookups that must not
// join the accounts table. Invariant: for every account, exactly one
// RiderInfo row exists with matching rider_id, email and username; any
// identity-affecting change writes both tables in one transaction.
type RiderInfo struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"-"`
	RiderID      string    `json:"rider_id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// RiderSummary is the flattened view returned by the rider listing and
// lookup endpoints: RiderInfo fields plus account identity fields and the
// live-joined profile location (empty string when the profile is missing).
type RiderSummary struct {
	RiderID        string     `json:"rider_id"`
	UserID         string     `json:"user_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DateJoined     time.Time  `json:"date_joined"`
	LastLogin      *time.Time `json:"last_login"`
	Location       string     `json:"location"`
	IsActive       bool       `json:"is_active"`
	RiderCreatedAt time.Time  `json:"rider_created_at"`
	LastActivity   time.Time  `json:"last_activity"`
}

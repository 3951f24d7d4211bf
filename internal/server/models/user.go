package models

import "time"

// Tier is the subscription level controlling size and count ceilings.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// User is an account that can own secrets. Password authentication uses a
// salted one-way verifier; the password itself is never stored.
type User struct {
	ID        string
	UserName  string
	Verifier  string
	Tier      Tier
	CreatedAt time.Time
}

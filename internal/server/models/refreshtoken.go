package models

import "time"

// RefreshToken is a server-stored, single-use token exchanged for a new
// token pair. Rotation deletes the old row and inserts a new one in the
// same transaction.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

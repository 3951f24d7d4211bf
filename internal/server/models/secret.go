// Package models defines server-side data models persisted in the record store.
package models

import "time"

// SecretKind distinguishes the two supported plaintext shapes.
type SecretKind string

const (
	KindText SecretKind = "text"
	KindFile SecretKind = "file"
)

// Secret is the durable representation of one shared secret.
//
// Ciphertext, KeyMaterial and Kind are immutable after creation; the only
// permitted mutations are the view-count increment performed by the claim
// and owner-driven expiry changes.
type Secret struct {
	ID   string
	Kind SecretKind

	// Ciphertext is the base64url-encoded sealed payload. Empty when the
	// payload was offloaded to blob storage (StorageKey set).
	Ciphertext string
	// StorageKey points at the ciphertext blob in object storage for large
	// file secrets.
	StorageKey string

	// FileName and FileSize are informational metadata, present only for
	// file secrets. FileSize is the plaintext size in bytes.
	FileName string
	FileSize int64

	// KeyMaterial is the raw cipher key for passwordless secrets or the
	// KDF salt for password-protected ones. Never a derived key.
	KeyMaterial string
	// PasswordGate is the one-way password verifier; empty means the
	// secret is not password-protected.
	PasswordGate string

	// OwnerID is empty for anonymous secrets.
	OwnerID string

	ExpiryTime time.Time
	ViewCount  int
	CreatedAt  time.Time
}

// Anonymous reports whether the secret has no owning account. Anonymous
// secrets are hard-deleted on first disclosure.
func (s *Secret) Anonymous() bool {
	return s.OwnerID == ""
}

// PasswordProtected reports whether disclosure requires the access gate.
func (s *Secret) PasswordProtected() bool {
	return s.PasswordGate != ""
}

// Expired reports whether the secret is past its deadline at the given time.
func (s *Secret) Expired(now time.Time) bool {
	return !now.Before(s.ExpiryTime)
}

// Dead reports whether the secret may never again yield plaintext: it was
// disclosed once or it expired. Dead records present as not found to
// unauthenticated callers.
func (s *Secret) Dead(now time.Time) bool {
	return s.ViewCount > 0 || s.Expired(now)
}

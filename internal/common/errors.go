// Package common defines shared constants and sentinel errors used across
// client and server layers of Sealbox. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Lifecycle errors. A viewed or expired secret presents as terminal;
	// the distinction exists for UI messaging only.
	ErrorExpired       = errors.New("secret expired")
	ErrorAlreadyViewed = errors.New("secret already viewed")

	// Access gate errors.
	ErrorWrongPassword = errors.New("wrong password")

	// Cipher errors (wrong key, corrupted ciphertext, empty plaintext).
	ErrorDecrypt = errors.New("decryption failed")

	// Validation / request shape errors.
	ErrorValidation = errors.New("validation error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorTierRequired = errors.New("operation requires a higher plan tier")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Account errors.
	ErrorLoginAlreadyExists = errors.New("login already exists")
)

// IsTerminal reports whether err marks a secret as permanently unservable.
// The lifecycle controller treats all three identically; only the message
// shown to a human differs.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrorNotFound) ||
		errors.Is(err, ErrorExpired) ||
		errors.Is(err, ErrorAlreadyViewed)
}

// Package secrets defines the secret record store contract and its
// PostgreSQL, Redis and in-memory implementations.
package secrets

import (
	"context"
	"time"

	"github.com/sealbox/sealbox/internal/server/models"
)

// SweepResult reports what an expiry sweep removed.
type SweepResult struct {
	// Deleted is the number of records removed.
	Deleted int64
	// StorageKeys lists blob keys of removed file records so the caller
	// can delete the ciphertext blobs as well.
	StorageKeys []string
}

// Repository is the secret record store.
//
// Claim is the safety-critical operation: the "view_count == 0 and not
// expired" check, the increment, and the anonymous-record deletion must be
// atomic with respect to concurrent Claim calls for the same id. Each
// implementation provides that atomicity its own way (conditional SQL
// update, Redis optimistic transaction, mutex).
type Repository interface {
	// Create persists a new record and returns its store-generated id.
	Create(ctx context.Context, secret *models.Secret) (string, error)

	// Get returns a record regardless of its lifecycle state, or
	// common.ErrorNotFound. Callers apply the terminal predicate.
	Get(ctx context.Context, id string) (*models.Secret, error)

	// Claim atomically consumes the single view: it succeeds only if the
	// record exists, is unexpired at now, and has view_count == 0. On
	// success the returned record carries the incremented count and
	// anonymous records are already deleted from the store. Failures are
	// common.ErrorNotFound, common.ErrorExpired or common.ErrorAlreadyViewed.
	Claim(ctx context.Context, id string, now time.Time) (*models.Secret, error)

	// Delete removes a record unconditionally. Deleting an absent record
	// returns common.ErrorNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every record whose expiry passed before now,
	// plus owned records of the given tier created before retentionCutoff
	// (retention policy; pass a zero cutoff to disable).
	DeleteExpired(ctx context.Context, now time.Time, retentionTier models.Tier, retentionCutoff time.Time) (SweepResult, error)

	// ListByOwner returns all records of one owner, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Secret, error)

	// CountActive returns the number of live (unviewed, unexpired) records
	// owned by ownerID at now.
	CountActive(ctx context.Context, ownerID string, now time.Time) (int64, error)

	// UpdateExpiry sets a record's expiry time. It fails with
	// common.ErrorNotFound if the record does not exist or is not owned
	// by ownerID.
	UpdateExpiry(ctx context.Context, id, ownerID string, expiry time.Time) error
}

// Package blob stores large ciphertext payloads outside the record store.
// File secrets above the inline threshold keep only a storage key on the
// record; the sealed bytes live in an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the ciphertext blob store. Values are opaque sealed payloads;
// the store never sees plaintext or key material.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a fresh date-partitioned object key.
func NewStorageKey(now time.Time) string {
	return fmt.Sprintf("secrets/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), uuid.New())
}

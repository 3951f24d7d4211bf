package secrets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/server/models"
)

// MemoryRepository is a mutex-serialized in-memory Repository used for
// development and tests. The mutex is what makes Claim atomic here.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*models.Secret
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.Secret)}
}

func (r *MemoryRepository) Create(ctx context.Context, secret *models.Secret) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	secret.ID = uuid.NewString()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now()
	}
	clone := *secret
	r.records[secret.ID] = &clone
	return secret.ID, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *MemoryRepository) Claim(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if s.ViewCount > 0 {
		return nil, common.ErrorAlreadyViewed
	}
	if s.Expired(now) {
		return nil, common.ErrorExpired
	}

	s.ViewCount++
	clone := *s
	if s.Anonymous() {
		delete(r.records, id)
	}
	return &clone, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time, retentionTier models.Tier, retentionCutoff time.Time) (SweepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The memory backend has no account table, so the tier-based retention
	// predicate does not apply; owned records exist only in relational mode.
	var result SweepResult
	for id, s := range r.records {
		if s.Expired(now) {
			if s.StorageKey != "" {
				result.StorageKeys = append(result.StorageKeys, s.StorageKey)
			}
			delete(r.records, id)
			result.Deleted++
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Secret
	for _, s := range r.records {
		if s.OwnerID == ownerID && ownerID != "" {
			clone := *s
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) CountActive(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.records {
		if s.OwnerID == ownerID && ownerID != "" && !s.Dead(now) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) UpdateExpiry(ctx context.Context, id, ownerID string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.records[id]
	if !ok || s.OwnerID != ownerID || ownerID == "" {
		return common.ErrorNotFound
	}
	s.ExpiryTime = expiry
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

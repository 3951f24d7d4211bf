package secrets

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/server/models"
)

// ErrUnsupported marks Repository operations a backend cannot provide.
// The redis backend serves anonymous secrets only; accounts and owner
// operations require the relational store.
var ErrUnsupported = errors.New("operation not supported by this store")

// RedisRepository keeps records as gob blobs under TTL keys, so expiry
// enforcement is largely delegated to Redis itself. Claim atomicity comes
// from an optimistic WATCH transaction retried on contention.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository connects and pings the Redis backend.
func NewRedisRepository(opts *redis.Options) (*RedisRepository, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisRepository{client: client}, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func recordKey(id string) string {
	return "secret:" + id
}

func encodeSecret(s *models.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSecret(data []byte) (*models.Secret, error) {
	var s models.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisRepository) Create(ctx context.Context, secret *models.Secret) (string, error) {
	if !secret.Anonymous() {
		return "", ErrUnsupported
	}

	secret.ID = uuid.NewString()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now()
	}

	ttl := time.Until(secret.ExpiryTime)
	if ttl <= 0 {
		return "", common.ErrorExpired
	}
	data, err := encodeSecret(secret)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, recordKey(secret.ID), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}
	return secret.ID, nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.Secret, error) {
	data, err := r.client.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeSecret(data)
}

// Claim runs the check-then-consume under WATCH: if another claimant
// modifies the key between the read and the transaction, the pipeline
// fails with TxFailedErr and the whole attempt is retried. At most one
// claimant ever observes view_count == 0.
func (r *RedisRepository) Claim(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	key := recordKey(id)
	var claimed *models.Secret

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrorNotFound
			}
			return err
		}
		s, err := decodeSecret(data)
		if err != nil {
			return err
		}
		if s.ViewCount > 0 {
			return common.ErrorAlreadyViewed
		}
		if s.Expired(now) {
			return common.ErrorExpired
		}

		s.ViewCount++
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// All redis-backed records are anonymous: first view destroys.
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		claimed = s
		return nil
	}

	for range 3 {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return claimed, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, common.ErrorExpired):
			_ = r.client.Del(ctx, key).Err()
			return nil, err
		default:
			return nil, err
		}
	}
	// Lost the optimistic race three times; someone else claimed it.
	return nil, common.ErrorAlreadyViewed
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, recordKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteExpired is a no-op: Redis reaps TTL keys on its own, and this
// backend never holds blob-offloaded records.
func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time, retentionTier models.Tier, retentionCutoff time.Time) (SweepResult, error) {
	return SweepResult{}, nil
}

func (r *RedisRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Secret, error) {
	return nil, ErrUnsupported
}

func (r *RedisRepository) CountActive(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	return 0, ErrUnsupported
}

func (r *RedisRepository) UpdateExpiry(ctx context.Context, id, ownerID string, expiry time.Time) error {
	return ErrUnsupported
}

var _ Repository = (*RedisRepository)(nil)

// Package services contains server-side business logic. This file implements
// SecretService, the lifecycle controller for shared secrets: creation,
// the access gate, the one-time disclosure, expiry handling and the sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/cryptox"
	"github.com/sealbox/sealbox/internal/filex"
	"github.com/sealbox/sealbox/internal/server/blob"
	"github.com/sealbox/sealbox/internal/server/models"
	"github.com/sealbox/sealbox/internal/server/repositories/secrets"
	"github.com/sealbox/sealbox/internal/server/repositories/users"
)

// Expiry bounds for new secrets.
const (
	DefaultExpiry = time.Hour
	MinExpiry     = time.Minute
	MaxExpiry     = 30 * 24 * time.Hour
)

// InlineCiphertextLimit is the largest sealed payload stored directly on
// the record; bigger file ciphertexts go to blob storage when configured.
const InlineCiphertextLimit = 256 << 10

// FreeRetentionAge bounds how long free-tier owned records are kept
// regardless of their expiry time. Retention policy, not a correctness
// requirement.
const FreeRetentionAge = 30 * 24 * time.Hour

// Limits are the per-tier ceilings enforced at creation time. They live
// server-side: the caller that performs the write can never bypass them.
type Limits struct {
	MaxTextSize      int64
	MaxFileSize      int64
	MaxActiveSecrets int64
}

var tierLimits = map[models.Tier]Limits{
	models.TierFree: {MaxTextSize: 64 << 10, MaxFileSize: 5 << 20, MaxActiveSecrets: 50},
	models.TierPro:  {MaxTextSize: 256 << 10, MaxFileSize: 100 << 20, MaxActiveSecrets: 1000},
}

// LimitsForTier returns the ceilings for a tier, defaulting to free.
func LimitsForTier(tier models.Tier) Limits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[models.TierFree]
}

// CreateParams describes one secret to create. OwnerID is empty for
// anonymous senders; Password is empty for link-carried-key secrets.
type CreateParams struct {
	Payload   []byte
	Kind      models.SecretKind
	FileName  string
	Password  string
	ExpiresIn time.Duration
	OwnerID   string
}

// CreateResult is returned to the sender. Key is the base64url cipher key
// for passwordless secrets, meant for the link fragment; it is empty in
// password mode, where the key is re-derivable only from the password.
type CreateResult struct {
	ID        string
	Key       string
	ExpiresAt time.Time
}

// Disclosed is the outcome of the one successful view.
type Disclosed struct {
	Kind      models.SecretKind
	Plaintext []byte
	FileName  string
}

// SecretService is the lifecycle controller. It is stateless: the owner and
// tier always arrive as explicit parameters, never ambient state.
type SecretService struct {
	secrets secrets.Repository
	users   users.Repository // nil in anonymous-only store modes
	blobs   blob.Store       // nil disables large-file offload

	// now is a seam for expiry tests.
	now func() time.Time
}

func NewSecretService(repo secrets.Repository, userRepo users.Repository, blobs blob.Store) *SecretService {
	return &SecretService{secrets: repo, users: userRepo, blobs: blobs, now: time.Now}
}

// ownerTier resolves the tier for ceilings; anonymous callers get free.
func (s *SecretService) ownerTier(ctx context.Context, ownerID string) (models.Tier, error) {
	if ownerID == "" || s.users == nil {
		return models.TierFree, nil
	}
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", err
	}
	return user.Tier, nil
}

// Create validates the payload, applies the key material policy, encrypts
// and persists a new record in the unread state.
func (s *SecretService) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	now := s.now()

	if len(p.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", common.ErrorValidation)
	}

	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = DefaultExpiry
	}
	if expiresIn < MinExpiry || expiresIn > MaxExpiry {
		return nil, fmt.Errorf("%w: expiry must be between %s and %s", common.ErrorValidation, MinExpiry, MaxExpiry)
	}

	tier, err := s.ownerTier(ctx, p.OwnerID)
	if err != nil {
		return nil, err
	}
	limits := LimitsForTier(tier)

	record := &models.Secret{
		Kind:       p.Kind,
		OwnerID:    p.OwnerID,
		ExpiryTime: now.Add(expiresIn),
	}

	switch p.Kind {
	case models.KindText:
		if int64(len(p.Payload)) > limits.MaxTextSize {
			return nil, fmt.Errorf("%w: text exceeds %d bytes", common.ErrorValidation, limits.MaxTextSize)
		}
	case models.KindFile:
		if err := filex.ValidateName(p.FileName); err != nil {
			return nil, err
		}
		if int64(len(p.Payload)) > limits.MaxFileSize {
			return nil, fmt.Errorf("%w: file exceeds %d bytes", common.ErrorValidation, limits.MaxFileSize)
		}
		record.FileName = p.FileName
		record.FileSize = int64(len(p.Payload))
	default:
		return nil, fmt.Errorf("%w: unknown secret kind %q", common.ErrorValidation, p.Kind)
	}

	if p.OwnerID != "" {
		active, err := s.secrets.CountActive(ctx, p.OwnerID, now)
		if err != nil {
			return nil, err
		}
		if active >= limits.MaxActiveSecrets {
			return nil, fmt.Errorf("%w: active secret limit %d reached", common.ErrorValidation, limits.MaxActiveSecrets)
		}
	}

	material, err := cryptox.NewMaterial(p.Password)
	if err != nil {
		return nil, err
	}
	record.KeyMaterial = material.Escrow
	record.PasswordGate = material.Gate

	ciphertext, err := cryptox.Encrypt(p.Payload, material.CipherKey)
	if err != nil {
		return nil, err
	}

	if p.Kind == models.KindFile && s.blobs != nil && int64(len(ciphertext)) > InlineCiphertextLimit {
		key := blob.NewStorageKey(now)
		if err := s.blobs.Put(ctx, key, []byte(ciphertext)); err != nil {
			return nil, fmt.Errorf("blob store: %w", err)
		}
		record.StorageKey = key
	} else {
		record.Ciphertext = ciphertext
	}

	id, err := s.secrets.Create(ctx, record)
	if err != nil {
		if record.StorageKey != "" {
			_ = s.blobs.Delete(ctx, record.StorageKey)
		}
		return nil, err
	}

	result := &CreateResult{ID: id, ExpiresAt: record.ExpiryTime}
	if !material.PasswordProtected() {
		result.Key = material.CipherKey
	}
	return result, nil
}

// Fetch returns the record if and only if it may still be disclosed. A
// viewed or expired record surfaces the matching terminal error; callers
// presenting to unauthenticated users collapse all of them to not-found.
func (s *SecretService) Fetch(ctx context.Context, id string) (*models.Secret, error) {
	record, err := s.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if record.ViewCount > 0 {
		return nil, common.ErrorAlreadyViewed
	}
	if record.Expired(now) {
		return nil, common.ErrorExpired
	}
	return record, nil
}

// Disclose performs the one-time view: gate check, blob fetch, atomic
// claim, decrypt.
//
// Order matters. The gate runs before the claim so a wrong password never
// consumes the view; the ciphertext of an offloaded secret is fetched
// before the claim so a blob store failure never consumes it either (blob
// content is immutable, so the early read races with nothing); the claim
// runs before decryption so two racing viewers can never both reach
// plaintext.
func (s *SecretService) Disclose(ctx context.Context, id, password string) (*Disclosed, error) {
	now := s.now()

	record, err := s.secrets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.ViewCount > 0 {
		return nil, common.ErrorAlreadyViewed
	}
	if record.Expired(now) {
		return nil, common.ErrorExpired
	}

	if record.PasswordProtected() {
		if !cryptox.VerifyGate(record.PasswordGate, password) {
			return nil, common.ErrorWrongPassword
		}
	}

	ciphertext := record.Ciphertext
	if record.StorageKey != "" {
		if s.blobs == nil {
			return nil, common.ErrorInternal
		}
		data, err := s.blobs.Get(ctx, record.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("blob store: %w", err)
		}
		ciphertext = string(data)
	}

	claimed, err := s.secrets.Claim(ctx, id, now)
	if err != nil {
		return nil, err
	}

	key := claimed.KeyMaterial
	if claimed.PasswordProtected() {
		key, err = cryptox.DeriveKey(password, claimed.KeyMaterial)
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := cryptox.Decrypt(ciphertext, key)
	if err != nil {
		return nil, err
	}

	if claimed.Anonymous() && claimed.StorageKey != "" {
		// Record row is already gone; the blob follows. Sweep catches
		// any leftover if this delete fails.
		_ = s.blobs.Delete(ctx, claimed.StorageKey)
	}

	return &Disclosed{Kind: claimed.Kind, Plaintext: plaintext, FileName: claimed.FileName}, nil
}

// ExpireSweep removes every record past its expiry plus free-tier records
// past the retention age, along with their offloaded blobs.
func (s *SecretService) ExpireSweep(ctx context.Context) (int64, error) {
	now := s.now()
	result, err := s.secrets.DeleteExpired(ctx, now, models.TierFree, now.Add(-FreeRetentionAge))
	if err != nil {
		return 0, err
	}
	if s.blobs != nil {
		for _, key := range result.StorageKeys {
			_ = s.blobs.Delete(ctx, key)
		}
	}
	return result.Deleted, nil
}

// ListOwned returns the owner's records, newest first.
func (s *SecretService) ListOwned(ctx context.Context, ownerID string) ([]*models.Secret, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.secrets.ListByOwner(ctx, ownerID)
}

// DeleteOwned removes one of the owner's records and its blob.
func (s *SecretService) DeleteOwned(ctx context.Context, id, ownerID string) error {
	if ownerID == "" {
		return common.ErrorUnauthorized
	}
	record, err := s.secrets.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	if err := s.secrets.Delete(ctx, id); err != nil {
		return err
	}
	if record.StorageKey != "" && s.blobs != nil {
		_ = s.blobs.Delete(ctx, record.StorageKey)
	}
	return nil
}

// requirePro gates the expiry-management operations to the pro tier.
func (s *SecretService) requirePro(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return common.ErrorUnauthorized
	}
	tier, err := s.ownerTier(ctx, ownerID)
	if err != nil {
		return err
	}
	if tier != models.TierPro {
		return common.ErrorTierRequired
	}
	return nil
}

// AccelerateExpiry sets the record's expiry to now. Rejected for records
// already past expiry; there is no point expiring what is already gone.
func (s *SecretService) AccelerateExpiry(ctx context.Context, id, ownerID string) error {
	if err := s.requirePro(ctx, ownerID); err != nil {
		return err
	}
	record, err := s.secrets.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	now := s.now()
	if record.Expired(now) {
		return common.ErrorExpired
	}
	return s.secrets.UpdateExpiry(ctx, id, ownerID, now)
}

// ExtendExpiry moves the record's expiry to a later point in the future.
// Expired records cannot be revived.
func (s *SecretService) ExtendExpiry(ctx context.Context, id, ownerID string, newTime time.Time) error {
	if err := s.requirePro(ctx, ownerID); err != nil {
		return err
	}
	now := s.now()
	if !newTime.After(now) {
		return fmt.Errorf("%w: new expiry must be in the future", common.ErrorValidation)
	}
	record, err := s.secrets.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	if record.Expired(now) {
		return common.ErrorExpired
	}
	return s.secrets.UpdateExpiry(ctx, id, ownerID, newTime)
}

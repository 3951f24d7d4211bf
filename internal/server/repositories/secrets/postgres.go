package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/dbx"
	"github.com/sealbox/sealbox/internal/server/models"
)

// PostgresRepository implements Repository over PostgreSQL. It holds the
// *sql.DB (not just a DBTX) because Claim opens its own transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const secretColumns = `id, kind, ciphertext, storage_key, file_name, file_size,
	key_material, password_gate, COALESCE(owner_id::text, ''), expiry_time, view_count, created_at`

func scanSecret(row interface{ Scan(dest ...any) error }) (*models.Secret, error) {
	var s models.Secret
	err := row.Scan(&s.ID, &s.Kind, &s.Ciphertext, &s.StorageKey, &s.FileName, &s.FileSize,
		&s.KeyMaterial, &s.PasswordGate, &s.OwnerID, &s.ExpiryTime, &s.ViewCount, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// nullableOwner maps the empty owner id to SQL NULL.
func nullableOwner(ownerID string) any {
	if ownerID == "" {
		return nil
	}
	return ownerID
}

// validID screens ids before they hit a uuid column; an unparseable id is
// simply an id that cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PostgresRepository) Create(ctx context.Context, secret *models.Secret) (string, error) {
	query := `
		INSERT INTO secrets (kind, ciphertext, storage_key, file_name, file_size,
			key_material, password_gate, owner_id, expiry_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		secret.Kind, secret.Ciphertext, secret.StorageKey, secret.FileName, secret.FileSize,
		secret.KeyMaterial, secret.PasswordGate, nullableOwner(secret.OwnerID), secret.ExpiryTime,
	).Scan(&secret.ID, &secret.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return secret.ID, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Secret, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE id = $1`
	s, err := scanSecret(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Claim performs the conditional view consumption in one transaction:
//
//	UPDATE ... SET view_count = view_count + 1
//	WHERE id = $1 AND view_count = 0 AND expiry_time > $2
//	RETURNING ...
//
// followed, only on success and only for anonymous records, by the delete.
// Two concurrent claims race on the row lock; the loser sees zero rows and
// is classified against the post-update state.
func (r *PostgresRepository) Claim(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}

	var claimed *models.Secret
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			UPDATE secrets
			SET view_count = view_count + 1
			WHERE id = $1 AND view_count = 0 AND expiry_time > $2
			RETURNING ` + secretColumns
		s, err := scanSecret(tx.QueryRowContext(ctx, query, id, now))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.classifyDead(ctx, tx, id, now)
			}
			return fmt.Errorf("db error: %w", err)
		}

		if s.Anonymous() {
			if _, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		claimed = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// classifyDead turns a failed conditional claim into the terminal error the
// UI can phrase: gone entirely, expired, or already viewed.
func (r *PostgresRepository) classifyDead(ctx context.Context, tx dbx.DBTX, id string, now time.Time) error {
	var viewCount int
	var expiry time.Time
	err := tx.QueryRowContext(ctx,
		`SELECT view_count, expiry_time FROM secrets WHERE id = $1`, id,
	).Scan(&viewCount, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	if viewCount > 0 {
		return common.ErrorAlreadyViewed
	}
	if !now.Before(expiry) {
		return common.ErrorExpired
	}
	return common.ErrorNotFound
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, retentionTier models.Tier, retentionCutoff time.Time) (SweepResult, error) {
	query := `
		DELETE FROM secrets s
		WHERE s.expiry_time <= $1
		   OR ($2::timestamptz <> 'epoch'::timestamptz
		       AND s.created_at < $2
		       AND s.owner_id IN (SELECT id FROM users WHERE tier = $3))
		RETURNING s.storage_key
	`
	cutoff := retentionCutoff
	if cutoff.IsZero() {
		cutoff = time.Unix(0, 0).UTC()
	}
	rows, err := r.db.QueryContext(ctx, query, now, cutoff, retentionTier)
	if err != nil {
		return SweepResult{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result SweepResult
	for rows.Next() {
		var storageKey string
		if err := rows.Scan(&storageKey); err != nil {
			return SweepResult{}, err
		}
		result.Deleted++
		if storageKey != "" {
			result.StorageKeys = append(result.StorageKeys, storageKey)
		}
	}
	if err := rows.Err(); err != nil {
		return SweepResult{}, err
	}
	return result, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM secrets WHERE owner_id = $1 AND view_count = 0 AND expiry_time > $2`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateExpiry(ctx context.Context, id, ownerID string, expiry time.Time) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE secrets SET expiry_time = $1 WHERE id = $2 AND owner_id = $3`, expiry, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

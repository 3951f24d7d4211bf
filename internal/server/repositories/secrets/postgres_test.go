package secrets

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/server/models"
)

const testID = "2da54d2c-7b40-4bb8-a610-a53b0d6fe0b3"

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func secretRows(s *models.Secret) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "ciphertext", "storage_key", "file_name", "file_size",
		"key_material", "password_gate", "owner_id", "expiry_time", "view_count", "created_at",
	}).AddRow(
		s.ID, s.Kind, s.Ciphertext, s.StorageKey, s.FileName, s.FileSize,
		s.KeyMaterial, s.PasswordGate, s.OwnerID, s.ExpiryTime, s.ViewCount, s.CreatedAt,
	)
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO secrets")).
		WithArgs(models.KindText, "ct", "", "", int64(0), "km", "", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(testID, now))

	s := &models.Secret{
		Kind:        models.KindText,
		Ciphertext:  "ct",
		KeyMaterial: "km",
		ExpiryTime:  now.Add(time.Hour),
	}
	id, err := repo.Create(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, testID, id)
	assert.Equal(t, testID, s.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT .+ FROM secrets WHERE id =").
		WithArgs(testID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), testID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_InvalidIDShortCircuits(t *testing.T) {
	repo, _ := newMockRepo(t)

	// No query must be issued for an id that cannot be a uuid.
	_, err := repo.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgresRepository_Claim_AnonymousDeletesInSameTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	claimed := &models.Secret{
		ID: testID, Kind: models.KindText, Ciphertext: "ct",
		KeyMaterial: "km", ExpiryTime: now.Add(time.Hour), ViewCount: 1, CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE secrets")).
		WithArgs(testID, sqlmock.AnyArg()).
		WillReturnRows(secretRows(claimed))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM secrets WHERE id =")).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Claim(context.Background(), testID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Claim_OwnedSkipsDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	claimed := &models.Secret{
		ID: testID, Kind: models.KindText, Ciphertext: "ct", OwnerID: "1d0b94f2-0df4-4a4f-9a27-7a6dc57ae1bf",
		KeyMaterial: "km", ExpiryTime: now.Add(time.Hour), ViewCount: 1, CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE secrets")).
		WithArgs(testID, sqlmock.AnyArg()).
		WillReturnRows(secretRows(claimed))
	mock.ExpectCommit()

	got, err := repo.Claim(context.Background(), testID, now)
	require.NoError(t, err)
	assert.False(t, got.Anonymous())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Claim_LoserClassification(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		viewCount int
		expiry    time.Time
		noRow     bool
		wantErr   error
	}{
		{name: "already viewed", viewCount: 1, expiry: now.Add(time.Hour), wantErr: common.ErrorAlreadyViewed},
		{name: "expired", viewCount: 0, expiry: now.Add(-time.Minute), wantErr: common.ErrorExpired},
		{name: "gone", noRow: true, wantErr: common.ErrorNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta("UPDATE secrets")).
				WithArgs(testID, sqlmock.AnyArg()).
				WillReturnError(sql.ErrNoRows)
			classify := mock.ExpectQuery(regexp.QuoteMeta("SELECT view_count, expiry_time FROM secrets")).
				WithArgs(testID)
			if tc.noRow {
				classify.WillReturnError(sql.ErrNoRows)
			} else {
				classify.WillReturnRows(sqlmock.NewRows([]string{"view_count", "expiry_time"}).
					AddRow(tc.viewCount, tc.expiry))
			}
			mock.ExpectRollback()

			_, err := repo.Claim(context.Background(), testID, now)
			assert.ErrorIs(t, err, tc.wantErr)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM secrets WHERE id =")).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), testID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteExpired_CollectsStorageKeys(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM secrets")).
		WithArgs(now, sqlmock.AnyArg(), models.TierFree).
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).
			AddRow("").
			AddRow("blobs/2026/a").
			AddRow("blobs/2026/b"))

	res, err := repo.DeleteExpired(context.Background(), now, models.TierFree, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Deleted)
	assert.Equal(t, []string{"blobs/2026/a", "blobs/2026/b"}, res.StorageKeys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CountActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM secrets")).
		WithArgs("owner-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountActive(context.Background(), "owner-1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateExpiry_NotOwned(t *testing.T) {
	repo, mock := newMockRepo(t)
	expiry := time.Now().Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE secrets SET expiry_time =")).
		WithArgs(expiry, testID, "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateExpiry(context.Background(), testID, "owner-1", expiry)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

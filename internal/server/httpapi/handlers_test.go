package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/dbx"
	"github.com/sealbox/sealbox/internal/logging"
	"github.com/sealbox/sealbox/internal/server/models"
	"github.com/sealbox/sealbox/internal/server/repositories/refreshtokens"
	"github.com/sealbox/sealbox/internal/server/repositories/secrets"
	"github.com/sealbox/sealbox/internal/server/repositories/users"
	"github.com/sealbox/sealbox/internal/server/services"
)

type memUserRepo struct {
	users map[string]*models.User
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	for _, u := range r.users {
		if u.UserName == user.UserName {
			return nil, common.ErrorLoginAlreadyExists
		}
	}
	user.ID = uuid.NewString()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) GetByLogin(ctx context.Context, userName string) (*models.User, error) {
	for _, u := range r.users {
		if u.UserName == userName {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type memRefreshRepo struct {
	tokens map[string]*models.RefreshToken
}

func (r *memRefreshRepo) Create(ctx context.Context, userID, token string, validity time.Duration) error {
	r.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r *memRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (r *memRefreshRepo) Delete(ctx context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}

type memRepoManager struct {
	users   *memUserRepo
	refresh *memRefreshRepo
}

func (m *memRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) users.Repository                  { return m.users }
func (m *memRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository  { return m.refresh }

type testAPI struct {
	server *httptest.Server
	repo   *secrets.MemoryRepository
	users  *memUserRepo
	mock   sqlmock.Sqlmock
}

func newTestAPI(t *testing.T, withUsers bool) *testAPI {
	t.Helper()

	a := &testAPI{repo: secrets.NewMemoryRepository()}

	var userRepo users.Repository
	var userService *services.UserService
	if withUsers {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		mock.MatchExpectationsInOrder(false)
		a.mock = mock

		a.users = &memUserRepo{users: make(map[string]*models.User)}
		repos := &memRepoManager{
			users:   a.users,
			refresh: &memRefreshRepo{tokens: make(map[string]*models.RefreshToken)},
		}
		userService = services.NewUserService(db, repos, []byte("test-secret"), 15*time.Minute, 24*time.Hour)
		userRepo = a.users
	}

	h := &Handler{
		Secrets: services.NewSecretService(a.repo, userRepo, nil),
		Users:   userService,
		BaseURL: "http://sealbox.test",
		Logger:  logging.NewDefault(),
	}
	a.server = httptest.NewServer(NewRouter(h))
	t.Cleanup(a.server.Close)
	return a
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestAnonymousTextFlow(t *testing.T) {
	a := newTestAPI(t, false)

	resp, body := a.do(t, http.MethodPost, "/api/secrets", "", map[string]any{
		"kind": "text",
		"data": "pg_dump password: swordfish",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	key := body["key"].(string)
	assert.NotEmpty(t, key)
	assert.Equal(t, "http://sealbox.test/view/"+id+"#"+key, body["url"])

	resp, body = a.do(t, http.MethodGet, "/api/secrets/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text", body["kind"])
	assert.Equal(t, false, body["password_required"])

	resp, body = a.do(t, http.MethodPost, "/api/secrets/"+id+"/disclose", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pg_dump password: swordfish", body["data"])

	// Gone after the single view; the body names the reason.
	resp, body = a.do(t, http.MethodPost, "/api/secrets/"+id+"/disclose", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "secret not found", body["error"])
}

func TestPasswordProtectedFlow(t *testing.T) {
	a := newTestAPI(t, false)

	resp, body := a.do(t, http.MethodPost, "/api/secrets", "", map[string]any{
		"kind":     "text",
		"data":     "gated",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	_, hasKey := body["key"]
	assert.False(t, hasKey, "password mode omits the key from the response")
	assert.Equal(t, "http://sealbox.test/view/"+id, body["url"], "no fragment without a key")

	resp, body = a.do(t, http.MethodGet, "/api/secrets/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["password_required"])

	resp, body = a.do(t, http.MethodPost, "/api/secrets/"+id+"/disclose", "", map[string]any{"password": "wrong"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "wrong password", body["error"])

	// The failed attempt did not consume the view.
	resp, body = a.do(t, http.MethodPost, "/api/secrets/"+id+"/disclose", "", map[string]any{"password": "hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gated", body["data"])
}

func TestFileRoundTrip(t *testing.T) {
	a := newTestAPI(t, false)

	resp, body := a.do(t, http.MethodPost, "/api/secrets", "", map[string]any{
		"kind":      "file",
		"data":      "aGVsbG8gd29ybGQ=", // "hello world"
		"file_name": "hello.txt",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, body = a.do(t, http.MethodPost, "/api/secrets/"+id+"/disclose", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "file", body["kind"])
	assert.Equal(t, "hello.txt", body["file_name"])
	assert.Equal(t, "aGVsbG8gd29ybGQ=", body["data"])
}

func TestCreateValidationErrors(t *testing.T) {
	a := newTestAPI(t, false)

	tests := []struct {
		name string
		req  map[string]any
	}{
		{"empty data", map[string]any{"kind": "text", "data": ""}},
		{"bad kind", map[string]any{"kind": "carrier-pigeon", "data": "x"}},
		{"bad base64", map[string]any{"kind": "file", "data": "!!!", "file_name": "a.txt"}},
		{"bad file name", map[string]any{"kind": "file", "data": "aGk=", "file_name": "../../etc/passwd"}},
		{"expiry too short", map[string]any{"kind": "text", "data": "x", "expires_in": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := a.do(t, http.MethodPost, "/api/secrets", "", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestMetaUnknownSecret(t *testing.T) {
	a := newTestAPI(t, false)

	resp, body := a.do(t, http.MethodGet, "/api/secrets/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "secret not found", body["error"])
}

func TestAccountRoutesAbsentInAnonymousMode(t *testing.T) {
	a := newTestAPI(t, false)

	resp, _ := a.do(t, http.MethodPost, "/api/register", "", map[string]any{"username": "alice", "password": "long enough pw"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/api/secrets", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestOwnedSecretFlow(t *testing.T) {
	a := newTestAPI(t, true)
	a.mock.ExpectBegin()
	a.mock.ExpectCommit()

	resp, body := a.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"username": "alice",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["access_token"].(string)
	require.NotEmpty(t, token)

	resp, body = a.do(t, http.MethodPost, "/api/secrets", token, map[string]any{
		"kind": "text",
		"data": "owned",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	// List requires auth.
	resp, _ = a.do(t, http.MethodGet, "/api/secrets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/api/secrets", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/api/secrets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	listResp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var items []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0]["id"])
	assert.Equal(t, false, items[0]["viewed"])

	// Expiry management needs the pro tier.
	resp, body = a.do(t, http.MethodPost, "/api/secrets/"+id+"/expire", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "pro tier required", body["error"])

	resp, _ = a.do(t, http.MethodDelete, "/api/secrets/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/api/secrets/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProExpiryManagement(t *testing.T) {
	a := newTestAPI(t, true)
	a.mock.ExpectBegin()
	a.mock.ExpectCommit()

	resp, body := a.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"username": "bob",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["access_token"].(string)

	for _, u := range a.users.users {
		u.Tier = models.TierPro
	}

	resp, body = a.do(t, http.MethodPost, "/api/secrets", token, map[string]any{"kind": "text", "data": "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = a.do(t, http.MethodPost, "/api/secrets/"+id+"/expiry", token, map[string]any{
		"new_time": time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/secrets/"+id+"/expire", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, "/api/secrets/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "secret expired", body["error"])
}

func TestRefreshEndpoint(t *testing.T) {
	a := newTestAPI(t, true)
	a.mock.ExpectBegin()
	a.mock.ExpectCommit()
	a.mock.ExpectBegin()
	a.mock.ExpectCommit()
	a.mock.ExpectBegin()
	a.mock.ExpectRollback()

	resp, body := a.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"username": "alice",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refresh := body["refresh_token"].(string)

	resp, body = a.do(t, http.MethodPost, "/api/refresh", "", map[string]any{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEqual(t, refresh, body["refresh_token"])

	resp, _ = a.do(t, http.MethodPost, "/api/refresh", "", map[string]any{"refresh_token": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestViewLinkServesStatus(t *testing.T) {
	a := newTestAPI(t, false)

	resp, body := a.do(t, http.MethodPost, "/api/secrets", "", map[string]any{
		"kind": "text",
		"data": "linked",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, body = a.do(t, http.MethodGet, "/view/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "text", body["kind"])
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, false)

	resp, body := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

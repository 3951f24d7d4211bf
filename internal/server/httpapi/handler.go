// Package httpapi exposes the secret sharing service over HTTP.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/logging"
	"github.com/sealbox/sealbox/internal/server/models"
	"github.com/sealbox/sealbox/internal/server/services"
)

// Handler carries the services behind the HTTP surface. Users is nil when
// the store backend has no account support; account routes are then not
// registered at all.
type Handler struct {
	Secrets *services.SecretService
	Users   *services.UserService
	BaseURL string
	Logger  logging.Logger
}

type credentialsRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type createSecretRequest struct {
	// Kind is "text" or "file". Data is the plaintext for text secrets and
	// standard base64 for file secrets.
	Kind       string `json:"kind"`
	Data       string `json:"data"`
	FileName   string `json:"file_name,omitempty"`
	Password   string `json:"password,omitempty"`
	ExpiresSec int64  `json:"expires_in,omitempty"`
}

type createSecretResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key,omitempty"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type secretMetaResponse struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	PasswordRequired bool      `json:"password_required"`
	FileName         string    `json:"file_name,omitempty"`
	FileSize         int64     `json:"file_size,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type discloseRequest struct {
	Password string `json:"password,omitempty"`
}

type discloseResponse struct {
	Kind     string `json:"kind"`
	Data     string `json:"data"`
	FileName string `json:"file_name,omitempty"`
}

type listItemResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	FileName  string    `json:"file_name,omitempty"`
	Viewed    bool      `json:"viewed"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type extendExpiryRequest struct {
	NewTime time.Time `json:"new_time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := h.Users.Register(r.Context(), req.UserName, req.Password)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := h.Users.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := h.Users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req createSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := services.CreateParams{
		Kind:      models.SecretKind(req.Kind),
		FileName:  req.FileName,
		Password:  req.Password,
		ExpiresIn: time.Duration(req.ExpiresSec) * time.Second,
		OwnerID:   UserIDFromContext(r.Context()),
	}
	switch models.SecretKind(req.Kind) {
	case models.KindFile:
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			h.error(w, http.StatusBadRequest, "file data must be base64")
			return
		}
		params.Payload = data
	default:
		params.Payload = []byte(req.Data)
	}

	created, err := h.Secrets.Create(r.Context(), params)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	url := h.BaseURL + "/view/" + created.ID
	if created.Key != "" {
		url += "#" + created.Key
	}
	h.json(w, http.StatusCreated, createSecretResponse{
		ID:        created.ID,
		Key:       created.Key,
		URL:       url,
		ExpiresAt: created.ExpiresAt,
	})
}

// SecretMeta returns pre-disclosure metadata so a viewer page can prompt
// for a password before spending the single view. Never the ciphertext.
func (h *Handler) SecretMeta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := h.Secrets.Fetch(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, secretMetaResponse{
		ID:               record.ID,
		Kind:             string(record.Kind),
		PasswordRequired: record.PasswordProtected(),
		FileName:         record.FileName,
		FileSize:         record.FileSize,
		ExpiresAt:        record.ExpiryTime,
	})
}

func (h *Handler) DiscloseSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req discloseRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	disclosed, err := h.Secrets.Disclose(r.Context(), id, req.Password)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := discloseResponse{Kind: string(disclosed.Kind), FileName: disclosed.FileName}
	if disclosed.Kind == models.KindFile {
		resp.Data = base64.StdEncoding.EncodeToString(disclosed.Plaintext)
	} else {
		resp.Data = string(disclosed.Plaintext)
	}
	h.json(w, http.StatusOK, resp)
}

func (h *Handler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	records, err := h.Secrets.ListOwned(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	items := make([]listItemResponse, 0, len(records))
	for _, s := range records {
		items = append(items, listItemResponse{
			ID:        s.ID,
			Kind:      string(s.Kind),
			FileName:  s.FileName,
			Viewed:    s.ViewCount > 0,
			ExpiresAt: s.ExpiryTime,
			CreatedAt: s.CreatedAt,
		})
	}
	h.json(w, http.StatusOK, items)
}

func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Secrets.DeleteOwned(r.Context(), id, UserIDFromContext(r.Context())); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AccelerateExpiry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Secrets.AccelerateExpiry(r.Context(), id, UserIDFromContext(r.Context())); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExtendExpiry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req extendExpiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Secrets.ExtendExpiry(r.Context(), id, UserIDFromContext(r.Context()), req.NewTime); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, errorResponse{Error: message})
}

// serviceError maps service errors to HTTP statuses. Viewed and expired
// both surface as 404: a dead secret must be indistinguishable from one
// that never existed, except that the body names the reason for the owner
// of the link.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorAlreadyViewed):
		h.error(w, http.StatusNotFound, "secret already viewed")
	case errors.Is(err, common.ErrorExpired):
		h.error(w, http.StatusNotFound, "secret expired")
	case errors.Is(err, common.ErrorNotFound):
		h.error(w, http.StatusNotFound, "secret not found")
	case errors.Is(err, common.ErrorWrongPassword):
		h.error(w, http.StatusForbidden, "wrong password")
	case errors.Is(err, common.ErrorTierRequired):
		h.error(w, http.StatusForbidden, "pro tier required")
	case errors.Is(err, common.ErrorValidation):
		h.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorLoginAlreadyExists):
		h.error(w, http.StatusConflict, "username already taken")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		h.error(w, http.StatusUnauthorized, "unauthorized")
	default:
		if h.Logger != nil {
			h.Logger.Error(r.Context(), "request failed", "error", err)
		}
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}

// Package api is the HTTP client for the Sealbox server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sealbox/sealbox/internal/common"
)

// Client talks to one Sealbox server. The zero access token means
// anonymous; Authenticate fills it after login or registration.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetAccessToken attaches a bearer token to subsequent requests.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type CreateRequest struct {
	Kind       string `json:"kind"`
	Data       string `json:"data"`
	FileName   string `json:"file_name,omitempty"`
	Password   string `json:"password,omitempty"`
	ExpiresSec int64  `json:"expires_in,omitempty"`
}

type CreateResult struct {
	ID        string    `json:"id"`
	Key       string    `json:"key,omitempty"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SecretMeta struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	PasswordRequired bool      `json:"password_required"`
	FileName         string    `json:"file_name,omitempty"`
	FileSize         int64     `json:"file_size,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type DiscloseResult struct {
	Kind     string `json:"kind"`
	Data     string `json:"data"`
	FileName string `json:"file_name,omitempty"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type credentials struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) CreateSecret(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	var result CreateResult
	if err := c.do(ctx, http.MethodPost, "/api/secrets", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetSecretMeta(ctx context.Context, id string) (*SecretMeta, error) {
	var meta SecretMeta
	if err := c.do(ctx, http.MethodGet, "/api/secrets/"+id, nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) Disclose(ctx context.Context, id, password string) (*DiscloseResult, error) {
	body := map[string]string{}
	if password != "" {
		body["password"] = password
	}
	var result DiscloseResult
	if err := c.do(ctx, http.MethodPost, "/api/secrets/"+id+"/disclose", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Register(ctx context.Context, userName, password string) (*TokenPair, error) {
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/api/register", credentials{userName, password}, &pair); err != nil {
		return nil, err
	}
	c.accessToken = pair.AccessToken
	return &pair, nil
}

func (c *Client) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/api/login", credentials{userName, password}, &pair); err != nil {
		return nil, err
	}
	c.accessToken = pair.AccessToken
	return &pair, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode, Message: "unknown error"}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

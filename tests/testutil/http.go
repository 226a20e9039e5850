package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-for-testing-only"

// TestJWTService signs with the same secret as GenerateTestToken.
func TestJWTService() *services.JWTService {
	return services.NewJWTService(testJWTSecret, 15*time.Minute, 24*time.Hour)
}

func GenerateTestToken(t *testing.T, userID uuid.UUID, email string, role models.UserRole) string {
	t.Helper()
	pair, err := TestJWTService().GenerateTokenPair(userID, email, role)
	require.NoError(t, err)
	return pair.AccessToken
}

// APIClient drives an http.Handler in-process. As returns a copy that sends
// a bearer token with every call.
type APIClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func NewAPIClient(t *testing.T, handler http.Handler) *APIClient {
	return &APIClient{t: t, handler: handler}
}

func (c *APIClient) As(accessToken string) *APIClient {
	clone := *c
	clone.token = accessToken
	return &clone
}

func (c *APIClient) Get(path string) *APIResponse {
	return c.Call(http.MethodGet, path, nil)
}

func (c *APIClient) Post(path string, body any) *APIResponse {
	return c.Call(http.MethodPost, path, body)
}

func (c *APIClient) Delete(path string) *APIResponse {
	return c.Call(http.MethodDelete, path, nil)
}

func (c *APIClient) Call(method, path string, body any) *APIResponse {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err, "marshal request body")
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return &APIResponse{t: c.t, rec: rec}
}

type APIResponse struct {
	t   *testing.T
	rec *httptest.ResponseRecorder
}

// Expect fails the test immediately on an unexpected status so later decodes
// do not produce confusing errors.
func (r *APIResponse) Expect(status int) *APIResponse {
	r.t.Helper()
	require.Equal(r.t, status, r.rec.Code, "body: %s", r.rec.Body.String())
	return r
}

func (r *APIResponse) Decode(v any) {
	r.t.Helper()
	require.NoError(r.t, json.Unmarshal(r.rec.Body.Bytes(), v), "decode %s", r.rec.Body.String())
}

// ErrorMessage returns the "error" field of a JSON error body.
func (r *APIResponse) ErrorMessage() string {
	r.t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	r.Decode(&body)
	return body.Error
}

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3stream/internal/response"
)

func serve(t *testing.T, apiKey string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Plain(w, http.StatusOK, "streamed")
	})

	req := httptest.NewRequest(http.MethodPut, "/v1/streams/default/clip", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	APIKeyMiddleware(&Config{APIKey: apiKey})(next).ServeHTTP(rr, req)
	return rr
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		headers map[string]string
		allowed bool
	}{
		{name: "no key configured", apiKey: "", allowed: true},
		{name: "bearer token", apiKey: "k3y", headers: map[string]string{"Authorization": "Bearer k3y"}, allowed: true},
		{name: "x-api-key header", apiKey: "k3y", headers: map[string]string{"X-API-Key": "k3y"}, allowed: true},
		{name: "wrong bearer falls back to x-api-key", apiKey: "k3y", headers: map[string]string{"Authorization": "Bearer nope", "X-API-Key": "k3y"}, allowed: true},
		{name: "missing headers", apiKey: "k3y"},
		{name: "key prefix", apiKey: "k3y", headers: map[string]string{"Authorization": "Bearer k3"}},
		{name: "key with suffix", apiKey: "k3y", headers: map[string]string{"X-API-Key": "k3y!"}},
		{name: "empty bearer", apiKey: "k3y", headers: map[string]string{"Authorization": "Bearer "}},
		{name: "basic scheme", apiKey: "k3y", headers: map[string]string{"Authorization": "Basic k3y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, tt.apiKey, tt.headers)
			if tt.allowed {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, "streamed", rr.Body.String())
				return
			}
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAPIKeyMiddleware_ErrorBody(t *testing.T) {
	rr := serve(t, "k3y", nil)

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var errorResp response.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errorResp))
	assert.Equal(t, response.ErrorResponse{
		Code:    response.ErrUnauthorized,
		Message: "Invalid or missing API key",
		Hint:    "Provide API key via Authorization: Bearer <key> or X-API-Key: <key>",
	}, errorResp)
}

func TestConfig_matches(t *testing.T) {
	c := &Config{APIKey: "secret"}
	assert.True(t, c.matches("secret"))
	assert.False(t, c.matches(""))
	assert.False(t, c.matches("secre"))
	assert.False(t, c.matches("Secret"))
}

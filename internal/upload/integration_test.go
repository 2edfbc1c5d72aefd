package upload

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3stream/internal/auth"
	"s3stream/internal/config"
	"s3stream/internal/response"
)

// Integration tests that run the full stream flow behind authentication
func newIntegrationServer(storage *MockStorage) http.Handler {
	cfg := &config.Config{S3Bucket: "test-bucket", APIKey: "test-api-key"}
	streamConfig := &config.StreamConfig{
		Profiles: map[string]config.Profile{
			"avatar": {
				PathTemplate:   "raw/{shard?}/{key_base}.{ext}",
				AllowedMimes:   []string{"image/png", "image/jpeg"},
				SizeMaxBytes:   64,
				EnableSharding: true,
			},
			"default": *config.DefaultProfile(),
		},
	}

	mux := http.NewServeMux()
	handler := NewHandler(NewService(storage, cfg, nil), streamConfig, nil)
	handler.Register(mux, auth.APIKeyMiddleware(&auth.Config{APIKey: cfg.APIKey}))
	return mux
}

func TestUploadIntegration_WithAuth(t *testing.T) {
	storage := &MockStorage{}
	server := newIntegrationServer(storage)

	// Without a key nothing reaches storage
	req := httptest.NewRequest(http.MethodPut, "/v1/streams/avatar/user-1", bytes.NewReader(pngHeader))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, storage.created)

	req = httptest.NewRequest(http.MethodPut, "/v1/streams/avatar/user-1", bytes.NewReader(pngHeader))
	req.Header.Set("X-API-Key", "test-api-key")
	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp StreamResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "raw/"+GenerateShard("user-1")+"/user-1.png", resp.ObjectKey)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, int64(len(pngHeader)), resp.Size)
	assert.Equal(t, []string{resp.ObjectKey}, storage.completed)
	assert.Equal(t, pngHeader, storage.body.Bytes())
}

func TestUploadIntegration_SizeCapAbortsUnknownLength(t *testing.T) {
	storage := &MockStorage{}
	server := newIntegrationServer(storage)

	body := append(bytes.Clone(pngHeader), bytes.Repeat([]byte{0}, 100)...)
	req := httptest.NewRequest(http.MethodPut, "/v1/streams/avatar/user-2", bytes.NewReader(body))
	req.ContentLength = -1 // chunked, so only the stream itself can hit the cap
	req.Header.Set("Authorization", "Bearer test-api-key")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	var errorResp response.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errorResp))
	assert.Equal(t, response.ErrSizeTooLarge, errorResp.Code)

	require.Len(t, storage.created, 1)
	require.Len(t, storage.aborted, 1)
	assert.True(t, strings.HasSuffix(storage.aborted[0], "#test-upload-id"))
	assert.Empty(t, storage.completed)
}

func TestUploadIntegration_MimeRejected(t *testing.T) {
	storage := &MockStorage{}
	server := newIntegrationServer(storage)

	req := httptest.NewRequest(http.MethodPut, "/v1/streams/avatar/user-3", strings.NewReader("plain text, not an image"))
	req.Header.Set("X-API-Key", "test-api-key")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Empty(t, storage.created)
}

func TestUploadIntegration_UnknownProfileUsesDefault(t *testing.T) {
	storage := &MockStorage{}
	server := newIntegrationServer(storage)

	req := httptest.NewRequest(http.MethodPut, "/v1/streams/logs/2026/10/18/app.log", strings.NewReader("line 1\nline 2\n"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-API-Key", "test-api-key")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp StreamResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "streams/2026/10/18/app.log", resp.ObjectKey)
	assert.Equal(t, "text/plain", resp.ContentType)
}

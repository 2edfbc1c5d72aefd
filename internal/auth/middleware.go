package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"s3stream/internal/response"
)

type Config struct {
	APIKey string
}

// APIKeyMiddleware validates API key authentication
func APIKeyMiddleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no API key configured (for development)
			if config.APIKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && config.matches(token) {
				next.ServeHTTP(w, r)
				return
			}

			if config.matches(r.Header.Get("X-API-Key")) {
				next.ServeHTTP(w, r)
				return
			}

			writeUnauthorized(w)
		})
	}
}

func (c *Config) matches(key string) bool {
	return key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(c.APIKey)) == 1
}

func writeUnauthorized(w http.ResponseWriter) {
	response.WriteError(w, http.StatusUnauthorized,
		response.ErrUnauthorized,
		"Invalid or missing API key",
		"Provide API key via Authorization: Bearer <key> or X-API-Key: <key>",
	)
}

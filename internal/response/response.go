package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Standard error codes
const (
	ErrUnauthorized   = "unauthorized"
	ErrBadRequest     = "bad_request"
	ErrNotFound       = "not_found"
	ErrMimeNotAllowed = "mime_not_allowed"
	ErrSizeTooLarge   = "size_too_large"
	ErrStorageDenied  = "storage_denied"
	ErrStorageFailure = "storage_failure"
	ErrUploadOrphaned = "upload_orphaned"
	ErrInternal       = "internal_error"
)

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, status int, code, message, hint string) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Hint:    hint,
	})
}

// Plain writes a text/plain body, used by the health check.
func Plain(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

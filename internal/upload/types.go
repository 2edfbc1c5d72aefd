package upload

import (
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrMimeNotAllowed = errors.New("mime type not allowed")
	ErrSizeTooLarge   = errors.New("stream exceeds maximum size")
)

// StreamRequest is one body to be streamed into storage under a profile.
type StreamRequest struct {
	Profile     string
	KeyBase     string
	ContentType string // empty or generic types are sniffed from the body
	Shard       string
	Body        io.Reader
}

// StreamResponse describes the stored object
type StreamResponse struct {
	ObjectKey   string `json:"object_key"`
	UploadID    string `json:"upload_id"`
	ETag        string `json:"etag"`
	VersionID   string `json:"version_id,omitempty"`
	Size        int64  `json:"size"`
	Parts       int    `json:"parts"`
	ContentType string `json:"content_type"`
	ContentMD5  string `json:"content_md5"`
}

// UploadSummary is an in-progress multipart upload found in the bucket
type UploadSummary struct {
	ObjectKey string    `json:"object_key"`
	UploadID  string    `json:"upload_id"`
	Initiated time.Time `json:"initiated"`
}

type ListUploadsResponse struct {
	Uploads []UploadSummary `json:"uploads"`
}

package upload

import (
	"context"

	"s3stream/internal/config"
	"s3stream/internal/multipart"
	"s3stream/internal/s3"
)

// Storage is the S3 client as the upload service sees it, injectable for tests.
type Storage interface {
	multipart.Client
	ListMultipartUploads(ctx context.Context, bucket, prefix string) ([]s3.UploadInfo, error)
}

var _ Storage = (*s3.Client)(nil)

// UploadService is what the HTTP handlers call.
type UploadService interface {
	Stream(ctx context.Context, req *StreamRequest, profile *config.Profile) (*StreamResponse, error)
	ListUploads(ctx context.Context, prefix string) ([]UploadSummary, error)
	AbortUpload(ctx context.Context, objectKey, uploadID string) error
}

var _ UploadService = (*Service)(nil)

package upload

import (
	"bufio"
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	utils "s3stream/internal"
	"s3stream/internal/config"
	"s3stream/internal/multipart"
)

// Bytes peeked from the body when the content type has to be sniffed.
const sniffLen = 3072

type Service struct {
	storage Storage
	config  *config.Config
	logger  *slog.Logger
}

func NewService(storage Storage, config *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// Stream uploads req.Body to the key built from the profile's path template.
// The body is never held in memory beyond one part per upload slot.
func (s *Service) Stream(ctx context.Context, req *StreamRequest, profile *config.Profile) (*StreamResponse, error) {
	keyBase := utils.CleanKey(req.KeyBase)
	if keyBase == "" {
		return nil, fmt.Errorf("%w: key_base is empty", ErrInvalidKey)
	}

	body := bufio.NewReaderSize(req.Body, sniffLen)
	contentType, ext := s.resolveContentType(req.ContentType, body)

	if len(profile.AllowedMimes) > 0 && !mimetype.EqualsAny(contentType, profile.AllowedMimes...) {
		return nil, fmt.Errorf("%w: %s", ErrMimeNotAllowed, contentType)
	}

	// Generate shard if not provided and sharding is enabled
	shard := req.Shard
	if shard == "" && profile.EnableSharding {
		shard = GenerateShard(keyBase)
	}

	objectKey := s.buildObjectKey(profile.PathTemplate, keyBase, ext, shard)

	var src io.Reader = body
	if profile.SizeMaxBytes > 0 {
		src = &capReader{r: body, max: profile.SizeMaxBytes}
	}

	obj, err := multipart.Upload(ctx, s.storage, s.config.S3Bucket, objectKey, src, s.sessionOptions(req, profile, contentType)...)
	if err != nil {
		return nil, err
	}

	return &StreamResponse{
		ObjectKey:   objectKey,
		UploadID:    obj.UploadID,
		ETag:        obj.ETag,
		VersionID:   obj.VersionID,
		Size:        obj.Size,
		Parts:       obj.Parts,
		ContentType: contentType,
		ContentMD5:  obj.ContentMD5,
	}, nil
}

// ListUploads returns the in-progress multipart uploads under prefix.
func (s *Service) ListUploads(ctx context.Context, prefix string) ([]UploadSummary, error) {
	uploads, err := s.storage.ListMultipartUploads(ctx, s.config.S3Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list multipart uploads: %w", err)
	}

	summaries := make([]UploadSummary, 0, len(uploads))
	for _, u := range uploads {
		summaries = append(summaries, UploadSummary{
			ObjectKey: u.Key,
			UploadID:  u.UploadID,
			Initiated: u.Initiated,
		})
	}
	return summaries, nil
}

// AbortUpload aborts an upload left behind by a failed cleanup.
func (s *Service) AbortUpload(ctx context.Context, objectKey, uploadID string) error {
	if err := s.storage.AbortMultipartUpload(ctx, s.config.S3Bucket, objectKey, uploadID); err != nil {
		return fmt.Errorf("failed to abort multipart upload: %w", err)
	}
	s.logger.Info("orphaned multipart upload aborted", "key", objectKey, "upload_id", uploadID)
	return nil
}

// Helper methods

func (s *Service) sessionOptions(req *StreamRequest, profile *config.Profile, contentType string) []multipart.Option {
	opts := []multipart.Option{
		multipart.WithContentType(contentType),
		multipart.WithConcurrency(profile.Concurrency),
		multipart.WithStorageClass(profile.StorageClass),
		multipart.WithLogger(s.logger),
	}
	if req.Profile != "" {
		opts = append(opts, multipart.WithMetadata(map[string]string{"profile": req.Profile}))
	}
	if size := profile.PartSizeBytes(); size > 0 {
		opts = append(opts, multipart.WithPartSize(size))
	}
	if size := profile.MaxPartSizeBytes(); size > 0 {
		opts = append(opts, multipart.WithMaxPartSize(size))
	}
	return opts
}

// resolveContentType trusts a specific declared type and sniffs the body
// otherwise. It also returns the extension used for the {ext} placeholder.
func (s *Service) resolveContentType(declared string, body *bufio.Reader) (string, string) {
	declared = strings.TrimSpace(declared)
	base, _, _ := strings.Cut(declared, ";")
	base = strings.TrimSpace(base)

	if base != "" && base != "application/octet-stream" {
		ext := "bin"
		if m := mimetype.Lookup(base); m != nil && m.Extension() != "" {
			ext = strings.TrimPrefix(m.Extension(), ".")
		}
		return declared, ext
	}

	// A short body makes Peek return io.EOF with everything it has.
	head, _ := body.Peek(sniffLen)
	detected := mimetype.Detect(head)
	ext := strings.TrimPrefix(detected.Extension(), ".")
	if ext == "" {
		ext = "bin"
	}
	return detected.String(), ext
}

func (s *Service) buildObjectKey(template, keyBase, ext, shard string) string {
	objectKey := template

	// Replace placeholders in template
	objectKey = strings.ReplaceAll(objectKey, "{key_base}", keyBase)
	objectKey = strings.ReplaceAll(objectKey, "{ext}", ext)

	// Handle optional shard
	if shard != "" {
		objectKey = strings.ReplaceAll(objectKey, "{shard?}", shard)
		objectKey = strings.ReplaceAll(objectKey, "{shard}", shard)
	} else {
		// Remove shard placeholders if no shard
		objectKey = strings.ReplaceAll(objectKey, "/{shard?}", "")
		objectKey = strings.ReplaceAll(objectKey, "{shard?}/", "")
		objectKey = strings.ReplaceAll(objectKey, "{shard?}", "")
	}

	return objectKey
}

// GenerateShard creates a shard from key_base using SHA1 hash
func GenerateShard(keyBase string) string {
	hash := sha1.Sum([]byte(keyBase))
	return fmt.Sprintf("%02x", hash[:1]) // First 2 hex characters
}

// capReader fails with ErrSizeTooLarge once more than max bytes were read.
type capReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrSizeTooLarge, c.max)
	}
	return n, err
}

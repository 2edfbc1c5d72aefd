package multipart

import (
	"context"
	"time"

	"s3stream/internal/metrics"
	"s3stream/internal/s3"
)

// Client is the storage service as seen by a session. *s3.Client implements it.
type Client interface {
	CreateMultipartUpload(ctx context.Context, bucket, key string, opts s3.CreateOptions) (string, error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, part s3.PartInput) (string, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []s3.PartInfo) (*s3.CompleteOutput, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

var _ Client = (*s3.Client)(nil)

// Part is one numbered slice of the stream. ETag is empty until the upload
// of the part has succeeded.
type Part struct {
	Number   int32
	Body     []byte
	Checksum Digest
	ETag     string
}

// Uploader sends parts of a single multipart upload.
type Uploader struct {
	client   Client
	bucket   string
	key      string
	uploadID string
}

func NewUploader(client Client, bucket, key, uploadID string) *Uploader {
	return &Uploader{client: client, bucket: bucket, key: key, uploadID: uploadID}
}

// Upload performs exactly one UploadPart call. On success the part's ETag is
// set and returned. Errors are the client's TransportError or ServiceError,
// unchanged; retries belong to the client.
func (u *Uploader) Upload(ctx context.Context, part *Part) (string, error) {
	metrics.PartsInFlight.Inc()
	defer metrics.PartsInFlight.Dec()

	start := time.Now()
	etag, err := u.client.UploadPart(ctx, u.bucket, u.key, u.uploadID, s3.PartInput{
		Number:     part.Number,
		Body:       part.Body,
		ContentMD5: part.Checksum.Base64(),
	})
	metrics.PartUploadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PartsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.PartsTotal.WithLabelValues("success").Inc()
	metrics.PartSize.Observe(float64(len(part.Body)))
	metrics.BytesUploadedTotal.Add(float64(len(part.Body)))

	part.ETag = etag
	return etag, nil
}

package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Client struct {
	api API
}

// NewClient builds a client from static credentials when both keys are set,
// and from the default AWS credential chain otherwise. A non-empty endpoint
// switches to path-style addressing for MinIO and LocalStack.
func NewClient(ctx context.Context, region, accessKey, secretKey, endpoint string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return NewFromAPI(s3Client), nil
}

// NewFromAPI wraps an existing SDK client, or a fake of one.
func NewFromAPI(api API) *Client {
	return &Client{api: api}
}

// CreateMultipartUpload creates a multipart upload and returns the upload ID
func (c *Client) CreateMultipartUpload(ctx context.Context, bucket, key string, opts CreateOptions) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if opts.StorageClass != "" {
		input.StorageClass = s3Types.StorageClass(opts.StorageClass)
	}

	result, err := c.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", classify("CreateMultipartUpload", bucket, key, err)
	}
	if aws.ToString(result.UploadId) == "" {
		return "", &ServiceError{
			Op:      "CreateMultipartUpload",
			Bucket:  bucket,
			Key:     key,
			Code:    "MissingUploadId",
			Message: "service returned no upload id",
		}
	}

	return aws.ToString(result.UploadId), nil
}

// UploadPart uploads one part and returns the ETag the service assigned to it.
func (c *Client) UploadPart(ctx context.Context, bucket, key, uploadID string, part PartInput) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(part.Number),
		Body:          bytes.NewReader(part.Body),
		ContentLength: aws.Int64(int64(len(part.Body))),
	}
	if part.ContentMD5 != "" {
		input.ContentMD5 = aws.String(part.ContentMD5)
	}

	result, err := c.api.UploadPart(ctx, input)
	if err != nil {
		return "", classify("UploadPart", bucket, key, err)
	}
	if aws.ToString(result.ETag) == "" {
		return "", &ServiceError{
			Op:      "UploadPart",
			Bucket:  bucket,
			Key:     key,
			Code:    CodeMissingETag,
			Message: fmt.Sprintf("service returned no ETag for part %d", part.Number),
		}
	}

	return aws.ToString(result.ETag), nil
}

// CompleteMultipartUpload completes a multipart upload
func (c *Client) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []PartInfo) (*CompleteOutput, error) {
	completedParts := make([]s3Types.CompletedPart, len(parts))
	for i, part := range parts {
		completedParts[i] = s3Types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.PartNumber),
		}
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3Types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	}

	result, err := c.api.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return nil, classify("CompleteMultipartUpload", bucket, key, err)
	}

	return &CompleteOutput{
		ETag:      aws.ToString(result.ETag),
		VersionID: aws.ToString(result.VersionId),
		Location:  aws.ToString(result.Location),
	}, nil
}

// AbortMultipartUpload aborts a multipart upload
func (c *Client) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}

	_, err := c.api.AbortMultipartUpload(ctx, input)
	return classify("AbortMultipartUpload", bucket, key, err)
}

// ListMultipartUploads returns every in-progress upload under prefix,
// following pagination markers until the listing is exhausted.
func (c *Client) ListMultipartUploads(ctx context.Context, bucket, prefix string) ([]UploadInfo, error) {
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var uploads []UploadInfo
	for {
		result, err := c.api.ListMultipartUploads(ctx, input)
		if err != nil {
			return nil, classify("ListMultipartUploads", bucket, prefix, err)
		}

		for _, u := range result.Uploads {
			uploads = append(uploads, UploadInfo{
				Key:       aws.ToString(u.Key),
				UploadID:  aws.ToString(u.UploadId),
				Initiated: aws.ToTime(u.Initiated),
			})
		}

		if !aws.ToBool(result.IsTruncated) {
			return uploads, nil
		}
		input.KeyMarker = result.NextKeyMarker
		input.UploadIdMarker = result.NextUploadIdMarker
	}
}

// PartInfo represents a completed part for multipart upload
type PartInfo struct {
	ETag       string
	PartNumber int32
}

// PartInput is the body of one UploadPart call.
type PartInput struct {
	Number     int32
	Body       []byte
	ContentMD5 string
}

// CreateOptions carries object attributes fixed at initiation time.
type CreateOptions struct {
	ContentType  string
	Metadata     map[string]string
	StorageClass string
}

// CompleteOutput describes the object produced by CompleteMultipartUpload.
type CompleteOutput struct {
	ETag      string
	VersionID string
	Location  string
}

// UploadInfo is one in-progress multipart upload.
type UploadInfo struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

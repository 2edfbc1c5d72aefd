package s3

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// TransportError is a failure to talk to the storage service at all:
// dial and TLS errors, timeouts, broken connections and cancelled contexts.
type TransportError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("s3.%s %s/%s: transport: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError is an application-level rejection returned by the storage
// service, such as NoSuchUpload, AccessDenied or InvalidDigest.
type ServiceError struct {
	Op         string
	Bucket     string
	Key        string
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("s3.%s %s/%s: %s (%d): %s", e.Op, e.Bucket, e.Key, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("s3.%s %s/%s: %s: %s", e.Op, e.Bucket, e.Key, e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error codes reported by S3 that callers commonly branch on.
const (
	CodeNoSuchUpload  = "NoSuchUpload"
	CodeAccessDenied  = "AccessDenied"
	CodeInvalidDigest = "InvalidDigest"
	CodeInvalidPart   = "InvalidPart"
	CodeMissingETag   = "MissingETag"
)

// classify converts an SDK error into a TransportError or ServiceError
// carrying the operation context.
func classify(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		serviceErr := &ServiceError{
			Op:      op,
			Bucket:  bucket,
			Key:     key,
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
		var respErr interface{ HTTPStatusCode() int }
		if errors.As(err, &respErr) {
			serviceErr.StatusCode = respErr.HTTPStatusCode()
		}
		return serviceErr
	}

	return &TransportError{Op: op, Bucket: bucket, Key: key, Err: err}
}

// IsServiceCode reports whether err is a ServiceError with the given code.
func IsServiceCode(err error, code string) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code == code
	}
	return false
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

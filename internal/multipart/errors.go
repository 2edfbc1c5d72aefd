package multipart

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned by Write and Finish once the session has
	// completed or aborted.
	ErrInvalidState = errors.New("multipart: session is no longer open")

	// ErrIncompletePartSequence means the recorded parts are not numbered
	// 1..n without gaps, or a part is missing its ETag. The session aborts
	// rather than ask the service to assemble a broken object.
	ErrIncompletePartSequence = errors.New("multipart: incomplete part sequence")
)

// UploadError is returned when a session fails after initiation. Err is the
// failure that stopped the session. AbortErr is set when the cleanup call
// failed too, in which case the upload may still exist on the service and
// must be aborted out of band.
type UploadError struct {
	Bucket   string
	Key      string
	UploadID string
	Err      error
	AbortErr error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("multipart upload %s to %s/%s failed: %v", e.UploadID, e.Bucket, e.Key, e.Err)
	if e.AbortErr != nil {
		msg += fmt.Sprintf(" (abort failed, upload may be orphaned: %v)", e.AbortErr)
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

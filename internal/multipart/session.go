// Package multipart streams bytes of unknown length into an S3 multipart
// upload.
//
// A Session initiates the upload, cuts the incoming bytes into numbered
// parts, uploads up to a bounded number of parts concurrently and finally
// either completes the upload with the ordered part list or aborts it.
//
//	sess, err := multipart.New(ctx, client, "bucket", "path/to/object")
//	if err != nil {
//		return err
//	}
//	defer sess.Close() // aborts unless Finish succeeded
//
//	if _, err := io.Copy(sess, r); err != nil {
//		return err
//	}
//	obj, err := sess.Finish(ctx)
//
// A session that is dropped without Finish or Close leaves an incomplete
// upload on the service, billed until a lifecycle rule or an operator
// removes it. The same is true when the abort call itself fails; the
// returned UploadError then carries AbortErr.
package multipart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"s3stream/internal/metrics"
	"s3stream/internal/pool"
	"s3stream/internal/s3"
)

// Part bodies larger than this are allocated per part instead of pooled.
const maxPooledPartSize = 64 << 20

// State is the lifecycle position of a Session.
type State int32

const (
	StateOpen State = iota
	StateFinishing
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinishing:
		return "finishing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Object describes the object a completed session produced.
type Object struct {
	Bucket    string
	Key       string
	UploadID  string
	ETag      string
	VersionID string
	Location  string
	Size      int64
	Parts     int
	// ContentMD5 is the hex MD5 of the whole stream. The S3 ETag of a
	// multipart object is not a content hash, so this is the value to
	// compare against a locally computed digest.
	ContentMD5 string
}

// Session is one multipart upload. Write, ReadFrom, Finish, Abort and Close
// must be called from a single goroutine.
type Session struct {
	client   Client
	uploader *Uploader
	bucket   string
	key      string
	uploadID string
	opts     options
	log      *slog.Logger

	parent context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	gctx   context.Context
	sem    *semaphore.Weighted
	buf    *Buffer
	bodies *pool.BufferPool
	whole  *Checksum

	mu       sync.Mutex
	state    State
	parts    []s3.PartInfo
	nextPart int32
	size     int64
	stopping bool
	partErr  error
	err      error
}

// New initiates a multipart upload for bucket/key and returns an open
// session. Cancelling ctx fails the session; the abort still runs on a
// context detached from ctx.
func New(ctx context.Context, client Client, bucket, key string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.partSize > MaxPartSize {
		return nil, fmt.Errorf("multipart: part size %d exceeds maximum %d", o.partSize, MaxPartSize)
	}
	if o.maxPartSize < o.partSize {
		o.maxPartSize = o.partSize
	}

	bodies := o.pool
	if bodies == nil && o.maxPartSize <= maxPooledPartSize {
		bodies = pool.ForSize(o.maxPartSize)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	uploadID, err := client.CreateMultipartUpload(ctx, bucket, key, s3.CreateOptions{
		ContentType:  o.contentType,
		Metadata:     o.metadata,
		StorageClass: o.storageClass,
	})
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(sctx)

	s := &Session{
		client:   client,
		uploader: NewUploader(client, bucket, key, uploadID),
		bucket:   bucket,
		key:      key,
		uploadID: uploadID,
		opts:     o,
		log:      logger.With("bucket", bucket, "key", key, "upload_id", uploadID),
		parent:   ctx,
		cancel:   cancel,
		group:    group,
		gctx:     gctx,
		sem:      semaphore.NewWeighted(int64(o.concurrency)),
		buf:      NewBuffer(o.partSize, o.maxPartSize, bodies),
		bodies:   bodies,
		whole:    NewChecksum(),
		state:    StateOpen,
		nextPart: 1,
	}

	metrics.SessionsActive.Inc()
	s.log.Debug("multipart upload initiated", "part_size", o.partSize, "concurrency", o.concurrency)
	return s, nil
}

func (s *Session) Bucket() string   { return s.bucket }
func (s *Session) Key() string      { return s.key }
func (s *Session) UploadID() string { return s.uploadID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Parts returns the parts dispatched so far in part-number order. Parts
// still in flight have an empty ETag.
func (s *Session) Parts() []s3.PartInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.parts)
}

// Err returns the failure that aborted the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Write buffers p and dispatches every part that became ready. It blocks
// while all upload slots are busy. Any upload failure, including one from
// an earlier part, aborts the session and is returned here.
func (s *Session) Write(p []byte) (int, error) {
	if s.State() != StateOpen {
		return 0, ErrInvalidState
	}
	if err := s.gctx.Err(); err != nil {
		return 0, s.halt(err)
	}

	s.whole.Update(p)
	s.buf.Push(p)
	for body := range s.buf.Ready() {
		if err := s.dispatch(body); err != nil {
			return 0, s.halt(err)
		}
	}
	return len(p), nil
}

// Finish uploads the buffered remainder as the last part, waits for every
// part in flight and completes the upload. A stream of zero bytes is
// uploaded as a single empty part, since S3 rejects completion with no parts.
// Any failure aborts the upload.
func (s *Session) Finish(ctx context.Context) (*Object, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	s.state = StateFinishing
	empty := s.nextPart == 1
	s.mu.Unlock()

	if err := s.gctx.Err(); err != nil {
		return nil, s.halt(err)
	}

	if body := s.buf.Flush(); len(body) > 0 || empty {
		if err := s.dispatch(body); err != nil {
			return nil, s.halt(err)
		}
	}

	if err := s.group.Wait(); err != nil {
		return nil, s.halt(err)
	}

	parts, err := s.completedParts()
	if err != nil {
		return nil, s.halt(err)
	}

	out, err := s.client.CompleteMultipartUpload(ctx, s.bucket, s.key, s.uploadID, parts)
	if err != nil {
		return nil, s.halt(err)
	}

	s.mu.Lock()
	s.state = StateCompleted
	size := s.size
	s.mu.Unlock()
	s.cancel()

	metrics.SessionsActive.Dec()
	metrics.SessionsTotal.WithLabelValues("completed").Inc()
	s.log.Info("multipart upload completed", "parts", len(parts), "size", size)

	return &Object{
		Bucket:     s.bucket,
		Key:        s.key,
		UploadID:   s.uploadID,
		ETag:       out.ETag,
		VersionID:  out.VersionID,
		Location:   out.Location,
		Size:       size,
		Parts:      len(parts),
		ContentMD5: s.whole.Finalize().Hex(),
	}, nil
}

// Abort cancels parts in flight, waits for them and aborts the upload on
// the service using ctx. The session is aborted even when the abort call
// fails. A part failure that happened in the background is returned as an
// UploadError; otherwise the abort call's error is. Aborting an aborted
// session is a no-op.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateAborted:
		s.mu.Unlock()
		return nil
	case StateCompleted:
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.state = StateAborted
	s.stopping = true
	s.mu.Unlock()

	s.cancel()
	_ = s.group.Wait()
	abortErr := s.abortUpload(ctx)

	s.mu.Lock()
	partErr := s.partErr
	cause := partErr
	if cause == nil {
		cause = context.Canceled
	}
	uploadErr := &UploadError{
		Bucket:   s.bucket,
		Key:      s.key,
		UploadID: s.uploadID,
		Err:      cause,
		AbortErr: abortErr,
	}
	s.err = uploadErr
	s.mu.Unlock()

	metrics.SessionsActive.Dec()
	metrics.SessionsTotal.WithLabelValues("aborted").Inc()

	if partErr != nil {
		s.log.Error("multipart upload failed", "error", partErr)
		return uploadErr
	}
	return abortErr
}

// Close aborts the upload unless the session already completed or aborted.
// It is meant to be deferred right after New. Like Abort, it reports a part
// failure that no Write observed.
func (s *Session) Close() error {
	switch s.State() {
	case StateCompleted, StateAborted:
		return nil
	}

	ctx, cancel := s.cleanupContext()
	defer cancel()
	return s.Abort(ctx)
}

// fail aborts an open session on behalf of a caller-side failure such as a
// read error. Failures already handled by the session pass through.
func (s *Session) fail(cause error) error {
	switch s.State() {
	case StateOpen, StateFinishing:
		return s.halt(cause)
	}
	return cause
}

func (s *Session) dispatch(body []byte) error {
	if err := s.sem.Acquire(s.gctx, 1); err != nil {
		s.bodies.Put(body)
		return err
	}
	// An earlier part may have failed while we waited for the slot.
	if err := s.gctx.Err(); err != nil {
		s.sem.Release(1)
		s.bodies.Put(body)
		return err
	}

	s.mu.Lock()
	if s.nextPart > MaxParts {
		s.mu.Unlock()
		s.sem.Release(1)
		s.bodies.Put(body)
		return fmt.Errorf("multipart: stream needs more than %d parts, raise the part size", MaxParts)
	}
	part := &Part{Number: s.nextPart, Body: body}
	idx := len(s.parts)
	s.parts = append(s.parts, s3.PartInfo{PartNumber: part.Number})
	s.nextPart++
	s.size += int64(len(body))
	s.mu.Unlock()

	s.log.Debug("dispatching part", "part", part.Number, "size", len(body))

	s.group.Go(func() error {
		defer s.sem.Release(1)

		part.Checksum = SumPart(part.Body)
		etag, err := s.uploader.Upload(s.gctx, part)
		if err != nil {
			// The transport may still be reading the body, so it is not
			// returned to the pool.
			err = fmt.Errorf("part %d: %w", part.Number, err)
			s.recordFailure(err)
			return err
		}
		s.bodies.Put(part.Body)

		s.mu.Lock()
		s.parts[idx].ETag = etag
		s.mu.Unlock()
		return nil
	})
	return nil
}

// halt moves the session to Aborted: it cancels and waits for parts in
// flight, aborts the upload and records the failure. A part failure
// recorded before the halt wins over cause, which is often just the
// cancellation it triggered.
func (s *Session) halt(cause error) error {
	s.mu.Lock()
	if s.state == StateAborted || s.state == StateCompleted {
		err := s.err
		s.mu.Unlock()
		if err == nil {
			err = ErrInvalidState
		}
		return err
	}
	s.state = StateAborted
	s.stopping = true
	s.mu.Unlock()

	s.cancel()
	_ = s.group.Wait()
	s.mu.Lock()
	if s.partErr != nil {
		cause = s.partErr
	}
	s.mu.Unlock()

	ctx, cancel := s.cleanupContext()
	defer cancel()
	abortErr := s.abortUpload(ctx)

	uploadErr := &UploadError{
		Bucket:   s.bucket,
		Key:      s.key,
		UploadID: s.uploadID,
		Err:      cause,
		AbortErr: abortErr,
	}

	s.mu.Lock()
	s.err = uploadErr
	s.mu.Unlock()

	metrics.SessionsActive.Dec()
	metrics.SessionsTotal.WithLabelValues("aborted").Inc()
	s.log.Error("multipart upload failed", "error", cause)
	return uploadErr
}

// recordFailure keeps the first part failure and stops further dispatch.
// It runs before the failed part releases its slot, so a writer waiting on
// that slot always observes the cancellation. Failures caused by the
// session's own halt are not recorded.
func (s *Session) recordFailure(err error) {
	s.mu.Lock()
	if s.partErr == nil && !s.stopping {
		s.partErr = err
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) abortUpload(ctx context.Context) error {
	if err := s.client.AbortMultipartUpload(ctx, s.bucket, s.key, s.uploadID); err != nil {
		metrics.AbortFailuresTotal.Inc()
		s.log.Warn("failed to abort multipart upload, upload may be orphaned", "error", err)
		return err
	}
	s.log.Info("multipart upload aborted")
	return nil
}

func (s *Session) cleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(s.parent), s.opts.abortTimeout)
}

// completedParts returns the parts sorted by number after checking that
// they run 1..n without gaps and all carry an ETag.
func (s *Session) completedParts() ([]s3.PartInfo, error) {
	s.mu.Lock()
	parts := slices.Clone(s.parts)
	want := int(s.nextPart) - 1
	s.mu.Unlock()

	slices.SortFunc(parts, func(a, b s3.PartInfo) int {
		return int(a.PartNumber - b.PartNumber)
	})

	if len(parts) != want {
		return nil, fmt.Errorf("%w: %d parts recorded, %d dispatched", ErrIncompletePartSequence, len(parts), want)
	}
	for i, part := range parts {
		if part.PartNumber != int32(i+1) {
			return nil, fmt.Errorf("%w: expected part %d, found %d", ErrIncompletePartSequence, i+1, part.PartNumber)
		}
		if part.ETag == "" {
			return nil, fmt.Errorf("%w: part %d has no ETag", ErrIncompletePartSequence, part.PartNumber)
		}
	}
	return parts, nil
}

package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"s3stream/internal/pool"
)

var chunks = pool.ForSize(pool.ChunkSize)

// ReadFrom writes everything read from r into the session until EOF. A read
// error is returned as is and leaves the session open; the caller decides
// whether to abort. Write failures have already aborted the session.
func (s *Session) ReadFrom(r io.Reader) (int64, error) {
	buf := chunks.Get()
	defer chunks.Put(buf)
	buf = buf[:cap(buf)]

	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := s.Write(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// Upload streams r into bucket/key and returns the completed object. Any
// read or upload failure aborts the upload.
func Upload(ctx context.Context, client Client, bucket, key string, r io.Reader, opts ...Option) (*Object, error) {
	sess, err := New(ctx, client, bucket, key, opts...)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if _, err := sess.ReadFrom(r); err != nil {
		return nil, sess.fail(err)
	}
	return sess.Finish(ctx)
}

// UploadResponse streams an HTTP response body into bucket/key and closes
// it. The response Content-Type is used unless opts set one.
func UploadResponse(ctx context.Context, client Client, bucket, key string, resp *http.Response, opts ...Option) (*Object, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("multipart: source responded %s", resp.Status)
	}

	opts = append([]Option{WithContentType(resp.Header.Get("Content-Type"))}, opts...)
	return Upload(ctx, client, bucket, key, resp.Body, opts...)
}

// Writer adapts a Session to io.WriteCloser: Close finishes the upload and
// CloseWithError aborts it, the same split io.PipeWriter makes.
type Writer struct {
	ctx  context.Context
	sess *Session
	obj  *Object
}

func NewWriter(ctx context.Context, sess *Session) *Writer {
	return &Writer{ctx: ctx, sess: sess}
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.sess.Write(p)
}

func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	return w.sess.ReadFrom(r)
}

// Close completes the upload. Calling it again returns ErrInvalidState.
func (w *Writer) Close() error {
	obj, err := w.sess.Finish(w.ctx)
	if err != nil {
		return err
	}
	w.obj = obj
	return nil
}

// CloseWithError aborts the upload with err as the recorded cause. A nil
// err behaves like Close.
func (w *Writer) CloseWithError(err error) error {
	if err == nil {
		return w.Close()
	}
	return w.sess.fail(err)
}

// Object returns the completed object after a successful Close.
func (w *Writer) Object() *Object {
	return w.obj
}

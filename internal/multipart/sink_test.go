package multipart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3stream/internal/s3"
)

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

type recordingClient struct {
	fakeClient
	contentType string
}

func (c *recordingClient) CreateMultipartUpload(ctx context.Context, bucket, key string, opts s3.CreateOptions) (string, error) {
	c.contentType = opts.ContentType
	return c.fakeClient.CreateMultipartUpload(ctx, bucket, key, opts)
}

func TestUpload_Success(t *testing.T) {
	client := &fakeClient{}

	obj, err := Upload(context.Background(), client, "bucket", "key", strings.NewReader("hello world"), WithPartSize(4))
	require.NoError(t, err)
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, 3, obj.Parts)
	assert.Equal(t, []byte("hello world"), client.reassemble())
	assert.Empty(t, client.aborts)
}

func TestUpload_ReadErrorAborts(t *testing.T) {
	readErr := errors.New("source went away")
	client := &fakeClient{}

	obj, err := Upload(context.Background(), client, "bucket", "key",
		&failingReader{data: []byte("0123456789"), err: readErr}, WithPartSize(4))
	assert.Nil(t, obj)
	assert.ErrorIs(t, err, readErr)

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "upload-1", uploadErr.UploadID)
	assert.Equal(t, []string{"upload-1"}, client.aborts)
	assert.Empty(t, client.completes)
}

func TestUploadResponse(t *testing.T) {
	client := &recordingClient{}
	body := io.NopCloser(bytes.NewReader([]byte("payload")))
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"image/png"}},
		Body:       body,
	}

	obj, err := UploadResponse(context.Background(), client, "bucket", "key", resp)
	require.NoError(t, err)
	assert.Equal(t, int64(7), obj.Size)
	assert.Equal(t, "image/png", client.contentType)

	client = &recordingClient{}
	resp.Body = io.NopCloser(strings.NewReader("x"))
	_, err = UploadResponse(context.Background(), client, "bucket", "key", resp, WithContentType("application/octet-stream"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", client.contentType, "explicit option wins")
}

func TestUploadResponse_NonSuccessStatus(t *testing.T) {
	client := &fakeClient{}
	resp := &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       io.NopCloser(strings.NewReader("missing")),
	}

	_, err := UploadResponse(context.Background(), client, "bucket", "key", resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, client.creates, "no upload is initiated")
}

func TestWriter_CloseCompletes(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	sess, err := New(ctx, client, "bucket", "key", WithPartSize(4))
	require.NoError(t, err)

	w := NewWriter(ctx, sess)
	_, err = io.Copy(w, strings.NewReader("streamed bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NotNil(t, w.Object())
	assert.Equal(t, int64(14), w.Object().Size)
	assert.Equal(t, StateCompleted, sess.State())
	assert.ErrorIs(t, w.Close(), ErrInvalidState)
}

func TestWriter_CloseWithErrorAborts(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	sess, err := New(ctx, client, "bucket", "key", WithPartSize(4))
	require.NoError(t, err)

	w := NewWriter(ctx, sess)
	_, err = w.Write([]byte("abcdef"))
	require.NoError(t, err)

	cause := errors.New("producer failed")
	err = w.CloseWithError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateAborted, sess.State())
	assert.Equal(t, []string{"upload-1"}, client.aborts)
	assert.Nil(t, w.Object())
}

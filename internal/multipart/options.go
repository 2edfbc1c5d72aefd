package multipart

import (
	"log/slog"
	"time"

	"s3stream/internal/pool"
)

const (
	// MinPartSize is the smallest part S3 accepts for every part but the last.
	MinPartSize = 5 << 20
	// MaxPartSize is the largest part S3 accepts.
	MaxPartSize = 5 << 30
	// MaxParts is the highest part number S3 accepts.
	MaxParts = 10000

	DefaultConcurrency  = 4
	DefaultAbortTimeout = 30 * time.Second
)

type options struct {
	partSize     int
	maxPartSize  int
	concurrency  int
	contentType  string
	metadata     map[string]string
	storageClass string
	abortTimeout time.Duration
	logger       *slog.Logger
	pool         *pool.BufferPool
}

// Option configures a Session.
type Option func(*options)

func defaultOptions() options {
	return options{
		partSize:     MinPartSize,
		concurrency:  DefaultConcurrency,
		abortTimeout: DefaultAbortTimeout,
	}
}

// WithPartSize sets the threshold at which a part is cut. The default is
// 5 MiB, the S3 minimum. Smaller values are accepted for S3-compatible
// services that allow them.
func WithPartSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.partSize = size
		}
	}
}

// WithMaxPartSize lets a part grow past the threshold when a single write
// delivers more bytes than that. The default equals the part size, so every
// part but the last is exactly the part size.
func WithMaxPartSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.maxPartSize = min(size, MaxPartSize)
		}
	}
}

// WithConcurrency bounds the number of part uploads in flight.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithContentType(contentType string) Option {
	return func(o *options) {
		if contentType != "" {
			o.contentType = contentType
		}
	}
}

func WithMetadata(metadata map[string]string) Option {
	return func(o *options) {
		o.metadata = metadata
	}
}

func WithStorageClass(class string) Option {
	return func(o *options) {
		o.storageClass = class
	}
}

// WithAbortTimeout bounds the cleanup call issued when a session fails or is
// closed without finishing.
func WithAbortTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.abortTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPool overrides the pool part bodies are drawn from.
func WithPool(bp *pool.BufferPool) Option {
	return func(o *options) {
		o.pool = bp
	}
}

package multipart

import (
	"iter"

	"s3stream/internal/pool"
)

// Buffer accumulates stream bytes and cuts them into parts. A part is only
// emitted once at least minSize bytes are pending, and is at most maxSize
// bytes long. The remainder at end of stream is returned by Flush whatever
// its length.
type Buffer struct {
	pending []byte
	off     int
	minSize int
	maxSize int
	pool    *pool.BufferPool
}

// NewBuffer creates a buffer with the given thresholds. A maxSize below
// minSize is raised to minSize. Part bodies are taken from bp when it is
// non-nil and its size class can hold a full part.
func NewBuffer(minSize, maxSize int, bp *pool.BufferPool) *Buffer {
	if minSize < 1 {
		minSize = 1
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	if bp != nil && bp.Size() < maxSize {
		bp = nil
	}
	return &Buffer{minSize: minSize, maxSize: maxSize, pool: bp}
}

// Push appends a copy of chunk.
func (b *Buffer) Push(chunk []byte) {
	b.pending = append(b.pending, chunk...)
}

// Len returns the number of bytes not yet emitted.
func (b *Buffer) Len() int {
	return len(b.pending) - b.off
}

// Ready yields every part that can be cut from the pending bytes, oldest
// bytes first. Bytes below the threshold stay buffered. Stopping the
// iteration early leaves the unyielded bytes in place.
func (b *Buffer) Ready() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		defer b.compact()
		for b.Len() >= b.minSize {
			if !yield(b.take(min(b.Len(), b.maxSize))) {
				return
			}
		}
	}
}

// Flush returns all remaining bytes as the final part and empties the
// buffer. It returns nil when nothing is pending.
func (b *Buffer) Flush() []byte {
	defer b.compact()
	if b.Len() == 0 {
		return nil
	}
	return b.take(b.Len())
}

func (b *Buffer) take(n int) []byte {
	var part []byte
	if b.pool != nil {
		part = b.pool.Get()
	} else {
		part = make([]byte, 0, n)
	}
	part = append(part, b.pending[b.off:b.off+n]...)
	b.off += n
	return part
}

func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.pending, b.pending[b.off:])
	b.pending = b.pending[:n]
	b.off = 0
}

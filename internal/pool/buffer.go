// Package pool recycles part-sized byte buffers between multipart sessions.
//
// Part bodies are large (5 MiB and up) and short-lived: they live from the
// moment a part is cut until its upload returns. Reusing them keeps a busy
// server from allocating a fresh part for every slice of every stream.
package pool

import (
	"sync"
)

// ChunkSize is the read size used when pulling from an io.Reader.
const ChunkSize = 64 * 1024

// BufferPool hands out buffers that all share one capacity.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of buffers with capacity size.
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, 0, size)
		return &buf
	}
	return bp
}

// Size returns the capacity of buffers handed out by the pool.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Get returns an empty buffer with capacity Size().
// The caller is responsible for calling Put once the buffer is no longer used.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:0]
}

// Put returns a buffer to the pool. Buffers of a different capacity are
// dropped so a pool never grows beyond its configured size class.
func (bp *BufferPool) Put(buf []byte) {
	if bp == nil || cap(buf) != bp.size {
		return
	}
	buf = buf[:0]
	bp.pool.Put(&buf)
}

var pools sync.Map // map[int]*BufferPool

// ForSize returns the shared pool for the given capacity, creating it on first use.
func ForSize(size int) *BufferPool {
	if bp, ok := pools.Load(size); ok {
		return bp.(*BufferPool)
	}
	bp, _ := pools.LoadOrStore(size, NewBufferPool(size))
	return bp.(*BufferPool)
}

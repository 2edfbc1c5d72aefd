package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool_GetPut(t *testing.T) {
	bp := NewBufferPool(1024)

	buf := bp.Get()
	assert.Equal(t, 0, len(buf))
	assert.Equal(t, 1024, cap(buf))

	buf = append(buf, []byte("data")...)
	bp.Put(buf)

	again := bp.Get()
	assert.Equal(t, 0, len(again), "reused buffers come back empty")
	assert.Equal(t, 1024, cap(again))
}

func TestBufferPool_PutForeignCapacity(t *testing.T) {
	bp := NewBufferPool(16)

	// Must not panic or poison the pool.
	bp.Put(make([]byte, 0, 8))
	bp.Put(nil)

	assert.Equal(t, 16, cap(bp.Get()))
}

func TestBufferPool_NilPut(t *testing.T) {
	var bp *BufferPool
	assert.NotPanics(t, func() { bp.Put(make([]byte, 4)) })
}

func TestForSize(t *testing.T) {
	a := ForSize(4096)
	b := ForSize(4096)
	c := ForSize(8192)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 8192, c.Size())
}

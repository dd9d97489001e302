package core

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// bufferPool is a mutex-protected stack of buffers. Its contents survive
// garbage collection.
type bufferPool struct {
	mu       sync.Mutex
	items    []*bytes.Buffer
	newFunc  func() *bytes.Buffer
	maxItems int

	hits    atomic.Uint64
	misses  atomic.Uint64
	created atomic.Uint64
}

// DefaultEncodeBufferSize is the initial capacity of pooled encode buffers.
const DefaultEncodeBufferSize = 32 * 1024

// defaultPoolPrewarm is the number of buffers created up front.
const defaultPoolPrewarm = 8

// BufferPool is shared by the file writer and the compressors.
var BufferPool = NewBufferPool(DefaultEncodeBufferSize)

// NewBufferPool creates a new buffer pool.
// initialCapacity is the pre-allocated capacity for each new buffer.
func NewBufferPool(initialCapacity ...int) *bufferPool {
	capacity := 0
	if len(initialCapacity) > 0 && initialCapacity[0] > 0 {
		capacity = initialCapacity[0]
	}
	bp := &bufferPool{
		items:    make([]*bytes.Buffer, 0, defaultPoolPrewarm),
		maxItems: 4 * defaultPoolPrewarm,
	}
	bp.newFunc = func() *bytes.Buffer {
		bp.created.Add(1)
		return bytes.NewBuffer(make([]byte, 0, capacity))
	}
	for i := 0; i < defaultPoolPrewarm; i++ {
		bp.items = append(bp.items, bp.newFunc())
	}
	return bp
}

// Get retrieves a buffer from the pool. If the pool is empty, it creates a new one.
func (bp *bufferPool) Get() *bytes.Buffer {
	bp.mu.Lock()
	if len(bp.items) == 0 {
		bp.mu.Unlock()
		bp.misses.Add(1)
		return bp.newFunc()
	}
	bp.hits.Add(1)
	item := bp.items[len(bp.items)-1]
	bp.items = bp.items[:len(bp.items)-1]
	bp.mu.Unlock()
	return item
}

// Put resets a buffer and returns it to the pool. Buffers beyond the pool's
// capacity are dropped.
func (bp *bufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()
	bp.mu.Lock()
	if len(bp.items) < bp.maxItems {
		bp.items = append(bp.items, buf)
	}
	bp.mu.Unlock()
}

// GetMetrics returns the current metrics for the pool.
func (bp *bufferPool) GetMetrics() (hits, misses, created uint64, currentSize int) {
	bp.mu.Lock()
	size := len(bp.items)
	bp.mu.Unlock()
	return bp.hits.Load(), bp.misses.Load(), bp.created.Load(), size
}

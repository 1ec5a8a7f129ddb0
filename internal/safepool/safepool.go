// Package safepool wraps sync.Pool with typed accessors.
package safepool

import (
	"sync"
)

// Pool is a generic, safe wrapper around sync.Pool.
type Pool[T any] struct {
	p sync.Pool
}

// NewPool returns a safe wrapper around sync.Pool for a given type.
func NewPool[T any](newFn func() T) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() interface{} {
				return newFn()
			},
		},
	}
}

// NewBufferPool returns a pool of byte slices that are all size bytes long.
// Put restores a resliced buffer to its full length.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		Pool: NewPool(func() []byte {
			return make([]byte, size)
		}),
		size: size,
	}
}

type BufferPool struct {
	*Pool[[]byte]
	size int
}

// Get returns an item of type T.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put returns an item of type T to the pool for reuse.
func (p *Pool[T]) Put(item T) {
	p.p.Put(item)
}

// Put returns buf to the pool, dropping buffers that were not allocated by
// it.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	p.Pool.Put(buf[:p.size])
}

// Package bufferpool pools the byte slices pieces are assembled into
// before a verify+write job claims them. A Buffer must be released
// exactly once, by whichever side ends up owning it after a piece is
// verified, written, or discarded on a failed hash check.
package bufferpool

import (
	"sync"
	"sync/atomic"
)

// Pool is a sync.Pool of fixed-capacity byte slices.
type Pool struct {
	pool sync.Pool
}

// New returns a new Pool for Buffers of size buflen.
func New(buflen int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, buflen)
				return &b
			},
		},
	}
}

// Get a new Buffer from the pool. datalen must not exceed the buffer
// length given to New. Release the Buffer exactly once when done.
func (p *Pool) Get(datalen int) *Buffer {
	buf := p.pool.Get().(*[]byte)
	return &Buffer{Data: (*buf)[:datalen], buf: buf, pool: p}
}

// Buffer is a slice backed by a Pool-owned array.
type Buffer struct {
	Data     []byte
	buf      *[]byte
	pool     *Pool
	released int32
}

// Release returns the Buffer to its Pool. Calling Release more than
// once on the same Buffer panics: ownership of a piece buffer passes
// between the scheduler, the verify job, and the storage writer
// exactly once each, and a double-release means two of them thought
// they owned it.
func (b *Buffer) Release() {
	if !atomic.CompareAndSwapInt32(&b.released, 0, 1) {
		panic("bufferpool: buffer released more than once")
	}
	b.pool.pool.Put(b.buf)
}

// File: pool/bytepool.go
// Package pool provides reusable byte buffers for session reads.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// BytePool hands out fixed-size read buffers backed by sync.Pool.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a pool of buffers of the given size.
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// GetBuffer returns a buffer from the pool.
func (b *BytePool) GetBuffer() []byte {
	return *b.pool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. Buffers of the wrong size are
// dropped so a resliced buffer cannot poison the pool.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.pool.Put(&buf)
}

// Size returns the size of buffers managed by this pool.
func (b *BytePool) Size() int {
	return b.size
}

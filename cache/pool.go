package cache

import (
	"sync"
)

func AlignUp(x int) int {
	return (x + 1) &^ 1
}

const (
	MaxBytesSize = 4096
	// DefaultHeadroom room for ethernet + ip + udp headers and the udp pseudo header
	DefaultHeadroom = 128
)

// BytesPool pool of fixed size frame storage
type BytesPool struct {
	size int
	pool sync.Pool
}

func NewBytesPool(size int) *BytesPool {
	if size <= 0 {
		size = MaxBytesSize
	} else {
		size = AlignUp(size)

		if size > MaxBytesSize {
			size = MaxBytesSize
		}
	}

	return &BytesPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				return make([]byte, size)
			},
		},
	}
}

func (pool *BytesPool) Size() int {
	return pool.size
}

func (pool *BytesPool) GetSlice() []byte {
	bytes := pool.pool.Get().([]byte)
	for idx := range bytes {
		bytes[idx] = 0
	}

	return bytes
}

// GetBuffer buffer with empty window after headroom bytes
func (pool *BytesPool) GetBuffer(headroom int) *Buffer {
	return newBuffer(pool.GetSlice(), headroom)
}

func (pool *BytesPool) PutSlice(data []byte) {
	if cap(data) < pool.size {
		return
	}

	pool.pool.Put(data[:pool.size])
}

func (pool *BytesPool) PutBuffer(buff *Buffer) {
	if buff == nil || cap(buff.data) < pool.size {
		return
	}

	pool.pool.Put(buff.data[:pool.size])
	buff.data = nil
	buff.offset, buff.size, buff.headroom = 0, 0, 0
}

package cache

import (
	"bytes"

	"github.com/frozenpine/pool"
)

// StickyCache accumulates stream bytes until a full line is available.
type StickyCache struct {
	buffer []byte
	used   int
	offset int
}

func (c *StickyCache) Write(data []byte) (int, error) {
	size := len(data)

	if size <= 0 {
		return 0, nil
	}

	if c.buffer == nil {
		c.buffer = make([]byte, pool.MaxBytesSize)
	}

	if c.offset+size > len(c.buffer) {
		newBuffer := make([]byte, len(c.buffer)+size*2)
		copy(newBuffer, c.buffer[c.used:c.offset])
		c.offset -= c.used
		c.used = 0
		pool.PutByteSlice(c.buffer)
		c.buffer = newBuffer
	}

	copy(c.buffer[c.offset:], data)
	c.offset += size

	return size, nil
}

// ReadLine pops one '\n' terminated line, '\r' stripped.
func (c *StickyCache) ReadLine() ([]byte, bool) {
	remain := c.buffer[c.used:c.offset]

	idx := bytes.IndexByte(remain, '\n')
	if idx < 0 {
		return nil, false
	}

	line := bytes.ReplaceAll(remain[:idx], []byte{'\r'}, nil)

	c.used += idx + 1
	if c.used == c.offset {
		c.used, c.offset = 0, 0
	}

	return line, true
}

func (c *StickyCache) Len() int {
	return c.offset - c.used
}

func (c *StickyCache) Reset() {
	c.used, c.offset = 0, 0
}

// Release returns storage to the byte pool, cache is empty afterwards.
func (c *StickyCache) Release() {
	if c.buffer != nil {
		pool.PutByteSlice(c.buffer)
	}

	c.buffer = nil
	c.Reset()
}

package cache

import (
	"github.com/frozenpine/stack4go/errors"
)

// Buffer fixed backing storage with a movable data window.
// Headers are prepended into the headroom in front of the window,
// padding is appended into the tailroom behind it, nothing is reallocated.
type Buffer struct {
	data     []byte
	headroom int
	offset   int
	size     int
}

// NewBuffer creates buffer with capacity bytes backing storage,
// headroom bytes reserved in front of the initial window.
func NewBuffer(capacity, headroom int) *Buffer {
	return newBuffer(make([]byte, capacity), headroom)
}

func newBuffer(data []byte, headroom int) *Buffer {
	if headroom > len(data) {
		headroom = len(data)
	}

	if headroom < 0 {
		headroom = 0
	}

	return &Buffer{
		data:     data,
		headroom: headroom,
		offset:   headroom,
	}
}

// Init resets window to length zero bytes right after the reserved headroom.
func (buf *Buffer) Init(length int) error {
	if length < 0 || buf.headroom+length > len(buf.data) {
		return errors.Wrapf(errors.ErrTailroom, "init %d bytes of %d", length, len(buf.data)-buf.headroom)
	}

	buf.offset = buf.headroom
	buf.size = length
	clear(buf.data[buf.offset : buf.offset+length])

	return nil
}

// Bytes current window, aliasing backing storage
func (buf *Buffer) Bytes() []byte {
	return buf.data[buf.offset : buf.offset+buf.size]
}

func (buf *Buffer) Len() int {
	return buf.size
}

func (buf *Buffer) Cap() int {
	return len(buf.data)
}

// Offset window start inside backing storage
func (buf *Buffer) Offset() int {
	return buf.offset
}

func (buf *Buffer) Headroom() int {
	return buf.offset
}

func (buf *Buffer) Tailroom() int {
	return len(buf.data) - buf.offset - buf.size
}

// AddHeader reserves n bytes right before the window and returns them.
func (buf *Buffer) AddHeader(n int) ([]byte, error) {
	if n < 0 || n > buf.offset {
		return nil, errors.Wrapf(errors.ErrHeadroom, "add header %d with %d left", n, buf.offset)
	}

	buf.offset -= n
	buf.size += n

	return buf.data[buf.offset : buf.offset+n], nil
}

func (buf *Buffer) RemoveHeader(n int) error {
	if n < 0 || n > buf.size {
		return errors.Wrapf(errors.ErrMalformed, "remove header %d from %d", n, buf.size)
	}

	buf.offset += n
	buf.size -= n

	return nil
}

// AddPadding appends n zero bytes at tail.
func (buf *Buffer) AddPadding(n int) error {
	if n < 0 || n > buf.Tailroom() {
		return errors.Wrapf(errors.ErrTailroom, "add padding %d with %d left", n, buf.Tailroom())
	}

	tail := buf.offset + buf.size
	clear(buf.data[tail : tail+n])
	buf.size += n

	return nil
}

func (buf *Buffer) RemovePadding(n int) error {
	if n < 0 || n > buf.size {
		return errors.Wrapf(errors.ErrMalformed, "remove padding %d from %d", n, buf.size)
	}

	buf.size -= n

	return nil
}

// Clone deep copies buf into a newly allocated buffer.
func (buf *Buffer) Clone() *Buffer {
	dst := &Buffer{data: make([]byte, len(buf.data))}
	Copy(dst, buf)

	return dst
}

// Copy deep copies src into dst, including window position.
// dst backing storage is replaced when it is smaller than src.
func Copy(dst, src *Buffer) {
	if len(dst.data) < len(src.data) {
		dst.data = make([]byte, len(src.data))
	}

	dst.headroom = src.headroom
	dst.offset = src.offset
	dst.size = src.size

	copy(dst.data[dst.offset:dst.offset+dst.size], src.Bytes())
}

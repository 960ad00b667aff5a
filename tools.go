package stack4go

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

func NByte(buffer []byte, offset *int) uint8 {
	idx := 0

	if offset != nil {
		idx = *offset
		(*offset)++
	}

	result := buffer[idx]

	return result
}

func N2HShort(buffer []byte, offset *int) uint16 {
	idx := 0

	if offset != nil {
		idx = *offset
		(*offset) += 2
	}

	result := binary.BigEndian.Uint16(buffer[idx:])

	return result
}

func N2HLong(buffer []byte, offset *int) uint32 {
	idx := 0

	if offset != nil {
		idx = *offset
		(*offset) += 4
	}

	result := binary.BigEndian.Uint32(buffer[idx:])

	return result
}

func HByte(buffer []byte, offset *int, v uint8) {
	idx := 0

	if offset != nil {
		idx = *offset
		(*offset)++
	}

	buffer[idx] = v
}

func H2NShort(buffer []byte, offset *int, v uint16) {
	idx := 0

	if offset != nil {
		idx = *offset
		(*offset) += 2
	}

	binary.BigEndian.PutUint16(buffer[idx:], v)
}

func H2NLong(buffer []byte, offset *int, v uint32) {
	idx := 0

	if offset != nil {
		idx = *offset
		(*offset) += 4
	}

	binary.BigEndian.PutUint32(buffer[idx:], v)
}

func ReadBytes(dst []byte, buffer []byte, offset *int) error {
	idx := 0

	if offset != nil {
		idx = *offset
	}
	buffer = buffer[idx:]

	if len(buffer) < len(dst) {
		return errors.WithStack(ErrInsufficientData)
	}

	if copyLen := copy(dst, buffer); offset != nil {
		*offset += copyLen
	}

	return nil
}

// Checksum16 internet checksum (RFC 1071) over data.
// A trailing odd byte is padded with zero.
func Checksum16(data []byte) uint16 {
	var sum uint32

	size := len(data)
	for idx := 0; idx+1 < size; idx += 2 {
		sum += uint32(data[idx])<<8 | uint32(data[idx+1])
	}

	if size&1 == 1 {
		sum += uint32(data[size-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum >> 16) + (sum & 0xffff)
	}

	return ^uint16(sum)
}

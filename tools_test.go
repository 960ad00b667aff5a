package stack4go

import (
	"errors"
	"testing"
)

func TestOffset(t *testing.T) {
	offset := 0

	buffer := []byte{0, 1, 2, 3, 4, 5, 6}

	NByte(buffer, &offset)

	if offset != 1 {
		t.Fatal("nbyte error")
	}

	N2HShort(buffer, &offset)

	if offset != 3 {
		t.Fatal("ntohs error")
	}

	N2HLong(buffer, &offset)

	if offset != 7 {
		t.Fatal("ntohl error")
	}
}

func TestWriteOffset(t *testing.T) {
	offset := 0

	buffer := make([]byte, 7)

	HByte(buffer, &offset, 0xaa)
	H2NShort(buffer, &offset, 0x0102)
	H2NLong(buffer, &offset, 0x03040506)

	if offset != 7 {
		t.Fatal("write offset error")
	}

	if buffer[0] != 0xaa || buffer[1] != 1 || buffer[2] != 2 || buffer[6] != 6 {
		t.Fatalf("write content error: %x", buffer)
	}
}

func TestReadBytes(t *testing.T) {
	offset := 1

	buffer := []byte{0, 1, 2, 3, 4}
	var dst [3]byte

	if err := ReadBytes(dst[:], buffer, &offset); err != nil {
		t.Fatal(err)
	}

	if offset != 4 || dst != [3]byte{1, 2, 3} {
		t.Fatalf("read bytes error: %x offset %d", dst, offset)
	}

	if err := ReadBytes(dst[:], buffer, &offset); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("short read should fail: %v", err)
	}

	if offset != 4 {
		t.Fatal("failed read moved offset")
	}
}

func TestChecksum16(t *testing.T) {
	// RFC 1071 example words 0001 f203 f4f5 f6f7, folded sum 0xddf2
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}

	if sum := Checksum16(data); sum != ^uint16(0xddf2) {
		t.Fatalf("checksum mismatch: %#04x", sum)
	}

	odd := []byte{0x01, 0x02, 0x03}
	if Checksum16(odd) != Checksum16([]byte{0x01, 0x02, 0x03, 0x00}) {
		t.Fatal("odd byte should be padded with zero")
	}
}

func TestChecksumVerify(t *testing.T) {
	hdr := IPv4Header{
		VerIHL:         0x45,
		TotalLength:    60,
		Identification: 0x1c46,
		Flags:          IPDontFragment,
		TTL:            64,
		Protocol:       TCP,
		SrcAddr:        IPv4Addr{172, 16, 10, 99},
		DstAddr:        IPv4Addr{172, 16, 10, 12},
	}

	buff := make([]byte, IPv4HeaderSize)
	if err := hdr.Pack(buff); err != nil {
		t.Fatal(err)
	}

	hdr.CRC = Checksum16(buff)
	if err := hdr.Pack(buff); err != nil {
		t.Fatal(err)
	}

	// sum over a header carrying its own checksum folds to all ones
	if sum := Checksum16(buff); sum != 0 {
		t.Fatalf("verify header failed: %#04x", sum)
	}

	buff[IPChecksumOffset], buff[IPChecksumOffset+1] = 0, 0
	if Checksum16(buff) != hdr.CRC {
		t.Fatal("recomputed checksum differs")
	}
}

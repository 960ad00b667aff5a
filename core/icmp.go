package core

import (
	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

// quoted bytes of the offending datagram beyond its ip header
const icmpQuoteSize = 8

func (s *Stack) icmpIn(buf *cache.Buffer, src stack4go.IPv4Addr) error {
	data := buf.Bytes()

	var hdr stack4go.ICMPHeader

	if err := hdr.Unpack(data); err != nil {
		return errors.Drop(errors.ErrMalformed, "icmp: message too short(%d)", len(data))
	}

	if stack4go.Checksum16(data) != 0 {
		return errors.Drop(errors.ErrChecksum, "icmp: checksum %#04x", hdr.Checksum)
	}

	s.log.WithFields(logrus.Fields{
		"layer": "icmp",
		"src":   src,
		"type":  hdr.Type,
		"code":  hdr.Code,
	}).Debug("icmp in")

	if hdr.Type == stack4go.ICMPEchoRequest {
		return s.icmpEchoReply(data, src)
	}

	return nil
}

// icmpEchoReply answers request with the same id, seq and payload.
func (s *Stack) icmpEchoReply(request []byte, dst stack4go.IPv4Addr) error {
	buf, err := s.txBuffer(len(request))
	if err != nil {
		return err
	}
	defer s.pool.PutBuffer(buf)

	reply := buf.Bytes()
	copy(reply, request)

	reply[0] = stack4go.ICMPEchoReply
	reply[1] = 0
	reply[2], reply[3] = 0, 0

	offset := 2
	stack4go.H2NShort(reply, &offset, stack4go.Checksum16(reply))

	return s.IPSend(buf, dst, stack4go.ICMP)
}

// ICMPUnreachable reports a rejected datagram to dst, datagram window
// must start at its ip header.
func (s *Stack) ICMPUnreachable(datagram *cache.Buffer, dst stack4go.IPv4Addr, code uint8) error {
	quote := datagram.Bytes()

	size := stack4go.IPv4HeaderSize + icmpQuoteSize

	var ipHdr stack4go.IPv4Header
	if err := ipHdr.Unpack(quote); err == nil && ipHdr.IHL() > 5 {
		size = ipHdr.PayloadOffset() + icmpQuoteSize
	}

	if len(quote) > size {
		quote = quote[:size]
	}

	buf, err := s.txBuffer(stack4go.ICMPHeaderSize + len(quote))
	if err != nil {
		return err
	}
	defer s.pool.PutBuffer(buf)

	msg := buf.Bytes()

	hdr := stack4go.ICMPHeader{
		Type: stack4go.ICMPUnreachable,
		Code: code,
	}
	if err := hdr.Pack(msg); err != nil {
		return err
	}
	copy(msg[stack4go.ICMPHeaderSize:], quote)

	offset := 2
	stack4go.H2NShort(msg, &offset, stack4go.Checksum16(msg))

	s.log.WithFields(logrus.Fields{
		"layer": "icmp",
		"dst":   dst,
		"code":  code,
	}).Debug("destination unreachable")

	return s.IPSend(buf, dst, stack4go.ICMP)
}

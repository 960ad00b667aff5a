package core

import (
	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

// OpenPort binds handler to udp port, replacing previous binding.
func (s *Stack) OpenPort(port uint16, handler DataHandler) error {
	if handler == nil {
		return errors.Wrapf(ErrInvalidConfig, "udp: nil handler for port %d", port)
	}

	if err := s.udpPorts.Set(port, handler); err != nil {
		return errors.Wrapf(err, "udp: open port %d", port)
	}

	s.log.WithFields(logrus.Fields{
		"layer": "udp",
		"port":  port,
	}).Info("port opened")

	return nil
}

func (s *Stack) ClosePort(port uint16) {
	s.udpPorts.Delete(port)
}

// udpChecksum checksum of the udp segment in buf window, computed over
// a pseudo header built transiently in the headroom. Headroom bytes
// are restored afterwards.
func (s *Stack) udpChecksum(buf *cache.Buffer, src, dst stack4go.IPv4Addr) (uint16, error) {
	segmentLen := buf.Len()

	pseudoBuf, err := buf.AddHeader(stack4go.UDPPseudoHdrSize)
	if err != nil {
		return 0, err
	}

	var backup [12]byte
	copy(backup[:], pseudoBuf)

	pseudo := stack4go.UDPPseudoHeader{
		SrcAddr:  src,
		DstAddr:  dst,
		Protocol: stack4go.UDP,
		Len:      uint16(segmentLen),
	}
	pseudo.Pack(pseudoBuf)

	sum := stack4go.Checksum16(buf.Bytes())

	copy(pseudoBuf, backup[:])
	buf.RemoveHeader(stack4go.UDPPseudoHdrSize)

	// zero is reserved for "no checksum"
	if sum == 0 {
		sum = 0xffff
	}

	return sum, nil
}

func (s *Stack) udpIn(buf *cache.Buffer, src stack4go.IPv4Addr) error {
	data := buf.Bytes()

	var hdr stack4go.UDPHeader

	if err := hdr.Unpack(data); err != nil {
		return errors.Drop(errors.ErrMalformed, "udp: datagram too short(%d)", len(data))
	}

	total := int(hdr.Len)
	if total < stack4go.UDPHeaderSize || total > len(data) {
		return errors.Drop(errors.ErrMalformed, "udp: length %d of %d", total, len(data))
	}

	if total < len(data) {
		buf.RemovePadding(len(data) - total)
		data = buf.Bytes()
	}

	if hdr.CRC != 0 {
		data[6], data[7] = 0, 0
		actual, err := s.udpChecksum(buf, src, s.cfg.IP)
		offset := 6
		stack4go.H2NShort(data, &offset, hdr.CRC)

		if err != nil {
			return err
		}

		if actual != hdr.CRC {
			return errors.Drop(errors.ErrChecksum, "udp: checksum %#04x expect %#04x", hdr.CRC, actual)
		}
	}

	handler, ok := s.udpPorts.Get(hdr.DstPort)
	if !ok {
		return errors.Drop(errors.ErrPortUnreachable, "udp: port %d closed", hdr.DstPort)
	}

	session := &Session{
		Proto:   stack4go.UDP,
		SrcIP:   src,
		SrcPort: hdr.SrcPort,
		DstIP:   s.cfg.IP,
		DstPort: hdr.DstPort,
	}

	s.log.WithFields(logrus.Fields{
		"layer":   "udp",
		"session": session,
		"size":    total - stack4go.UDPHeaderSize,
	}).Trace("datagram in")

	return (*handler)(session, data[stack4go.UDPHeaderSize:])
}

// UDPSend sends data as one udp datagram from srcPort to dst:dstPort.
func (s *Stack) UDPSend(data []byte, srcPort uint16, dst stack4go.IPv4Addr, dstPort uint16) error {
	if len(data)+stack4go.UDPHeaderSize > ipMaxPayload {
		return errors.Wrapf(errors.ErrPolicy, "udp: payload %d too large", len(data))
	}

	buf, err := s.txBuffer(len(data))
	if err != nil {
		return err
	}
	defer s.pool.PutBuffer(buf)

	copy(buf.Bytes(), data)

	hdrBuf, err := buf.AddHeader(stack4go.UDPHeaderSize)
	if err != nil {
		return err
	}

	hdr := stack4go.UDPHeader{
		SrcPort: srcPort,
		DstPort: dstPort,
		Len:     uint16(buf.Len()),
	}
	if err := hdr.Pack(hdrBuf); err != nil {
		return err
	}

	sum, err := s.udpChecksum(buf, s.cfg.IP, dst)
	if err != nil {
		return err
	}

	offset := 6
	stack4go.H2NShort(hdrBuf, &offset, sum)

	return s.IPSend(buf, dst, stack4go.UDP)
}

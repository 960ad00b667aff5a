package core

import (
	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

// max ip payload, total length is a 16 bit field
const ipMaxPayload = 0xffff - 20

// IPSend sends buf payload as one ipv4 datagram to dst, fragmented
// to the interface mtu. Unfragmented payload gets its header prepended
// in place if headroom allows, otherwise datagram and fragments are
// built in pooled buffers.
func (s *Stack) IPSend(buf *cache.Buffer, dst stack4go.IPv4Addr, proto stack4go.TransProto) error {
	if buf.Len() > ipMaxPayload {
		return errors.Wrapf(errors.ErrPolicy, "ip: payload %d too large", buf.Len())
	}

	id := s.ipID
	s.ipID++

	maxPayload := s.cfg.MaxPayload()

	if buf.Len() <= maxPayload {
		if buf.Headroom() >= stack4go.IPv4HeaderSize {
			return s.ipFragmentOut(buf, dst, proto, id, 0, false)
		}

		dgram, err := s.txBuffer(buf.Len())
		if err != nil {
			return err
		}
		defer s.pool.PutBuffer(dgram)

		copy(dgram.Bytes(), buf.Bytes())

		return s.ipFragmentOut(dgram, dst, proto, id, 0, false)
	}

	data := buf.Bytes()

	for offset := 0; offset < len(data); offset += maxPayload {
		end := offset + maxPayload
		if end > len(data) {
			end = len(data)
		}

		frag, err := s.txBuffer(end - offset)
		if err != nil {
			return err
		}
		copy(frag.Bytes(), data[offset:end])

		err = s.ipFragmentOut(frag, dst, proto, id, uint16(offset), end < len(data))
		s.pool.PutBuffer(frag)

		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Stack) ipFragmentOut(
	buf *cache.Buffer, dst stack4go.IPv4Addr, proto stack4go.TransProto,
	id, offset uint16, more bool,
) error {
	hdrBuf, err := buf.AddHeader(stack4go.IPv4HeaderSize)
	if err != nil {
		return err
	}

	flags := offset >> 3
	if more {
		flags |= stack4go.IPMoreFragment
	}

	hdr := stack4go.IPv4Header{
		VerIHL:         stack4go.IPVersion4<<4 | uint8(stack4go.IPv4HeaderSize/4),
		TotalLength:    uint16(buf.Len()),
		Identification: id,
		Flags:          flags,
		TTL:            s.cfg.TTL,
		Protocol:       proto,
		SrcAddr:        s.cfg.IP,
		DstAddr:        dst,
	}
	if err := hdr.Pack(hdrBuf); err != nil {
		return err
	}

	crcOffset := stack4go.IPChecksumOffset
	stack4go.H2NShort(hdrBuf, &crcOffset, stack4go.Checksum16(hdrBuf))

	s.log.WithFields(logrus.Fields{
		"layer":  "ip",
		"dst":    dst,
		"proto":  proto,
		"id":     id,
		"offset": offset,
		"more":   more,
	}).Trace("fragment out")

	return s.ResolveAndSend(buf, dst)
}

func (s *Stack) ipIn(buf *cache.Buffer, _ stack4go.MACAddr) error {
	data := buf.Bytes()

	var hdr stack4go.IPv4Header

	if err := hdr.Unpack(data); err != nil {
		return errors.Drop(errors.ErrMalformed, "ip: packet too short(%d)", len(data))
	}

	hdrLen := hdr.PayloadOffset()
	if len(data) < hdrLen {
		return errors.Drop(errors.ErrMalformed, "ip: packet %d shorter than header %d", len(data), hdrLen)
	}

	if hdr.Version() != stack4go.IPVersion4 {
		return errors.Drop(errors.ErrMalformed, "ip: version %d", hdr.Version())
	}

	if hdr.IHL() < stack4go.IPv4HeaderSize/4 {
		return errors.Drop(errors.ErrMalformed, "ip: header length %d", hdrLen)
	}

	if hdr.DontFragment() && len(data) > s.cfg.MTU {
		if err := s.ICMPUnreachable(buf, hdr.SrcAddr, stack4go.ICMPCodeProtoUnreach); err != nil {
			return err
		}

		return errors.Drop(errors.ErrPolicy, "ip: df datagram %d exceeds mtu %d", len(data), s.cfg.MTU)
	}

	crc := data[stack4go.IPChecksumOffset : stack4go.IPChecksumOffset+2]
	crc[0], crc[1] = 0, 0
	actual := stack4go.Checksum16(data[:hdrLen])
	stack4go.H2NShort(crc, nil, hdr.CRC)

	if actual != hdr.CRC {
		return errors.Drop(errors.ErrChecksum, "ip: checksum %#04x expect %#04x", hdr.CRC, actual)
	}

	total := int(hdr.TotalLength)
	if total < hdrLen || total > len(data) {
		return errors.Drop(errors.ErrMalformed, "ip: total length %d of %d", total, len(data))
	}

	// link padding
	if total < len(data) {
		buf.RemovePadding(len(data) - total)
	}

	// datagram start, header is re-attached from here for icmp errors
	start := buf.Offset()

	if err := buf.RemoveHeader(hdrLen); err != nil {
		return errors.Drop(err, "ip: strip header")
	}

	found, err := s.ipProtocols.Dispatch(buf, hdr.Protocol, hdr.SrcAddr)

	var code uint8

	switch {
	case !found:
		code = stack4go.ICMPCodeProtoUnreach
		err = errors.Drop(errors.ErrNoHandler, "ip: no handler for %s", hdr.Protocol)
	case errors.Is(err, errors.ErrPortUnreachable):
		code = stack4go.ICMPCodePortUnreach
	default:
		return err
	}

	if _, hdrErr := buf.AddHeader(buf.Offset() - start); hdrErr != nil {
		return errors.Join(err, hdrErr)
	}

	if icmpErr := s.ICMPUnreachable(buf, hdr.SrcAddr, code); icmpErr != nil {
		return errors.Join(err, icmpErr)
	}

	return err
}

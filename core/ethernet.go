package core

import (
	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

// FrameIn deframes one received ethernet frame and dispatches its
// payload by ether type.
func (s *Stack) FrameIn(buf *cache.Buffer) error {
	var hdr stack4go.EtherHeader

	if err := hdr.Unpack(buf.Bytes()); err != nil {
		return errors.Drop(errors.ErrMalformed, "ethernet: frame too short(%d)", buf.Len())
	}

	if hdr.DstHost != s.cfg.MAC && !hdr.DstHost.IsBroadcast() {
		return errors.Drop(errors.ErrNotForHost, "ethernet: frame to %s", hdr.DstHost)
	}

	lengthType := uint16(hdr.Type)

	switch {
	case lengthType >= stack4go.EtherMinPayload && lengthType <= stack4go.EtherMaxPayload:
		return errors.Drop(
			errors.ErrUnknownProtocol,
			"ethernet: 802.3 length field %d unsupported", lengthType,
		)
	case lengthType >= stack4go.EtherTypeMin:
	default:
		return errors.Drop(errors.ErrMalformed, "ethernet: invalid length/type %#04x", lengthType)
	}

	if err := buf.RemoveHeader(stack4go.EtherHeaderSize); err != nil {
		return errors.Drop(err, "ethernet: strip header")
	}

	found, err := s.etherProtocols.Dispatch(buf, hdr.Type, hdr.SrcHost)
	if !found {
		return errors.Drop(errors.ErrUnknownProtocol, "ethernet: no handler for %s", hdr.Type)
	}

	return err
}

// FrameOut pads payload to the ethernet minimum, prepends the ethernet
// header and hands the frame to the driver.
// Payload without room for padding or header is framed in a pooled copy.
func (s *Stack) FrameOut(buf *cache.Buffer, dst stack4go.MACAddr, proto stack4go.EtherType) error {
	padding := stack4go.EtherMinPayload - buf.Len()
	if padding < 0 {
		padding = 0
	}

	if buf.Tailroom() < padding || buf.Headroom() < stack4go.EtherHeaderSize {
		frame, err := s.txBuffer(buf.Len())
		if err != nil {
			return err
		}
		defer s.pool.PutBuffer(frame)

		copy(frame.Bytes(), buf.Bytes())
		buf = frame
	}

	if padding > 0 {
		if err := buf.AddPadding(padding); err != nil {
			return err
		}
	}

	hdrBuf, err := buf.AddHeader(stack4go.EtherHeaderSize)
	if err != nil {
		return err
	}

	hdr := stack4go.EtherHeader{
		DstHost: dst,
		SrcHost: s.cfg.MAC,
		Type:    proto,
	}
	if err := hdr.Pack(hdrBuf); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"layer": "ethernet",
		"dst":   dst,
		"proto": proto,
		"size":  buf.Len(),
	}).Trace("frame out")

	if err := s.driver.Send(buf.Bytes()); err != nil {
		return errors.Link(err, "driver send")
	}

	return nil
}

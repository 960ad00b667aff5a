package core

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

// ARPState resolution state of one destination
type ARPState uint8

const (
	ARPUnresolved ARPState = iota
	ARPPending
	ARPResolved
)

func (st ARPState) String() string {
	switch st {
	case ARPUnresolved:
		return "unresolved"
	case ARPPending:
		return "pending"
	case ARPResolved:
		return "resolved"
	default:
		return fmt.Sprintf("ARPState(%d)", uint8(st))
	}
}

func (s *Stack) ARPState(ip stack4go.IPv4Addr) ARPState {
	if _, ok := s.arpTable.Get(ip); ok {
		return ARPResolved
	}

	if queue, ok := s.arpPending.Get(ip); ok && !queue.Empty() {
		return ARPPending
	}

	return ARPUnresolved
}

// LookupARP cached hardware address of ip
func (s *Stack) LookupARP(ip stack4go.IPv4Addr) (stack4go.MACAddr, bool) {
	mac, ok := s.arpTable.Get(ip)
	if !ok {
		return stack4go.ZeroMAC, false
	}

	return *mac, true
}

// ResolveAndSend frames buf as ipv4 to the hardware address of dst.
// If dst is not resolved yet a clone of buf is queued until the arp
// reply arrives, buf itself is never retained.
func (s *Stack) ResolveAndSend(buf *cache.Buffer, dst stack4go.IPv4Addr) error {
	switch s.ARPState(dst) {
	case ARPResolved:
		mac, _ := s.arpTable.Get(dst)
		return s.FrameOut(buf, *mac, stack4go.EtherTypeIPv4)
	case ARPPending:
		queue, _ := s.arpPending.Get(dst)
		queue.Push(s.clone(buf))

		s.log.WithFields(logrus.Fields{
			"layer":   "arp",
			"dst":     dst,
			"pending": queue.Len(),
		}).Debug("frame queued")

		return nil
	default:
		dup := s.clone(buf)

		var queue cache.Queue[*cache.Buffer]
		queue.Push(dup)

		if err := s.arpPending.Set(dst, queue); err != nil {
			s.pool.PutBuffer(dup)
			return errors.Wrapf(err, "arp: pending %s", dst)
		}

		return s.ARPRequest(dst)
	}
}

func (s *Stack) arpOut(opcode uint16, dstMAC, targetMAC stack4go.MACAddr, targetIP stack4go.IPv4Addr) error {
	buf, err := s.txBuffer(stack4go.ARPPacketSize)
	if err != nil {
		return err
	}
	defer s.pool.PutBuffer(buf)

	pkt := stack4go.ARPPacket{
		HwType:    stack4go.ARPHwEther,
		ProtoType: stack4go.EtherTypeIPv4,
		HwLen:     stack4go.ARPHwLen,
		ProtoLen:  stack4go.ARPProtoLen,
		Opcode:    opcode,
		SenderMAC: s.cfg.MAC,
		SenderIP:  s.cfg.IP,
		TargetMAC: targetMAC,
		TargetIP:  targetIP,
	}

	if err := pkt.Pack(buf.Bytes()); err != nil {
		return err
	}

	if err := buf.AddPadding(stack4go.EtherMinPayload - stack4go.ARPPacketSize); err != nil {
		return err
	}

	return s.FrameOut(buf, dstMAC, stack4go.EtherTypeARP)
}

// ARPRequest broadcasts who-has target.
func (s *Stack) ARPRequest(target stack4go.IPv4Addr) error {
	s.log.WithFields(logrus.Fields{
		"layer":  "arp",
		"target": target,
	}).Debug("arp request")

	return s.arpOut(stack4go.ARPRequest, stack4go.BroadcastMAC, stack4go.ZeroMAC, target)
}

// ARPReply unicasts our address to the requester.
func (s *Stack) ARPReply(targetIP stack4go.IPv4Addr, targetMAC stack4go.MACAddr) error {
	return s.arpOut(stack4go.ARPReply, targetMAC, targetMAC, targetIP)
}

func (s *Stack) arpIn(buf *cache.Buffer, _ stack4go.MACAddr) error {
	var pkt stack4go.ARPPacket

	if err := pkt.Unpack(buf.Bytes()); err != nil {
		return errors.Drop(errors.ErrMalformed, "arp: packet too short(%d)", buf.Len())
	}

	if pkt.ProtoType != stack4go.EtherTypeIPv4 ||
		pkt.HwLen != stack4go.ARPHwLen || pkt.ProtoLen != stack4go.ARPProtoLen {
		return errors.Drop(
			errors.ErrMalformed,
			"arp: unsupported proto %s hlen %d plen %d",
			pkt.ProtoType, pkt.HwLen, pkt.ProtoLen,
		)
	}

	if pkt.TargetIP != s.cfg.IP {
		return errors.Drop(errors.ErrNotForHost, "arp: target %s", pkt.TargetIP)
	}

	// own announcement looped back by the link
	if pkt.SenderMAC == s.cfg.MAC {
		return errors.Drop(errors.ErrNotForHost, "arp: own packet")
	}

	log := s.log.WithFields(logrus.Fields{
		"layer": "arp",
		"src":   pkt.SenderIP,
		"mac":   pkt.SenderMAC,
	})

	switch pkt.Opcode {
	case stack4go.ARPReply:
		log.Debug("arp reply")

		learnErr := s.arpLearn(pkt.SenderIP, pkt.SenderMAC)
		if err := s.arpFlush(pkt.SenderIP, pkt.SenderMAC); err != nil {
			return err
		}

		return learnErr
	case stack4go.ARPRequest:
		log.Debug("arp request")

		learnErr := s.arpLearn(pkt.SenderIP, pkt.SenderMAC)
		if err := s.ARPReply(pkt.SenderIP, pkt.SenderMAC); err != nil {
			return err
		}

		return learnErr
	default:
		return errors.Drop(errors.ErrUnknownProtocol, "arp: opcode %d", pkt.Opcode)
	}
}

func (s *Stack) arpLearn(ip stack4go.IPv4Addr, mac stack4go.MACAddr) error {
	if err := s.arpTable.Set(ip, mac); err != nil {
		return errors.Wrapf(err, "arp: learn %s", ip)
	}

	return nil
}

// arpFlush sends frames queued for ip in order, then releases them.
func (s *Stack) arpFlush(ip stack4go.IPv4Addr, mac stack4go.MACAddr) error {
	ref, ok := s.arpPending.Get(ip)
	if !ok {
		return nil
	}

	queue := *ref
	s.arpPending.Delete(ip)

	var sendErr error
	count := queue.Len()

	queue.Free(func(frame *cache.Buffer) {
		if sendErr == nil {
			sendErr = s.FrameOut(frame, mac, stack4go.EtherTypeIPv4)
		}

		s.pool.PutBuffer(frame)
	})

	s.log.WithFields(logrus.Fields{
		"layer": "arp",
		"dst":   ip,
		"count": count,
	}).Debug("pending frames flushed")

	return sendErr
}

// DumpARP writes address table and pending frames in hex.
func (s *Stack) DumpARP(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "<====== arp table =======>"); err != nil {
		return err
	}

	var err error

	s.arpTable.Range(func(ip stack4go.IPv4Addr, mac stack4go.MACAddr, insertedAt time.Time) bool {
		_, err = fmt.Fprintf(w, "%s -> %s (%s)\n", ip, mac, insertedAt.Format(time.RFC3339))
		return err == nil
	})
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "<====== arp pending =======>"); err != nil {
		return err
	}

	s.arpPending.Range(func(ip stack4go.IPv4Addr, queue cache.Queue[*cache.Buffer], _ time.Time) bool {
		queue.Range(func(frame *cache.Buffer) bool {
			_, err = fmt.Fprintf(w, "%s -> %s\n", ip, hex.EncodeToString(frame.Bytes()))
			return err == nil
		})

		return err == nil
	})

	return err
}

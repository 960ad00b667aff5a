package core_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket/layers"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/core"
	"github.com/frozenpine/stack4go/errors"
)

func TestUDPDeliver(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())
	resolvePeer(t, stack, drv)

	var (
		session *core.Session
		got     []byte
	)

	if err := stack.OpenPort(60000, func(s *core.Session, data []byte) error {
		session = s
		got = bytes.Clone(data)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	drv.feed(udpFrame(t, ipLayer(layers.IPProtocolUDP), 60000, []byte("hello stack")))
	if err := stack.Poll(); err != nil {
		t.Fatal(err)
	}

	if string(got) != "hello stack" {
		t.Fatalf("payload mismatch: %q", got)
	}

	want := &core.Session{
		Proto:   stack4go.UDP,
		SrcIP:   peerIP,
		SrcPort: 5555,
		DstIP:   hostIP,
		DstPort: 60000,
	}
	if diff := cmp.Diff(want, session); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	stack.ClosePort(60000)
	got = nil

	if err := stack.FrameIn(rxBuffer(udpFrame(t, ipLayer(layers.IPProtocolUDP), 60000, []byte("x")))); !errors.Is(err, errors.ErrPortUnreachable) {
		t.Fatalf("closed port should be unreachable: %v", err)
	}

	if got != nil {
		t.Fatal("closed port handler invoked")
	}
}

func TestUDPPortUnreachable(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())
	resolvePeer(t, stack, drv)

	frame := udpFrame(t, ipLayer(layers.IPProtocolUDP), 60001, []byte("nobody"))

	if err := stack.FrameIn(rxBuffer(frame)); !errors.Is(err, errors.ErrPortUnreachable) {
		t.Fatalf("expect port unreachable: %v", err)
	}

	sent := drv.take()
	if len(sent) != 1 {
		t.Fatalf("expect icmp unreachable, got %d", len(sent))
	}

	icmp := decode(t, sent[0]).Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	if icmp.TypeCode.Type() != layers.ICMPv4TypeDestinationUnreachable ||
		icmp.TypeCode.Code() != layers.ICMPv4CodePort {
		t.Fatalf("unexpected icmp %s", icmp.TypeCode)
	}

	// ip header restored after the transient pseudo header
	quote := frame[stack4go.EtherHeaderSize : stack4go.EtherHeaderSize+28]
	if diff := cmp.Diff(quote, []byte(icmp.Payload)); diff != "" {
		t.Fatalf("quoted datagram mismatch (-want +got):\n%s", diff)
	}
}

func TestUDPChecksum(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())
	resolvePeer(t, stack, drv)

	stack.OpenPort(60000, func(*core.Session, []byte) error { return nil })

	frame := udpFrame(t, ipLayer(layers.IPProtocolUDP), 60000, []byte("odd"))
	frame[stack4go.EtherHeaderSize+20+6] ^= 0x01

	if err := stack.FrameIn(rxBuffer(frame)); !errors.Is(err, errors.ErrChecksum) {
		t.Fatalf("bad udp checksum should be dropped: %v", err)
	}

	// zero checksum is not verified
	frame[stack4go.EtherHeaderSize+20+6] = 0
	frame[stack4go.EtherHeaderSize+20+7] = 0

	if err := stack.FrameIn(rxBuffer(frame)); err != nil {
		t.Fatal(err)
	}
}

func TestUDPSend(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())
	resolvePeer(t, stack, drv)

	if err := stack.UDPSend([]byte("reply"), 60000, peerIP, 5555); err != nil {
		t.Fatal(err)
	}

	sent := drv.take()
	if len(sent) != 1 {
		t.Fatalf("expect 1 frame, got %d", len(sent))
	}

	pkt := decode(t, sent[0])
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)

	if udp.SrcPort != 60000 || udp.DstPort != 5555 || int(udp.Length) != 8+len("reply") {
		t.Fatalf("invalid udp header: %+v", udp)
	}

	// checksum over pseudo header and segment folds to zero
	segment := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4).Payload
	pseudo := make([]byte, stack4go.UDPPseudoHdrSize)
	(&stack4go.UDPPseudoHeader{
		SrcAddr:  hostIP,
		DstAddr:  peerIP,
		Protocol: stack4go.UDP,
		Len:      uint16(len(segment)),
	}).Pack(pseudo)

	if sum := stack4go.Checksum16(append(pseudo, segment...)); sum != 0 {
		t.Fatalf("udp checksum invalid: %#04x", sum)
	}
}

func TestOpenPortFull(t *testing.T) {
	cfg := testConfig()
	cfg.UDPTableSize = 1

	stack, _, _ := newStack(t, cfg)
	noop := func(*core.Session, []byte) error { return nil }

	if err := stack.OpenPort(1, noop); err != nil {
		t.Fatal(err)
	}

	if err := stack.OpenPort(2, noop); !errors.Is(err, errors.ErrCacheFull) {
		t.Fatalf("port table exhaustion should surface: %v", err)
	}

	if err := stack.OpenPort(1, noop); err != nil {
		t.Fatalf("rebinding open port should succeed: %v", err)
	}
}

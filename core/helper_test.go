package core_test

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/core"
)

var (
	hostMAC = stack4go.MACAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	hostIP  = stack4go.IPv4Addr{10, 0, 0, 1}
	peerMAC = stack4go.MACAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	peerIP  = stack4go.IPv4Addr{10, 0, 0, 5}
)

// captureDriver in memory link, frames fed through inbox,
// transmitted frames recorded in sent.
type captureDriver struct {
	inbox   [][]byte
	sent    [][]byte
	sendErr error
	recvErr error
	closed  bool
}

func (drv *captureDriver) Send(frame []byte) error {
	if drv.sendErr != nil {
		return drv.sendErr
	}

	drv.sent = append(drv.sent, bytes.Clone(frame))
	return nil
}

func (drv *captureDriver) Recv(p []byte) (int, error) {
	if drv.recvErr != nil {
		return 0, drv.recvErr
	}

	if len(drv.inbox) == 0 {
		return 0, nil
	}

	frame := drv.inbox[0]
	drv.inbox = drv.inbox[1:]

	return copy(p, frame), nil
}

func (drv *captureDriver) Close() error {
	drv.closed = true
	return nil
}

func (drv *captureDriver) feed(frames ...[]byte) {
	drv.inbox = append(drv.inbox, frames...)
}

// take returns and clears transmitted frames
func (drv *captureDriver) take() [][]byte {
	sent := drv.sent
	drv.sent = nil
	return sent
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.MAC = hostMAC
	cfg.IP = hostIP
	return cfg
}

func newStack(t *testing.T, cfg core.Config, opts ...core.Option) (*core.Stack, *captureDriver, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	drv := &captureDriver{}

	stack, err := core.NewStack(cfg, drv, append([]core.Option{core.WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	// gratuitous arp
	if sent := drv.take(); len(sent) != 1 {
		t.Fatalf("expect 1 gratuitous arp, got %d frames", len(sent))
	}

	return stack, drv, hook
}

// resolvePeer lets peer ask for our address so it gets learned.
func resolvePeer(t *testing.T, stack *core.Stack, drv *captureDriver) {
	t.Helper()

	drv.feed(arpFrame(t, layers.ARPRequest, stack4go.BroadcastMAC, stack4go.ZeroMAC))
	if err := stack.Poll(); err != nil {
		t.Fatal(err)
	}

	if stack.ARPState(peerIP) != core.ARPResolved {
		t.Fatal("peer not resolved")
	}

	drv.take()
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatal(err)
	}

	return bytes.Clone(buf.Bytes())
}

func etherLayer(dst stack4go.MACAddr, proto layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(peerMAC[:]),
		DstMAC:       net.HardwareAddr(dst[:]),
		EthernetType: proto,
	}
}

func ipLayer(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x4242,
		Protocol: proto,
		SrcIP:    net.IP(peerIP[:]),
		DstIP:    net.IP(hostIP[:]),
	}
}

func arpFrame(t *testing.T, op uint16, dst, targetMAC stack4go.MACAddr) []byte {
	return serialize(t,
		etherLayer(dst, layers.EthernetTypeARP),
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         op,
			SourceHwAddress:   peerMAC[:],
			SourceProtAddress: peerIP[:],
			DstHwAddress:      targetMAC[:],
			DstProtAddress:    hostIP[:],
		},
	)
}

func echoFrame(t *testing.T, id, seq uint16, payload []byte) []byte {
	return serialize(t,
		etherLayer(hostMAC, layers.EthernetTypeIPv4),
		ipLayer(layers.IPProtocolICMPv4),
		&layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       id,
			Seq:      seq,
		},
		gopacket.Payload(payload),
	)
}

func udpFrame(t *testing.T, ip *layers.IPv4, dstPort uint16, payload []byte) []byte {
	udp := &layers.UDP{
		SrcPort: 5555,
		DstPort: layers.UDPPort(dstPort),
	}
	udp.SetNetworkLayerForChecksum(ip)

	return serialize(t,
		etherLayer(hostMAC, layers.EthernetTypeIPv4),
		ip, udp, gopacket.Payload(payload),
	)
}

// fixIPChecksum recomputes header checksum of the ip datagram in frame.
func fixIPChecksum(frame []byte) {
	hdr := frame[stack4go.EtherHeaderSize:]
	hdrLen := int(hdr[0]&0xf) * 4

	hdr[10], hdr[11] = 0, 0
	offset := 10
	stack4go.H2NShort(hdr, &offset, stack4go.Checksum16(hdr[:hdrLen]))
}

func rxBuffer(frame []byte) *cache.Buffer {
	buf := cache.NewBuffer(cache.MaxBytesSize, 0)
	buf.Init(len(frame))
	copy(buf.Bytes(), frame)

	return buf
}

func decode(t *testing.T, frame []byte) gopacket.Packet {
	t.Helper()

	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		t.Fatalf("decode frame failed: %v", errLayer.Error())
	}

	return pkt
}

package core_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/core"
	"github.com/frozenpine/stack4go/errors"
)

const testEtherType = stack4go.EtherType(0x88b5)

func TestEthernetFilter(t *testing.T) {
	stack, _, _ := newStack(t, testConfig())

	var count int
	stack.AddProtocol(testEtherType, core.HandlerFunc[stack4go.MACAddr](
		func(buf *cache.Buffer, from stack4go.MACAddr) error {
			if from != peerMAC || buf.Len() < 3 {
				t.Errorf("unexpected delivery from %s with %d bytes", from, buf.Len())
			}
			count++
			return nil
		},
	))

	build := func(dst stack4go.MACAddr, lengthType uint16) []byte {
		return serialize(t, etherLayer(dst, layers.EthernetType(lengthType)), gopacket.Payload([]byte{1, 2, 3}))
	}

	cases := []struct {
		name      string
		frame     []byte
		cause     error
		delivered bool
	}{
		{"unicast", build(hostMAC, uint16(testEtherType)), nil, true},
		{"broadcast", build(stack4go.BroadcastMAC, uint16(testEtherType)), nil, true},
		{"other host", build(peerMAC, uint16(testEtherType)), errors.ErrNotForHost, false},
		{"length field", build(hostMAC, 100), errors.ErrUnknownProtocol, false},
		{"invalid type", build(hostMAC, 0x05ff), errors.ErrMalformed, false},
		{"too small", build(hostMAC, 0x0010), errors.ErrMalformed, false},
		{"unregistered", build(hostMAC, 0x88b6), errors.ErrUnknownProtocol, false},
		{"short", build(hostMAC, uint16(testEtherType))[:10], errors.ErrMalformed, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			before := count

			err := stack.FrameIn(rxBuffer(c.frame))

			if c.cause == nil && err != nil {
				t.Fatal(err)
			}
			if c.cause != nil && (!errors.Is(err, c.cause) || !errors.IsRecoverable(err)) {
				t.Fatalf("expect recoverable %v, got %v", c.cause, err)
			}

			if delivered := count > before; delivered != c.delivered {
				t.Fatalf("handler invoked: %v", delivered)
			}
		})
	}
}

func TestFrameOutPadding(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())

	buf := cache.NewBuffer(128, 32)
	buf.Init(3)
	copy(buf.Bytes(), []byte{1, 2, 3})

	if err := stack.FrameOut(buf, peerMAC, testEtherType); err != nil {
		t.Fatal(err)
	}

	sent := drv.take()
	if len(sent) != 1 || len(sent[0]) != 60 {
		t.Fatal("frame not padded to 60 bytes")
	}

	var hdr stack4go.EtherHeader
	hdr.Unpack(sent[0])

	if hdr.DstHost != peerMAC || hdr.SrcHost != hostMAC || hdr.Type != testEtherType {
		t.Fatalf("invalid header: %+v", hdr)
	}

	for _, b := range sent[0][stack4go.EtherHeaderSize+3:] {
		if b != 0 {
			t.Fatal("padding not zeroed")
		}
	}

	// no headroom left for ethernet header
	tight := cache.NewBuffer(64, 0)
	tight.Init(46)
	if err := stack.FrameOut(tight, peerMAC, testEtherType); !errors.Is(err, errors.ErrHeadroom) {
		t.Fatalf("expect headroom error: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	registry := core.NewRegistry[uint16, string]()

	var called string
	handler := func(name string) core.Handler[string] {
		return core.HandlerFunc[string](func(_ *cache.Buffer, from string) error {
			called = name + "@" + from
			return nil
		})
	}

	registry.Add(1, handler("first"))
	registry.Add(1, handler("second"))

	found, err := registry.Dispatch(nil, 1, "peer")
	if !found || err != nil || called != "second@peer" {
		t.Fatalf("last add should win: %v %v %s", found, err, called)
	}

	if found, err := registry.Dispatch(nil, 2, "peer"); found || err != nil {
		t.Fatal("unknown id should report not found without error")
	}

	registry.Remove(1)
	if _, ok := registry.Lookup(1); ok {
		t.Fatal("removed handler still registered")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*core.Config)
		valid  bool
	}{
		{"default", func(*core.Config) {}, true},
		{"mtu 1020", func(c *core.Config) { c.MTU = 1020 }, true},
		{"mtu not aligned", func(c *core.Config) { c.MTU = 1499 }, false},
		{"mtu too small", func(c *core.Config) { c.MTU = 60 }, false},
		{"mtu exceeds pool", func(c *core.Config) { c.MTU = 4020 }, false},
		{"no mac", func(c *core.Config) { c.MAC = stack4go.ZeroMAC }, false},
		{"broadcast mac", func(c *core.Config) { c.MAC = stack4go.BroadcastMAC }, false},
		{"no ip", func(c *core.Config) { c.IP = stack4go.IPv4Addr{} }, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := testConfig()
			c.modify(&cfg)

			err := cfg.Validate()
			if c.valid && err != nil {
				t.Fatal(err)
			}
			if !c.valid && !errors.Is(err, core.ErrInvalidConfig) {
				t.Fatalf("expect invalid config: %v", err)
			}
		})
	}

	cfg := testConfig()
	cfg.MTU = 1499
	if _, err := core.NewStack(cfg, &captureDriver{}); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("stack with invalid config created: %v", err)
	}
}

func TestPollDrop(t *testing.T) {
	stack, drv, hook := newStack(t, testConfig())

	// nothing pending
	if err := stack.Poll(); err != nil {
		t.Fatal(err)
	}

	frame := arpFrame(t, layers.ARPRequest, peerMAC, stack4go.ZeroMAC)
	drv.feed(frame)

	if err := stack.Poll(); err != nil {
		t.Fatalf("dropped frame should not fail poll: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.DebugLevel || entry.Message != "packet dropped" {
		t.Fatalf("drop not logged: %+v", entry)
	}

	if err, _ := entry.Data[logrus.ErrorKey].(error); !errors.Is(err, errors.ErrNotForHost) {
		t.Fatalf("unexpected drop cause: %v", err)
	}
}

func TestPollLinkFailure(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())

	drv.recvErr = io.ErrUnexpectedEOF
	if err := stack.Poll(); !errors.Is(err, errors.ErrLink) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("recv failure should be returned: %v", err)
	}

	drv.recvErr = nil
	drv.sendErr = io.ErrClosedPipe
	drv.feed(arpFrame(t, layers.ARPRequest, stack4go.BroadcastMAC, stack4go.ZeroMAC))

	if err := stack.Poll(); !errors.Is(err, errors.ErrLink) {
		t.Fatalf("send failure while answering should be returned: %v", err)
	}
}

func TestNewStackNilDriver(t *testing.T) {
	if _, err := core.NewStack(testConfig(), nil); err == nil {
		t.Fatal("nil driver accepted")
	}
}

func TestRun(t *testing.T) {
	stack, drv, _ := newStack(t, testConfig())

	drv.feed(arpFrame(t, layers.ARPRequest, stack4go.BroadcastMAC, stack4go.ZeroMAC))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := stack.Run(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if len(drv.inbox) != 1 {
		t.Fatal("cancelled run should not poll")
	}

	// stops on the first link failure after draining inbox
	drv.sendErr = io.ErrClosedPipe
	if err := stack.Run(context.Background(), time.Millisecond); !errors.Is(err, errors.ErrLink) {
		t.Fatalf("run should stop on link failure: %v", err)
	}
}

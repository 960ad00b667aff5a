package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

// DataHandler consumes one udp datagram payload, data is only valid
// during the call.
type DataHandler func(session *Session, data []byte) error

// Stack single interface ipv4 stack context.
// A Stack is not safe for concurrent use, it must be confined to the
// goroutine calling Poll.
type Stack struct {
	cfg    Config
	driver Driver
	log    logrus.FieldLogger

	pool  *cache.BytesPool
	rxbuf *cache.Buffer

	etherProtocols *Registry[stack4go.EtherType, stack4go.MACAddr]
	ipProtocols    *Registry[stack4go.TransProto, stack4go.IPv4Addr]

	arpTable   *cache.Map[stack4go.IPv4Addr, stack4go.MACAddr]
	arpPending *cache.Map[stack4go.IPv4Addr, cache.Queue[*cache.Buffer]]
	udpPorts   *cache.Map[uint16, DataHandler]

	ipID uint16
}

type Option func(*Stack)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Stack) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces time source of expiring tables.
func WithClock(now func() time.Time) Option {
	return func(s *Stack) {
		s.arpTable.SetClock(now)
		s.arpPending.SetClock(now)
		s.udpPorts.SetClock(now)
	}
}

// NewStack creates stack over driver and announces interface address
// with a gratuitous arp request.
func NewStack(cfg Config, driver Driver, opts ...Option) (*Stack, error) {
	if driver == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil driver")
	}

	cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Stack{
		cfg:    cfg,
		driver: driver,
		log:    logrus.StandardLogger(),
		pool:   cache.NewBytesPool(cache.MaxBytesSize),
		rxbuf:  cache.NewBuffer(cache.MaxBytesSize, 0),

		etherProtocols: NewRegistry[stack4go.EtherType, stack4go.MACAddr](),
		ipProtocols:    NewRegistry[stack4go.TransProto, stack4go.IPv4Addr](),

		arpTable: cache.NewMap[stack4go.IPv4Addr, stack4go.MACAddr](
			cfg.ARPTableSize, cfg.ARPTimeout, nil,
		),
		arpPending: cache.NewMap[stack4go.IPv4Addr, cache.Queue[*cache.Buffer]](
			cfg.PendingTableSize, 0, nil,
		),
		udpPorts: cache.NewMap[uint16, DataHandler](cfg.UDPTableSize, 0, nil),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.etherProtocols.Add(stack4go.EtherTypeARP, HandlerFunc[stack4go.MACAddr](s.arpIn))
	s.etherProtocols.Add(stack4go.EtherTypeIPv4, HandlerFunc[stack4go.MACAddr](s.ipIn))
	s.ipProtocols.Add(stack4go.ICMP, HandlerFunc[stack4go.IPv4Addr](s.icmpIn))
	s.ipProtocols.Add(stack4go.UDP, HandlerFunc[stack4go.IPv4Addr](s.udpIn))

	s.log.WithFields(logrus.Fields{
		"mac": cfg.MAC,
		"ip":  cfg.IP,
		"mtu": cfg.MTU,
	}).Info("stack initialized")

	if err := s.ARPRequest(cfg.IP); err != nil {
		return nil, errors.Wrap(err, "gratuitous arp")
	}

	return s, nil
}

func (s *Stack) Config() Config {
	return s.cfg
}

func (s *Stack) Logger() logrus.FieldLogger {
	return s.log
}

// AddProtocol registers handler for an ethernet type, replacing
// the previous one.
func (s *Stack) AddProtocol(proto stack4go.EtherType, handler Handler[stack4go.MACAddr]) {
	s.etherProtocols.Add(proto, handler)
}

// AddIPProtocol registers handler for an ip protocol number, replacing
// the previous one.
func (s *Stack) AddIPProtocol(proto stack4go.TransProto, handler Handler[stack4go.IPv4Addr]) {
	s.ipProtocols.Add(proto, handler)
}

// Poll receives at most one frame from driver and runs it through the
// receive pipeline. Only driver failures are returned, packet drops
// are logged.
func (s *Stack) Poll() error {
	_, err := s.poll()
	return err
}

func (s *Stack) poll() (bool, error) {
	maxFrame := s.rxbuf.Cap()

	if err := s.rxbuf.Init(maxFrame); err != nil {
		return false, err
	}

	n, err := s.driver.Recv(s.rxbuf.Bytes())
	if err != nil {
		return false, errors.Link(err, "driver recv")
	}

	if n <= 0 {
		return false, nil
	}

	if n < maxFrame {
		if err := s.rxbuf.RemovePadding(maxFrame - n); err != nil {
			return false, err
		}
	}

	if err = s.FrameIn(s.rxbuf); err == nil {
		return true, nil
	}

	switch {
	case errors.Is(err, errors.ErrLink):
		return true, err
	case errors.IsRecoverable(err):
		s.log.WithError(err).Debug("packet dropped")
	default:
		s.log.WithError(err).Warn("packet process failed")
	}

	return true, nil
}

// Run polls until ctx is done or driver fails, sleeping idle whenever
// no frame is pending.
func (s *Stack) Run(ctx context.Context, idle time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		received, err := s.poll()
		if err != nil {
			return err
		}

		if !received && idle > 0 {
			time.Sleep(idle)
		}
	}
}

// Close releases pending frames and closes driver.
func (s *Stack) Close() error {
	var pending []stack4go.IPv4Addr

	s.arpPending.Range(func(ip stack4go.IPv4Addr, _ cache.Queue[*cache.Buffer], _ time.Time) bool {
		pending = append(pending, ip)
		return true
	})

	for _, ip := range pending {
		if queue, ok := s.arpPending.Get(ip); ok {
			queue.Free(s.pool.PutBuffer)
		}
		s.arpPending.Delete(ip)
	}

	return s.driver.Close()
}

// txBuffer buffer with length zero bytes window and full headroom.
func (s *Stack) txBuffer(length int) (*cache.Buffer, error) {
	var buf *cache.Buffer

	if length+cache.DefaultHeadroom <= s.pool.Size() {
		buf = s.pool.GetBuffer(cache.DefaultHeadroom)
	} else {
		buf = cache.NewBuffer(length+cache.DefaultHeadroom, cache.DefaultHeadroom)
	}

	if err := buf.Init(length); err != nil {
		s.pool.PutBuffer(buf)
		return nil, err
	}

	return buf, nil
}

func (s *Stack) clone(buf *cache.Buffer) *cache.Buffer {
	dup := s.pool.GetBuffer(0)
	cache.Copy(dup, buf)

	return dup
}

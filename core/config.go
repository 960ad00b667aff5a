package core

import (
	"time"

	"github.com/frozenpine/stack4go"
	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

const (
	DefaultMTU        = stack4go.EtherMaxPayload
	DefaultARPTimeout = 60 * time.Second
	// minimal mtu every ipv4 link must carry
	minMTU = 68
)

var ErrInvalidConfig = errors.New("invalid stack config")

// Config interface identity and table sizing of one stack.
type Config struct {
	MAC stack4go.MACAddr
	IP  stack4go.IPv4Addr

	MTU int
	TTL uint8

	ARPTimeout       time.Duration
	ARPTableSize     int
	PendingTableSize int
	UDPTableSize     int
}

func DefaultConfig() Config {
	return Config{
		MTU:              DefaultMTU,
		TTL:              stack4go.IPDefaultTTL,
		ARPTimeout:       DefaultARPTimeout,
		ARPTableSize:     cache.DefaultMapSize,
		PendingTableSize: cache.DefaultMapSize,
		UDPTableSize:     cache.DefaultMapSize,
	}
}

func (cfg *Config) withDefaults() {
	def := DefaultConfig()

	if cfg.MTU <= 0 {
		cfg.MTU = def.MTU
	}
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.ARPTimeout == 0 {
		cfg.ARPTimeout = def.ARPTimeout
	}
	if cfg.ARPTableSize <= 0 {
		cfg.ARPTableSize = def.ARPTableSize
	}
	if cfg.PendingTableSize <= 0 {
		cfg.PendingTableSize = def.PendingTableSize
	}
	if cfg.UDPTableSize <= 0 {
		cfg.UDPTableSize = def.UDPTableSize
	}
}

// MaxPayload ip payload bytes carried by one fragment
func (cfg *Config) MaxPayload() int {
	return cfg.MTU - stack4go.IPv4HeaderSize
}

func (cfg *Config) Validate() error {
	switch {
	case cfg.MAC == stack4go.ZeroMAC || cfg.MAC.IsBroadcast():
		return errors.Wrapf(ErrInvalidConfig, "interface mac %s", cfg.MAC)
	case cfg.IP == stack4go.IPv4Addr{}:
		return errors.Wrap(ErrInvalidConfig, "interface ip missing")
	case cfg.MTU < minMTU:
		return errors.Wrapf(ErrInvalidConfig, "mtu %d below %d", cfg.MTU, minMTU)
	case cfg.MaxPayload()%8 != 0:
		return errors.Wrapf(
			ErrInvalidConfig,
			"mtu %d: fragment payload %d not a multiple of 8",
			cfg.MTU, cfg.MaxPayload(),
		)
	case cfg.MTU+stack4go.EtherHeaderSize+cache.DefaultHeadroom > cache.MaxBytesSize:
		return errors.Wrapf(ErrInvalidConfig, "mtu %d exceeds frame pool size", cfg.MTU)
	}

	return nil
}

//go:build cgo

package pcap

import (
	"net"
	"time"

	"github.com/google/gopacket/layers"
	libpcap "github.com/google/gopacket/pcap"

	"github.com/frozenpine/stack4go/core"
	"github.com/frozenpine/stack4go/errors"
)

// read timeout, bounds the time Recv blocks without pending frames
const liveReadTimeout = time.Millisecond

// LiveDriver link driver over a libpcap handle.
type LiveDriver struct {
	handle *libpcap.Handle
}

// resolveDevice finds inteface name if source is an ip address.
func resolveDevice(source string) (string, error) {
	ip, err := net.ResolveIPAddr("ip", source)
	if err != nil {
		return source, nil
	}

	ifaceList, err := libpcap.FindAllDevs()
	if err != nil {
		return "", errors.WithStack(err)
	}

	for _, iface := range ifaceList {
		for _, addr := range iface.Addresses {
			if addr.IP.Equal(ip.IP) {
				return iface.Name, nil
			}
		}
	}

	return source, nil
}

// OpenLive opens device or the device holding ip address source,
// filter is an optional bpf expression.
func OpenLive(source, filter string) (*LiveDriver, error) {
	device, err := resolveDevice(source)
	if err != nil {
		return nil, err
	}

	handle, err := libpcap.OpenLive(device, DefaultSnapLen, true, liveReadTimeout)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if handle.LinkType() != layers.LinkTypeEthernet {
		handle.Close()
		return nil, errors.Wrapf(ErrLinkType, "%s: %s", device, handle.LinkType())
	}

	// frames sent by ourselves are not looped back
	if err := handle.SetDirection(libpcap.DirectionIn); err != nil {
		handle.Close()
		return nil, errors.WithStack(err)
	}

	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, errors.WithStack(err)
		}
	}

	return &LiveDriver{handle: handle}, nil
}

func openLive(source, filter string) (core.Driver, error) {
	drv, err := OpenLive(source, filter)
	if err != nil {
		return nil, err
	}

	return drv, nil
}

func (drv *LiveDriver) Recv(p []byte) (int, error) {
	data, _, err := drv.handle.ReadPacketData()

	switch err {
	case nil:
	case libpcap.NextErrorTimeoutExpired:
		return 0, nil
	default:
		return 0, errors.WithStack(err)
	}

	if len(data) > len(p) {
		return 0, errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(data))
	}

	return copy(p, data), nil
}

func (drv *LiveDriver) Send(frame []byte) error {
	return errors.WithStack(drv.handle.WritePacketData(frame))
}

func (drv *LiveDriver) Close() error {
	drv.handle.Close()
	return nil
}

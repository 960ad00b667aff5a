//go:build linux

package socket

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/frozenpine/stack4go"
)

// RawDriver link driver over an AF_PACKET raw socket bound to one
// interface, needs CAP_NET_RAW.
type RawDriver struct {
	fd      int
	ifindex int
	mac     stack4go.MACAddr
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// OpenRaw opens raw socket on interface name or interface holding ip.
func OpenRaw(bind string) (*RawDriver, error) {
	iface := ParseBindInterface(bind)
	if iface == nil {
		return nil, errors.Wrap(ErrInterface, bind)
	}

	proto := htons(unix.ETH_P_ALL)

	fd, err := unix.Socket(
		unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(proto),
	)
	if err != nil {
		return nil, errors.Wrap(err, "open packet socket")
	}

	if err := unix.Bind(fd, &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  iface.Index,
	}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "bind %s", iface.Name)
	}

	drv := RawDriver{fd: fd, ifindex: iface.Index}
	copy(drv.mac[:], iface.HardwareAddr)

	return &drv, nil
}

// HardwareAddr mac address of bound interface
func (drv *RawDriver) HardwareAddr() stack4go.MACAddr {
	return drv.mac
}

func (drv *RawDriver) Recv(p []byte) (int, error) {
	for {
		n, from, err := unix.Recvfrom(drv.fd, p, unix.MSG_DONTWAIT)

		switch err {
		case nil:
		case unix.EAGAIN:
			return 0, nil
		case unix.EINTR:
			continue
		default:
			return 0, errors.WithStack(err)
		}

		// own frames are looped back by the kernel
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}

		return n, nil
	}
}

func (drv *RawDriver) Send(frame []byte) error {
	for {
		_, err := unix.Write(drv.fd, frame)

		if err == unix.EINTR {
			continue
		}

		return errors.WithStack(err)
	}
}

func (drv *RawDriver) Close() error {
	return errors.WithStack(unix.Close(drv.fd))
}

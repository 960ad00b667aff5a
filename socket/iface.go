package socket

import (
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/frozenpine/stack4go"
)

// ParseBindInterface finds local interface by name or by one of its
// ip addresses, nil if not found.
func ParseBindInterface(bind string) (iface *net.Interface) {
	if bind == "" {
		return
	}

	localInterfaces, err := net.Interfaces()
	if err != nil {
		logrus.WithError(err).Warn("find local interface failed")
		return
	}

	lsnrAddr := net.ParseIP(bind)
FIND:
	for idx := range localInterfaces {
		inter := &localInterfaces[idx]

		if lsnrAddr == nil {
			if inter.Name == bind {
				iface = inter
				break FIND
			}

			continue
		}

		addrs, err := inter.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if strings.Split(addr.String(), "/")[0] == lsnrAddr.String() {
				iface = inter
				break FIND
			}
		}
	}

	if iface != nil {
		logrus.WithFields(logrus.Fields{
			"iface": iface.Name,
			"mac":   iface.HardwareAddr.String(),
		}).Debug("bind interface found")
	}

	return
}

// InterfaceMAC hardware address of interface bind
func InterfaceMAC(bind string) (stack4go.MACAddr, error) {
	var mac stack4go.MACAddr

	iface := ParseBindInterface(bind)
	if iface == nil {
		return mac, ErrInterface
	}

	if len(iface.HardwareAddr) != len(mac) {
		return mac, ErrMACFormat
	}

	copy(mac[:], iface.HardwareAddr)

	return mac, nil
}

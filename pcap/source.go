package pcap

import (
	"regexp"

	"github.com/frozenpine/stack4go/core"
	"github.com/frozenpine/stack4go/errors"
	"github.com/frozenpine/stack4go/socket"
)

const DefaultSnapLen = 65536

var (
	dataSourcePattern = regexp.MustCompile(`^(?P<proto>pcap|file|raw)://(?P<source>.+)$`)

	ErrInvalidSource = errors.New("invalid data source")
	ErrLinkType      = errors.New("unsupported link type")
	ErrFrameTooLarge = errors.New("frame exceeds receive buffer")
)

// ParseSource splits data source uri into proto & source.
func ParseSource(dataSrc string) (proto, source string, err error) {
	srcMatch := dataSourcePattern.FindStringSubmatch(dataSrc)
	if srcMatch == nil {
		return "", "", errors.Wrap(ErrInvalidSource, dataSrc)
	}

	for idx, name := range dataSourcePattern.SubexpNames() {
		switch name {
		case "proto":
			proto = srcMatch[idx]
		case "source":
			source = srcMatch[idx]
		}
	}

	return
}

// CreateDriver opens link driver for data source:
//
//	pcap://<iface|ip>  live libpcap handle
//	file://<dir>       replay <dir>/in.pcap, record into <dir>/out.pcap
//	raw://<iface>      AF_PACKET socket
func CreateDriver(dataSrc string) (core.Driver, error) {
	proto, source, err := ParseSource(dataSrc)
	if err != nil {
		return nil, err
	}

	var drv core.Driver

	switch proto {
	case "pcap":
		drv, err = openLive(source, "")
	case "file":
		drv, err = OpenDir(source)
	case "raw":
		drv, err = socket.OpenRaw(source)
	default:
		err = errors.Wrapf(ErrInvalidSource, "unknown protocol %s", proto)
	}

	if err != nil {
		return nil, err
	}

	return drv, nil
}

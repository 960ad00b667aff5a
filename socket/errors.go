package socket

import (
	"errors"
)

var (
	ErrMACFormat   = errors.New("invalid mac address")
	ErrIPv4Format  = errors.New("invalid ipv4 address")
	ErrInterface   = errors.New("interface not found")
	ErrUnsupported = errors.New(
		"raw socket driver only supported on linux")
)

package socket

import (
	"fmt"
	"net"
	"strings"

	"github.com/frozenpine/stack4go"
)

// MACFront hardware address parsed from text
type MACFront struct {
	stack4go.MACAddr
}

// UnmarshalText unmarshal mac address from text, accepts
// aa:bb:cc:dd:ee:ff and aa-bb-cc-dd-ee-ff forms
func (addr *MACFront) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))

	hw, err := net.ParseMAC(value)
	if err != nil || len(hw) != len(addr.MACAddr) {
		return fmt.Errorf("%w: %s", ErrMACFormat, value)
	}

	copy(addr.MACAddr[:], hw)

	return nil
}

// MarshalText marshal mac address to text
func (addr MACFront) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// Set implements flag.Value
func (addr *MACFront) Set(value string) error {
	return addr.UnmarshalText([]byte(value))
}

// NewMACFront create MACFront from string
func NewMACFront(v string) (*MACFront, error) {
	addr := MACFront{}

	if err := addr.UnmarshalText([]byte(v)); err != nil {
		return nil, err
	}

	return &addr, nil
}

// IPv4Front ipv4 address parsed from text
type IPv4Front struct {
	stack4go.IPv4Addr
}

// UnmarshalText unmarshal dotted ipv4 address from text
func (addr *IPv4Front) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))

	ip := net.ParseIP(value).To4()
	if ip == nil {
		return fmt.Errorf("%w: %s", ErrIPv4Format, value)
	}

	copy(addr.IPv4Addr[:], ip)

	return nil
}

// MarshalText marshal ipv4 address to text
func (addr IPv4Front) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// Set implements flag.Value
func (addr *IPv4Front) Set(value string) error {
	return addr.UnmarshalText([]byte(value))
}

// NewIPv4Front create IPv4Front from string
func NewIPv4Front(v string) (*IPv4Front, error) {
	addr := IPv4Front{}

	if err := addr.UnmarshalText([]byte(v)); err != nil {
		return nil, err
	}

	return &addr, nil
}

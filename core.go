package stack4go

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	origin_errors "errors"
)

var (
	EtherHeaderSize  = binary.Size(EtherHeader{})
	ARPPacketSize    = binary.Size(ARPPacket{})
	IPv4HeaderSize   = binary.Size(IPv4Header{})
	ICMPHeaderSize   = binary.Size(ICMPHeader{})
	UDPHeaderSize    = binary.Size(UDPHeader{})
	UDPPseudoHdrSize = binary.Size(UDPPseudoHeader{})

	ErrInsufficientData = origin_errors.New("insufficient data length")
)

const (
	// EtherMinPayload minimal ethernet payload, frames are padded up to it
	EtherMinPayload = 46
	// EtherMaxPayload classic ethernet mtu
	EtherMaxPayload = 1500
	// EtherTypeMin smallest value treated as a type field
	EtherTypeMin = 0x0600
)

// MACAddr ethernet mac address
type MACAddr [6]byte

var (
	BroadcastMAC = MACAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	ZeroMAC      = MACAddr{}
)

func (addr MACAddr) String() string {
	return fmt.Sprintf(
		"%02x:%02x:%02x:%02x:%02x:%02x",
		addr[0], addr[1], addr[2],
		addr[3], addr[4], addr[5],
	)
}

// IsBroadcast checks ff:ff:ff:ff:ff:ff
func (addr MACAddr) IsBroadcast() bool {
	return addr == BroadcastMAC
}

// EtherType ethernet type field
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
)

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "ip"
	case EtherTypeARP:
		return "arp"
	default:
		return fmt.Sprintf("ether(%#04x)", uint16(t))
	}
}

// EtherHeader ethernet header
type EtherHeader struct {
	// Destination host address
	DstHost MACAddr
	// Source host address
	SrcHost MACAddr
	// IP? ARP? RARP? etc
	Type EtherType
}

func (hdr *EtherHeader) Unpack(buff []byte) error {
	if len(buff) < EtherHeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	if err := ReadBytes(hdr.DstHost[:], buff, &offset); err != nil {
		return err
	}
	if err := ReadBytes(hdr.SrcHost[:], buff, &offset); err != nil {
		return err
	}
	hdr.Type = EtherType(N2HShort(buff, &offset))

	return nil
}

func (hdr *EtherHeader) Pack(buff []byte) error {
	if len(buff) < EtherHeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	offset += copy(buff[offset:], hdr.DstHost[:])
	offset += copy(buff[offset:], hdr.SrcHost[:])
	H2NShort(buff, &offset, uint16(hdr.Type))

	return nil
}

// IPv4Addr ip v4 address
type IPv4Addr [4]byte

func (addr IPv4Addr) String() string {
	return fmt.Sprintf(
		"%d.%d.%d.%d",
		addr[0], addr[1], addr[2], addr[3],
	)
}

// ARP hardware type & opcodes
const (
	ARPHwEther  uint16 = 1
	ARPRequest  uint16 = 1
	ARPReply    uint16 = 2
	ARPHwLen           = 6
	ARPProtoLen        = 4
)

// ARPPacket arp packet for ipv4 over ethernet
type ARPPacket struct {
	// Hardware type
	HwType uint16
	// Protocol type
	ProtoType EtherType
	// Hardware address length
	HwLen uint8
	// Protocol address length
	ProtoLen uint8
	// Request or reply
	Opcode uint16

	SenderMAC MACAddr
	SenderIP  IPv4Addr
	TargetMAC MACAddr
	TargetIP  IPv4Addr
}

func (pkt *ARPPacket) Unpack(buff []byte) error {
	if len(buff) < ARPPacketSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	pkt.HwType = N2HShort(buff, &offset)
	pkt.ProtoType = EtherType(N2HShort(buff, &offset))
	pkt.HwLen = NByte(buff, &offset)
	pkt.ProtoLen = NByte(buff, &offset)
	pkt.Opcode = N2HShort(buff, &offset)

	for _, field := range [][]byte{
		pkt.SenderMAC[:], pkt.SenderIP[:], pkt.TargetMAC[:], pkt.TargetIP[:],
	} {
		if err := ReadBytes(field, buff, &offset); err != nil {
			return err
		}
	}

	return nil
}

func (pkt *ARPPacket) Pack(buff []byte) error {
	if len(buff) < ARPPacketSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	H2NShort(buff, &offset, pkt.HwType)
	H2NShort(buff, &offset, uint16(pkt.ProtoType))
	HByte(buff, &offset, pkt.HwLen)
	HByte(buff, &offset, pkt.ProtoLen)
	H2NShort(buff, &offset, pkt.Opcode)

	offset += copy(buff[offset:], pkt.SenderMAC[:])
	offset += copy(buff[offset:], pkt.SenderIP[:])
	offset += copy(buff[offset:], pkt.TargetMAC[:])
	copy(buff[offset:], pkt.TargetIP[:])

	return nil
}

// TransProto transport protocol
type TransProto byte

const (
	ICMP TransProto = 0x01 // icmp
	TCP  TransProto = 0x06 // tcp
	UDP  TransProto = 0x11 // udp
)

func (p TransProto) String() string {
	switch p {
	case ICMP:
		return "icmp"
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return fmt.Sprintf("proto(%d)", byte(p))
	}
}

const (
	IPVersion4 = 4
	// IP flags in the Flags/Offset short
	IPDontFragment uint16 = 0x4000
	IPMoreFragment uint16 = 0x2000
	IPOffsetMask   uint16 = 0x1fff
	// IPDefaultTTL ttl for outbound datagrams
	IPDefaultTTL = 64
	// IPChecksumOffset checksum position inside the header
	IPChecksumOffset = 10
)

// IPv4Header ip v4 header
type IPv4Header struct {
	// Version (4 bits) + Internet header length (4 bits)
	VerIHL uint8
	// Type of service
	TOS uint8
	// Total length
	TotalLength uint16
	// Identification
	Identification uint16
	// Flags (3 bits) + Fragment offset (13 bits)
	Flags uint16
	// Time to live
	TTL uint8
	// Protocol
	Protocol TransProto
	// Header checksum
	CRC uint16
	// Source address
	SrcAddr IPv4Addr
	// Destination address
	DstAddr IPv4Addr
}

func (hdr *IPv4Header) Version() int {
	return int(hdr.VerIHL >> 4)
}

// IHL header length in 32 bit words
func (hdr *IPv4Header) IHL() int {
	return int(hdr.VerIHL & 0xf)
}

func (hdr *IPv4Header) PayloadOffset() int {
	return hdr.IHL() * 4
}

func (hdr *IPv4Header) DontFragment() bool {
	return hdr.Flags&IPDontFragment != 0
}

func (hdr *IPv4Header) MoreFragments() bool {
	return hdr.Flags&IPMoreFragment != 0
}

// FragmentOffset offset in bytes
func (hdr *IPv4Header) FragmentOffset() int {
	return int(hdr.Flags&IPOffsetMask) << 3
}

func (hdr *IPv4Header) Unpack(buff []byte) error {
	buffSize := len(buff)
	if buffSize < IPv4HeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	hdr.VerIHL = NByte(buff, &offset)
	hdr.TOS = NByte(buff, &offset)
	hdr.TotalLength = N2HShort(buff, &offset)
	hdr.Identification = N2HShort(buff, &offset)
	hdr.Flags = N2HShort(buff, &offset)
	hdr.TTL = NByte(buff, &offset)
	hdr.Protocol = TransProto(NByte(buff, &offset))
	hdr.CRC = N2HShort(buff, &offset)

	offset += copy(hdr.SrcAddr[:], buff[offset:])
	copy(hdr.DstAddr[:], buff[offset:])

	return nil
}

func (hdr *IPv4Header) Pack(buff []byte) error {
	if len(buff) < IPv4HeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	HByte(buff, &offset, hdr.VerIHL)
	HByte(buff, &offset, hdr.TOS)
	H2NShort(buff, &offset, hdr.TotalLength)
	H2NShort(buff, &offset, hdr.Identification)
	H2NShort(buff, &offset, hdr.Flags)
	HByte(buff, &offset, hdr.TTL)
	HByte(buff, &offset, byte(hdr.Protocol))
	H2NShort(buff, &offset, hdr.CRC)

	offset += copy(buff[offset:], hdr.SrcAddr[:])
	copy(buff[offset:], hdr.DstAddr[:])

	return nil
}

// ICMP types & codes
const (
	ICMPEchoReply   uint8 = 0
	ICMPUnreachable uint8 = 3
	ICMPEchoRequest uint8 = 8

	ICMPCodeProtoUnreach uint8 = 2
	ICMPCodePortUnreach  uint8 = 3
)

// ICMPHeader icmp header, id & seq are only meaningful for echo
type ICMPHeader struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	ID       uint16
	Seq      uint16
}

func (hdr *ICMPHeader) Unpack(buff []byte) error {
	if len(buff) < ICMPHeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	hdr.Type = NByte(buff, &offset)
	hdr.Code = NByte(buff, &offset)
	hdr.Checksum = N2HShort(buff, &offset)
	hdr.ID = N2HShort(buff, &offset)
	hdr.Seq = N2HShort(buff, &offset)

	return nil
}

func (hdr *ICMPHeader) Pack(buff []byte) error {
	if len(buff) < ICMPHeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	HByte(buff, &offset, hdr.Type)
	HByte(buff, &offset, hdr.Code)
	H2NShort(buff, &offset, hdr.Checksum)
	H2NShort(buff, &offset, hdr.ID)
	H2NShort(buff, &offset, hdr.Seq)

	return nil
}

// UDPHeader udp header
type UDPHeader struct {
	// source port
	SrcPort uint16
	// destination port
	DstPort uint16
	// Datagram length
	Len uint16
	// Checksum
	CRC uint16
}

func (hdr *UDPHeader) Unpack(buff []byte) error {
	if len(buff) < UDPHeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	hdr.SrcPort = N2HShort(buff, &offset)
	hdr.DstPort = N2HShort(buff, &offset)
	hdr.Len = N2HShort(buff, &offset)
	hdr.CRC = N2HShort(buff, &offset)

	return nil
}

func (hdr *UDPHeader) Pack(buff []byte) error {
	if len(buff) < UDPHeaderSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	H2NShort(buff, &offset, hdr.SrcPort)
	H2NShort(buff, &offset, hdr.DstPort)
	H2NShort(buff, &offset, hdr.Len)
	H2NShort(buff, &offset, hdr.CRC)

	return nil
}

// UDPPseudoHeader only used for checksum, never sent
type UDPPseudoHeader struct {
	SrcAddr  IPv4Addr
	DstAddr  IPv4Addr
	Zero     uint8
	Protocol TransProto
	Len      uint16
}

func (hdr *UDPPseudoHeader) Pack(buff []byte) error {
	if len(buff) < UDPPseudoHdrSize {
		return errors.WithStack(ErrInsufficientData)
	}

	offset := 0

	offset += copy(buff[offset:], hdr.SrcAddr[:])
	offset += copy(buff[offset:], hdr.DstAddr[:])
	HByte(buff, &offset, 0)
	HByte(buff, &offset, byte(hdr.Protocol))
	H2NShort(buff, &offset, hdr.Len)

	return nil
}

package core

import (
	"bytes"
	"net"
	"strconv"

	"github.com/valyala/bytebufferpool"

	"github.com/frozenpine/stack4go"
)

// Session transport endpoints of one received datagram.
type Session struct {
	Proto   stack4go.TransProto
	SrcIP   stack4go.IPv4Addr
	SrcPort uint16
	DstIP   stack4go.IPv4Addr
	DstPort uint16
}

func (s *Session) SrcAddr() net.Addr {
	switch s.Proto {
	case stack4go.TCP:
		return &net.TCPAddr{IP: net.IP(s.SrcIP[:]), Port: int(s.SrcPort)}
	case stack4go.UDP:
		return &net.UDPAddr{IP: net.IP(s.SrcIP[:]), Port: int(s.SrcPort)}
	default:
		return nil
	}
}

func (s *Session) DstAddr() net.Addr {
	switch s.Proto {
	case stack4go.TCP:
		return &net.TCPAddr{IP: net.IP(s.DstIP[:]), Port: int(s.DstPort)}
	case stack4go.UDP:
		return &net.UDPAddr{IP: net.IP(s.DstIP[:]), Port: int(s.DstPort)}
	default:
		return nil
	}
}

// Reverse session for answering the sender
func (s *Session) Reverse() *Session {
	return &Session{
		Proto:   s.Proto,
		SrcIP:   s.DstIP,
		SrcPort: s.DstPort,
		DstIP:   s.SrcIP,
		DstPort: s.SrcPort,
	}
}

// Key compact session identity, usable as map key
func (s *Session) Key() string {
	buff := bytebufferpool.Get()
	defer bytebufferpool.Put(buff)

	buff.WriteString(s.Proto.String())
	buff.WriteByte('|')
	buff.WriteString(s.SrcIP.String())
	buff.WriteByte(':')
	buff.WriteString(strconv.Itoa(int(s.SrcPort)))
	buff.WriteByte('|')
	buff.WriteString(s.DstIP.String())
	buff.WriteByte(':')
	buff.WriteString(strconv.Itoa(int(s.DstPort)))

	return buff.String()
}

func (s *Session) String() string {
	buff := bytes.NewBufferString("[")
	buff.WriteString(s.Proto.String())
	buff.WriteString("] ")
	buff.WriteString(s.SrcIP.String())
	buff.WriteRune(':')
	buff.WriteString(strconv.Itoa(int(s.SrcPort)))
	buff.WriteString(" -> ")
	buff.WriteString(s.DstIP.String())
	buff.WriteRune(':')
	buff.WriteString(strconv.Itoa(int(s.DstPort)))

	return buff.String()
}

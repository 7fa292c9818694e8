package icmp

import (
	"net"
	"time"

	"github.com/probekit/icmp-probe-tool/pkg/rawsock"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	DefaultDataSize = 64
	DefaultTimeout  = time.Second
	DefaultInterval = time.Second
)

// Proto returns the ICMP protocol number used to parse replies received
// on a socket of the given family.
func Proto(family rawsock.Family) int {
	if family == rawsock.V6 {
		return ipv6.ICMPType(0).Protocol()
	}
	return ipv4.ICMPType(0).Protocol()
}

// EchoRequest builds a marshaled echo request for the socket family.
func EchoRequest(family rawsock.Family, ident, seq int, data []byte) ([]byte, error) {
	var typ icmp.Type = ipv4.ICMPTypeEcho
	if family == rawsock.V6 {
		typ = ipv6.ICMPTypeEchoRequest
	}
	return (&icmp.Message{
		Type: typ, Code: 0,
		Body: &icmp.Echo{
			ID:   ident,
			Seq:  seq,
			Data: data,
		},
	}).Marshal(nil)
}

// StripIPv4Header returns the source address and the header length of
// the IPv4 header a raw v4 socket leaves in front of the ICMP payload.
// Raw v6 sockets deliver the payload without an IP header.
func StripIPv4Header(b []byte) (net.IP, int) {
	if len(b) < 20 {
		return nil, 0
	}
	l := int(b[0]&0x0f) << 2
	if b[0]>>4 != 4 {
		return nil, 0
	}
	src := net.IPv4(b[12], b[13], b[14], b[15])
	return src, l
}

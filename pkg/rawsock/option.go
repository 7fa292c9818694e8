package rawsock

import (
	"golang.org/x/sys/unix"
)

// Family is the address family a socket was opened with. Only the two
// values below exist; Connect derives one of them from the peer address
// and it never changes for the lifetime of the socket.
type Family int

const (
	V4 = Family(unix.AF_INET)
	V6 = Family(unix.AF_INET6)
)

// IPV6_TCLASS is missing from golang.org/x/sys/unix on some of the BSDs,
// the value is the same everywhere it exists.
const ipv6TrafficClass = 67

func (f Family) String() string {
	if f == V6 {
		return "ipv6"
	}
	return "ipv4"
}

// proto returns the raw-socket protocol number for the family. ICMP and
// ICMPv6 are distinct protocols with distinct numbers (1 and 58).
func (f Family) proto() int {
	if f == V6 {
		return unix.IPPROTO_ICMPV6
	}
	return unix.IPPROTO_ICMP
}

// hopLimit resolves the (level, option) pair for the TTL / hop limit.
func (f Family) hopLimit() (int, int) {
	if f == V6 {
		return unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS
	}
	return unix.IPPROTO_IP, unix.IP_TTL
}

// trafficClass resolves the (level, option) pair for the type-of-service
// byte (v4) or traffic class (v6).
func (f Family) trafficClass() (int, int) {
	if f == V6 {
		return unix.IPPROTO_IPV6, ipv6TrafficClass
	}
	return unix.IPPROTO_IP, unix.IP_TOS
}

// broadcastOption is family independent.
func broadcastOption() (int, int) {
	return unix.SOL_SOCKET, unix.SO_BROADCAST
}

package rawsock

import (
	"net"

	"golang.org/x/sys/unix"
)

// encodeSockaddr converts an IP address into the native sockaddr the
// kernel expects, together with the family it implies. A 4-in-6 mapped
// address is treated as v4. Returns a nil sockaddr for an invalid IP.
func encodeSockaddr(ip net.IP) (unix.Sockaddr, Family) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{}
		copy(sa.Addr[:], ip4)
		return sa, V4
	}
	if ip16 := ip.To16(); ip16 != nil {
		sa := &unix.SockaddrInet6{}
		copy(sa.Addr[:], ip16)
		return sa, V6
	}
	return nil, 0
}

// decodeSockaddr converts a native sockaddr written by a receive call
// back into an IP address. Only meaningful for sockaddrs produced by the
// kernel for the family the socket was opened with; anything else
// decodes to nil.
func decodeSockaddr(sa unix.Sockaddr) net.IP {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return ip
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return ip
	}
	return nil
}

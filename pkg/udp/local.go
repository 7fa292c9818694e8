package udp

import (
	"fmt"
	"net"
)

// GetLocalAddr reports which local address the kernel would route
// packets to rAddr from. No packets are sent, udp connect only picks a
// route.
func GetLocalAddr(rAddr string) (net.IP, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(rAddr, "80"))
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return nil, err
	}
	lAddr := net.ParseIP(host)
	if lAddr == nil {
		return nil, fmt.Errorf("local ip addr not found")
	}
	return lAddr, nil
}

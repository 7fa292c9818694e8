// Package rawsock opens raw ICMP sockets bound to a single peer and
// exposes the handful of socket options a ping or traceroute tool needs.
// Every operation is a blocking syscall; deadlines, retries and packet
// framing belong to the layers above.
package rawsock

import (
	"fmt"
	"net"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// Syscall entry points, swappable in tests.
var (
	socketFunc        = unix.Socket
	closeFunc         = unix.Close
	sendtoFunc        = unix.Sendto
	recvfromFunc      = unix.Recvfrom
	setsockoptIntFunc = unix.SetsockoptInt
	getsockoptIntFunc = unix.GetsockoptInt
)

// Socket is a raw ICMP socket bound to a fixed peer. It owns exactly one
// descriptor, released exactly once by Close or by the finalizer. A
// Socket holds no locks; use it from one goroutine at a time. Distinct
// Sockets are independent.
type Socket struct {
	fd     int
	family Family
	peer   unix.Sockaddr
}

// Connect opens a raw ICMP socket for the family of addr and fixes addr
// as the destination of every Send. Raw sockets normally require
// elevated privilege; the kernel's refusal surfaces here as the returned
// error.
func Connect(addr net.IP) (*Socket, error) {
	peer, family := encodeSockaddr(addr)
	if peer == nil {
		return nil, fmt.Errorf("rawsock: invalid address %q", addr)
	}
	fd, err := socketFunc(int(family), unix.SOCK_RAW|sockCloexec, family.proto())
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	ensureCloexec(fd)
	s := &Socket{fd: fd, family: family, peer: peer}
	runtime.SetFinalizer(s, (*Socket).Close)
	return s, nil
}

// Family returns the address family the socket was opened with.
func (s *Socket) Family() Family {
	return s.family
}

// FD returns the underlying descriptor, for readability waits such as
// select(2). The caller must not close it.
func (s *Socket) FD() int {
	return s.fd
}

// Recv reads up to len(b) bytes from the socket, blocking until a
// datagram arrives. A receive interrupted by a signal is reported as a
// zero-length read, not an error; callers must tolerate spurious empty
// reads and retry.
func (s *Socket) Recv(b []byte) (int, error) {
	n, _, err := recvfromFunc(s.fd, b, 0)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("recvfrom", err)
	}
	return n, nil
}

// RecvFrom is Recv plus the sender's address. On an interrupted read the
// sender was never written by the kernel and is returned as nil; do not
// trust the address of a zero-length result.
func (s *Socket) RecvFrom(b []byte) (int, net.IP, error) {
	n, from, err := recvfromFunc(s.fd, b, 0)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil, nil
		}
		return 0, nil, os.NewSyscallError("recvfrom", err)
	}
	return n, decodeSockaddr(from), nil
}

// Send writes all of b to the peer fixed at Connect. Unlike the receive
// path, an interrupting signal is a real error: an interrupted send may
// have changed what is on the wire and must not be hidden.
func (s *Socket) Send(b []byte) (int, error) {
	if err := sendtoFunc(s.fd, b, 0, s.peer); err != nil {
		return 0, os.NewSyscallError("sendto", err)
	}
	return len(b), nil
}

// SetTTL sets the TTL (v4) or unicast hop limit (v6) for outgoing
// packets.
func (s *Socket) SetTTL(ttl int) error {
	level, opt := s.family.hopLimit()
	return os.NewSyscallError("setsockopt", setsockoptIntFunc(s.fd, level, opt, ttl))
}

// TTL reads back the TTL / hop limit from the kernel.
func (s *Socket) TTL() (int, error) {
	level, opt := s.family.hopLimit()
	v, err := getsockoptIntFunc(s.fd, level, opt)
	return v, os.NewSyscallError("getsockopt", err)
}

// SetBroadcast enables or disables sending to broadcast addresses.
func (s *Socket) SetBroadcast(broadcast bool) error {
	level, opt := broadcastOption()
	v := 0
	if broadcast {
		v = 1
	}
	return os.NewSyscallError("setsockopt", setsockoptIntFunc(s.fd, level, opt, v))
}

// Broadcast reads back the broadcast permission.
func (s *Socket) Broadcast() (bool, error) {
	level, opt := broadcastOption()
	v, err := getsockoptIntFunc(s.fd, level, opt)
	return v != 0, os.NewSyscallError("getsockopt", err)
}

// SetQOS sets the type-of-service byte (v4) or traffic class (v6) for
// outgoing packets.
func (s *Socket) SetQOS(qos byte) error {
	level, opt := s.family.trafficClass()
	return os.NewSyscallError("setsockopt", setsockoptIntFunc(s.fd, level, opt, int(qos)))
}

// QOS reads back the type-of-service / traffic class byte.
func (s *Socket) QOS() (byte, error) {
	level, opt := s.family.trafficClass()
	v, err := getsockoptIntFunc(s.fd, level, opt)
	return byte(v), os.NewSyscallError("getsockopt", err)
}

// Close releases the descriptor. Safe to call more than once; only the
// first call closes. The close error is discarded, nothing useful can be
// done with it at teardown.
func (s *Socket) Close() {
	if s.fd < 0 {
		return
	}
	closeFunc(s.fd)
	s.fd = -1
	runtime.SetFinalizer(s, nil)
}

package rawsock

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"golang.org/x/sys/unix"
)

// fakeOS stands in for the kernel behind the syscall hooks.
type fakeOS struct {
	nextFD int

	domain, typ, proto int
	socketErr          error

	closed []int

	opts map[[3]int]int

	sent    [][]byte
	sendErr error

	recvData []byte
	recvFrom unix.Sockaddr
	recvErr  error
}

func installFakeOS(t *testing.T) *fakeOS {
	t.Helper()
	f := &fakeOS{nextFD: 100, opts: map[[3]int]int{}}

	origSocket := socketFunc
	origClose := closeFunc
	origSendto := sendtoFunc
	origRecvfrom := recvfromFunc
	origSet := setsockoptIntFunc
	origGet := getsockoptIntFunc
	t.Cleanup(func() {
		socketFunc = origSocket
		closeFunc = origClose
		sendtoFunc = origSendto
		recvfromFunc = origRecvfrom
		setsockoptIntFunc = origSet
		getsockoptIntFunc = origGet
	})

	socketFunc = func(domain, typ, proto int) (int, error) {
		if f.socketErr != nil {
			return -1, f.socketErr
		}
		f.domain, f.typ, f.proto = domain, typ, proto
		f.nextFD++
		return f.nextFD, nil
	}
	closeFunc = func(fd int) error {
		f.closed = append(f.closed, fd)
		return nil
	}
	sendtoFunc = func(fd int, p []byte, flags int, to unix.Sockaddr) error {
		if f.sendErr != nil {
			return f.sendErr
		}
		b := make([]byte, len(p))
		copy(b, p)
		f.sent = append(f.sent, b)
		return nil
	}
	recvfromFunc = func(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
		if f.recvErr != nil {
			return 0, nil, f.recvErr
		}
		n := copy(p, f.recvData)
		return n, f.recvFrom, nil
	}
	setsockoptIntFunc = func(fd, level, opt, value int) error {
		f.opts[[3]int{fd, level, opt}] = value
		return nil
	}
	getsockoptIntFunc = func(fd, level, opt int) (int, error) {
		return f.opts[[3]int{fd, level, opt}], nil
	}
	return f
}

func TestConnectFamily(t *testing.T) {
	tests := []struct {
		addr   string
		domain int
		proto  int
		family Family
	}{
		{"192.0.2.1", unix.AF_INET, unix.IPPROTO_ICMP, V4},
		{"127.0.0.1", unix.AF_INET, unix.IPPROTO_ICMP, V4},
		{"::ffff:192.0.2.1", unix.AF_INET, unix.IPPROTO_ICMP, V4},
		{"2001:db8::1", unix.AF_INET6, unix.IPPROTO_ICMPV6, V6},
		{"::1", unix.AF_INET6, unix.IPPROTO_ICMPV6, V6},
	}
	for _, tt := range tests {
		f := installFakeOS(t)
		s, err := Connect(net.ParseIP(tt.addr))
		if err != nil {
			t.Fatalf("Connect(%s) error = %v", tt.addr, err)
		}
		if f.domain != tt.domain {
			t.Errorf("Connect(%s) domain = %d, want %d", tt.addr, f.domain, tt.domain)
		}
		if f.proto != tt.proto {
			t.Errorf("Connect(%s) proto = %d, want %d", tt.addr, f.proto, tt.proto)
		}
		if f.typ&unix.SOCK_RAW == 0 {
			t.Errorf("Connect(%s) type = %d, want SOCK_RAW set", tt.addr, f.typ)
		}
		if s.Family() != tt.family {
			t.Errorf("Connect(%s) family = %v, want %v", tt.addr, s.Family(), tt.family)
		}
		s.Close()
	}
}

func TestConnectInvalidAddress(t *testing.T) {
	installFakeOS(t)
	if _, err := Connect(nil); err == nil {
		t.Fatal("Connect(nil) error = nil, want error")
	}
	if _, err := Connect(net.IP{1, 2}); err == nil {
		t.Fatal("Connect(short ip) error = nil, want error")
	}
}

func TestConnectPermissionDenied(t *testing.T) {
	f := installFakeOS(t)
	f.socketErr = unix.EPERM
	_, err := Connect(net.ParseIP("192.0.2.1"))
	if err == nil {
		t.Fatal("Connect error = nil, want EPERM")
	}
	if !errors.Is(err, unix.EPERM) {
		t.Errorf("Connect error = %v, want EPERM", err)
	}
	if len(f.closed) != 0 {
		t.Errorf("close called %d times after failed socket(), want 0", len(f.closed))
	}
}

func TestRecvInterrupted(t *testing.T) {
	f := installFakeOS(t)
	s := mustConnect(t, "192.0.2.1")
	f.recvErr = unix.EINTR
	n, err := s.Recv(make([]byte, 16))
	if err != nil {
		t.Fatalf("Recv on EINTR error = %v, want nil", err)
	}
	if n != 0 {
		t.Errorf("Recv on EINTR = %d bytes, want 0", n)
	}
}

func TestRecvFromInterrupted(t *testing.T) {
	f := installFakeOS(t)
	s := mustConnect(t, "192.0.2.1")
	f.recvErr = unix.EINTR
	n, from, err := s.RecvFrom(make([]byte, 16))
	if err != nil {
		t.Fatalf("RecvFrom on EINTR error = %v, want nil", err)
	}
	if n != 0 || from != nil {
		t.Errorf("RecvFrom on EINTR = (%d, %v), want (0, nil)", n, from)
	}
}

func TestRecvError(t *testing.T) {
	f := installFakeOS(t)
	s := mustConnect(t, "192.0.2.1")
	f.recvErr = unix.EBADF
	if _, err := s.Recv(make([]byte, 16)); !errors.Is(err, unix.EBADF) {
		t.Errorf("Recv error = %v, want EBADF", err)
	}
}

func TestSendInterrupted(t *testing.T) {
	f := installFakeOS(t)
	s := mustConnect(t, "192.0.2.1")
	f.sendErr = unix.EINTR
	if _, err := s.Send([]byte{1, 2, 3}); !errors.Is(err, unix.EINTR) {
		t.Errorf("Send on EINTR error = %v, want EINTR propagated", err)
	}
}

func TestSendRecvLoopback(t *testing.T) {
	f := installFakeOS(t)
	s := mustConnect(t, "127.0.0.1")

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := s.Send(payload)
	if err != nil {
		t.Fatalf("Send error = %v", err)
	}
	if n != len(payload) {
		t.Errorf("Send = %d, want %d", n, len(payload))
	}

	f.recvData = f.sent[0]
	f.recvFrom = &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}
	buf := make([]byte, 64)
	n, from, err := s.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom error = %v", err)
	}
	if n != len(payload) || !bytes.Equal(buf[:n], payload) {
		t.Errorf("RecvFrom = %d bytes %v, want %v", n, buf[:n], payload)
	}
	if !from.Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("RecvFrom sender = %v, want 127.0.0.1", from)
	}
}

func TestCloseExactlyOnce(t *testing.T) {
	f := installFakeOS(t)
	const n = 5
	for i := 0; i < n; i++ {
		s := mustConnect(t, "192.0.2.1")
		if i%2 == 0 {
			// An error during use must not change teardown.
			f.sendErr = unix.ENETUNREACH
			s.Send([]byte{0})
			f.sendErr = nil
		}
		s.Close()
		s.Close()
	}
	if len(f.closed) != n {
		t.Errorf("close called %d times for %d sockets, want %d", len(f.closed), n, n)
	}
}

func mustConnect(t *testing.T, addr string) *Socket {
	t.Helper()
	s, err := Connect(net.ParseIP(addr))
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", addr, err)
	}
	return s
}

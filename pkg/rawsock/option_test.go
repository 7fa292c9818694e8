package rawsock

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestOptionDispatch(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		set   func(*Socket) error
		level int
		opt   int
	}{
		{"ttl v4", "192.0.2.1", func(s *Socket) error { return s.SetTTL(7) },
			unix.IPPROTO_IP, unix.IP_TTL},
		{"ttl v6", "2001:db8::1", func(s *Socket) error { return s.SetTTL(7) },
			unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS},
		{"qos v4", "192.0.2.1", func(s *Socket) error { return s.SetQOS(0x10) },
			unix.IPPROTO_IP, unix.IP_TOS},
		{"qos v6", "2001:db8::1", func(s *Socket) error { return s.SetQOS(0x10) },
			unix.IPPROTO_IPV6, ipv6TrafficClass},
		{"broadcast v4", "192.0.2.1", func(s *Socket) error { return s.SetBroadcast(true) },
			unix.SOL_SOCKET, unix.SO_BROADCAST},
		{"broadcast v6", "2001:db8::1", func(s *Socket) error { return s.SetBroadcast(true) },
			unix.SOL_SOCKET, unix.SO_BROADCAST},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := installFakeOS(t)
			s := mustConnect(t, tt.addr)
			if err := tt.set(s); err != nil {
				t.Fatalf("set error = %v", err)
			}
			key := [3]int{s.FD(), tt.level, tt.opt}
			if _, ok := f.opts[key]; !ok {
				t.Errorf("option written at %v, want (level=%d, opt=%d); got %v",
					key, tt.level, tt.opt, f.opts)
			}
		})
	}
}

func TestTTLRoundTrip(t *testing.T) {
	for _, addr := range []string{"192.0.2.1", "2001:db8::1"} {
		installFakeOS(t)
		s := mustConnect(t, addr)
		if err := s.SetTTL(33); err != nil {
			t.Fatalf("SetTTL(%s) error = %v", addr, err)
		}
		ttl, err := s.TTL()
		if err != nil {
			t.Fatalf("TTL(%s) error = %v", addr, err)
		}
		if ttl != 33 {
			t.Errorf("TTL(%s) = %d, want 33", addr, ttl)
		}
	}
}

func TestBroadcastToggle(t *testing.T) {
	installFakeOS(t)
	s := mustConnect(t, "192.0.2.1")
	if err := s.SetBroadcast(true); err != nil {
		t.Fatalf("SetBroadcast(true) error = %v", err)
	}
	if b, _ := s.Broadcast(); !b {
		t.Error("Broadcast() = false after SetBroadcast(true)")
	}
	if err := s.SetBroadcast(false); err != nil {
		t.Fatalf("SetBroadcast(false) error = %v", err)
	}
	if b, _ := s.Broadcast(); b {
		t.Error("Broadcast() = true after SetBroadcast(false)")
	}
}

func TestQOSRoundTrip(t *testing.T) {
	installFakeOS(t)
	s := mustConnect(t, "2001:db8::1")
	if err := s.SetQOS(0xb8); err != nil {
		t.Fatalf("SetQOS error = %v", err)
	}
	qos, err := s.QOS()
	if err != nil {
		t.Fatalf("QOS error = %v", err)
	}
	if qos != 0xb8 {
		t.Errorf("QOS = %#x, want 0xb8", qos)
	}
}

func TestOptionFailureSurfaced(t *testing.T) {
	installFakeOS(t)
	s := mustConnect(t, "192.0.2.1")
	orig := setsockoptIntFunc
	setsockoptIntFunc = func(fd, level, opt, value int) error { return unix.ENOPROTOOPT }
	defer func() { setsockoptIntFunc = orig }()
	if err := s.SetTTL(1); err == nil {
		t.Error("SetTTL error = nil, want ENOPROTOOPT surfaced")
	}
}

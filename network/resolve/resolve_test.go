package resolve

import (
	"net"
	"testing"
)

func TestLookupIPLiteral(t *testing.T) {
	r := NewResolver(NameserverOption("192.0.2.53"))
	for _, a := range []string{"127.0.0.1", "2001:db8::1"} {
		ips, err := r.LookupIP(a)
		if err != nil {
			t.Fatalf("LookupIP(%s) error = %v", a, err)
		}
		if len(ips) != 1 || !ips[0].Equal(net.ParseIP(a)) {
			t.Errorf("LookupIP(%s) = %v, want [%s]", a, ips, a)
		}
	}
}

func TestNameserverAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"8.8.8.8", "8.8.8.8:53"},
		{"2001:4860:4860::8888", "[2001:4860:4860::8888]:53"},
		{"8.8.8.8:5353", "8.8.8.8:5353"},
		{"dns.example.net:53", "dns.example.net:53"},
	}
	for _, tt := range tests {
		if got := nameserverAddr(tt.in); got != tt.want {
			t.Errorf("nameserverAddr(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

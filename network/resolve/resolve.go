// Package resolve turns probe targets into IP addresses. With an
// explicit nameserver it queries A and AAAA records directly over
// github.com/miekg/dns, otherwise it defers to the system resolver.
package resolve

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/probekit/icmp-probe-tool/network"
)

type Resolver struct {
	nameserver string
	net        string
	timeout    time.Duration
}

type Option func(*Resolver)

// NameserverOption makes the resolver query the given server instead of
// the system resolver. A bare IP gets port 53.
func NameserverOption(nameserver string) Option {
	return func(r *Resolver) {
		r.nameserver = nameserver
	}
}

func NetworkOption(netw string) Option {
	return func(r *Resolver) {
		r.net = netw
	}
}

func TimeoutOption(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{net: "udp", timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LookupIP resolves host to its A and AAAA addresses. IP literals pass
// through without a query.
func (r *Resolver) LookupIP(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if r.nameserver == "" {
		return net.LookupIP(host)
	}
	var ips []net.IP
	for _, t := range []uint16{dns.TypeA, dns.TypeAAAA} {
		answer, err := r.query(host, t)
		if err != nil {
			return nil, err
		}
		ips = append(ips, answer...)
	}
	if len(ips) == 0 {
		return nil, network.ErrNoAddress
	}
	return ips, nil
}

func (r *Resolver) query(host string, t uint16) ([]net.IP, error) {
	c := &dns.Client{
		Net:     r.net,
		Timeout: r.timeout,
	}
	m := new(dns.Msg)
	m.Compress = true
	m.SetQuestion(dns.Fqdn(host), t)
	m.RecursionDesired = true
	reply, _, err := c.Exchange(m, nameserverAddr(r.nameserver))
	if err != nil {
		return nil, err
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("failed to get an valid answer %v %s", reply.Rcode, dns.RcodeToString[reply.Rcode])
	}
	var ips []net.IP
	for _, rr := range reply.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			ips = append(ips, rr.A)
		case *dns.AAAA:
			ips = append(ips, rr.AAAA)
		}
	}
	return ips, nil
}

// nameserverAddr appends the default DNS port when the nameserver is a
// bare IP.
func nameserverAddr(nameserver string) string {
	if net.ParseIP(nameserver) != nil {
		return net.JoinHostPort(nameserver, "53")
	}
	return nameserver
}

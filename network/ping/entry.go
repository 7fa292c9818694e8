package ping

import (
	"fmt"
	"math"
	"net"
	"time"

	"github.com/probekit/icmp-probe-tool/network"
	"github.com/probekit/icmp-probe-tool/network/resolve"
	"github.com/probekit/icmp-probe-tool/pkg/icmp"
	"github.com/probekit/icmp-probe-tool/pkg/rawsock"
)

type EVType int

const (
	DefaultCount = 1

	EVPing    EVType = 0
	EVTimeout EVType = 1

	ResultUnUsed = time.Duration(0)
	ResultError  = time.Duration(-1)
)

type reply struct {
	elapsed  time.Duration
	sendTime time.Time
}

type entry struct {
	host string
	ip   net.IP
	sock *rawsock.Socket

	dataSize int
	count    int
	timeout  time.Duration
	interval time.Duration

	evTime time.Time
	index  int
	send   int
	recv   int
	typ    EVType

	result []*reply

	// running mean / M2 for the rtt standard deviation
	oldMean float64
	m2      float64
}

func (e entry) Dev() float64 {
	if e.recv <= 0 {
		return 0
	}
	return math.Sqrt(e.m2 / float64(e.recv))
}

func (e entry) String() string {
	return fmt.Sprintf("<entry %s[%d], send:%d>", e.host, e.index, e.send)
}

func newEntry(r *resolve.Resolver, host string, opts ...AddressOption) (*entry, error) {
	ips, err := r.LookupIP(host)
	if err != nil {
		return nil, err
	}
	e := &entry{host: host,
		dataSize: icmp.DefaultDataSize,
		count:    DefaultCount,
		interval: icmp.DefaultInterval,
		timeout:  icmp.DefaultTimeout,
		typ:      EVPing,
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			e.ip = ip4
		} else {
			e.ip = ip.To16()
		}
		if e.ip != nil {
			break
		}
	}
	if e.ip == nil {
		return nil, network.ErrNoAddress
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type AddressOption func(*entry)

func TimeoutOption(timeout time.Duration) AddressOption {
	return func(e *entry) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func AddressIntervalOption(interval time.Duration) AddressOption {
	return func(e *entry) {
		e.interval = interval
	}
}

func CountOpt(count int) AddressOption {
	return func(e *entry) {
		if count > 0 {
			e.count = count
		}
	}
}

func DataSizeOption(size int) AddressOption {
	return func(e *entry) {
		if size >= 0 {
			e.dataSize = size
		}
	}
}

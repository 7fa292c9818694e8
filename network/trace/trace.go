// Package trace walks the route to a target by sending echo requests
// with increasing hop limits on a peer-bound raw socket and classifying
// the TimeExceeded and EchoReply answers.
package trace

import (
	"encoding/binary"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/probekit/icmp-probe-tool/network"
	"github.com/probekit/icmp-probe-tool/network/resolve"
	icmp2 "github.com/probekit/icmp-probe-tool/pkg/icmp"
	"github.com/probekit/icmp-probe-tool/pkg/rawsock"
	_select "github.com/probekit/icmp-probe-tool/pkg/select"
	"github.com/probekit/icmp-probe-tool/pkg/udp"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

type seqValue struct {
	ttl   int // which hop
	index int // count index

	evPrev *seqValue /* double linked list for the event-queue */
	evNext *seqValue /* double linked list for the event-queue */
	evTime time.Time
}

type Trace struct {
	sock    *rawsock.Socket
	s       *_select.Select
	target  string
	ip      net.IP
	localIp net.IP

	currentCount int
	currentTTL   int

	pingTTL       map[int]int // hop the target answered at, per round
	currentMaxTTL int

	seq    int32
	seqMap map[int]*seqValue

	forceIPv4, forceIPv6 bool
	resolver             *resolve.Resolver
	ident                int
	maxTTL               int
	count                int
	interval             time.Duration
	timeout              time.Duration
	dataSize             int
	qos                  int

	evFirst *seqValue
	evLast  *seqValue
	buffer  []byte

	result []*seqResult

	startingFlag int32
	closeFlag    int32
}

func NewTrace(target string, opts ...Option) (*Trace, error) {
	m := &Trace{
		s:          _select.NewSelect(),
		target:     target,
		ident:      os.Getpid() & 0xFFFF,
		interval:   icmp2.DefaultInterval,
		maxTTL:     60,
		dataSize:   icmp2.DefaultDataSize,
		count:      3,
		timeout:    icmp2.DefaultTimeout,
		qos:        -1,
		seqMap:     map[int]*seqValue{},
		pingTTL:    map[int]int{},
		currentTTL: 1,
		buffer:     make([]byte, 4096),
		resolver:   resolve.NewResolver(),
	}
	for _, opt := range opts {
		opt(m)
	}

	ips, err := m.resolver.LookupIP(target)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil && !m.forceIPv6 {
			m.ip = ip4
			break
		} else if ip4 == nil && !m.forceIPv4 {
			m.ip = ip.To16()
			break
		}
	}
	if m.ip == nil {
		return nil, network.ErrNoAddress
	}
	m.sock, err = rawsock.Connect(m.ip)
	if err != nil {
		return nil, err
	}
	if m.qos >= 0 {
		if err := m.sock.SetQOS(byte(m.qos)); err != nil {
			m.sock.Close()
			return nil, err
		}
	}

	localIp, err := udp.GetLocalAddr(m.ip.String())
	if err == nil {
		m.localIp = localIp
	}

	m.s.Add(m.sock.FD())
	m.result = make([]*seqResult, m.maxTTL+1, m.maxTTL+1)
	return m, nil
}

type Option func(*Trace)

func IdentOption(ident uint16) Option {
	return func(m *Trace) {
		m.ident = int(ident)
	}
}

func DataSizeOption(dataSize uint32) Option {
	return func(m *Trace) {
		m.dataSize = int(dataSize)
	}
}

func ForceIPv4Option() Option {
	return func(m *Trace) {
		m.forceIPv4 = true
	}
}

func ForceIPv6Option() Option {
	return func(m *Trace) {
		m.forceIPv6 = true
	}
}

func TimeoutOption(timeout time.Duration) Option {
	return func(m *Trace) {
		m.timeout = timeout
	}
}

func CountOption(count int) Option {
	return func(m *Trace) {
		m.count = count
	}
}

func MaxTTLOption(maxTTL int) Option {
	return func(m *Trace) {
		m.maxTTL = maxTTL
	}
}

func IntervalOption(interval time.Duration) Option {
	return func(m *Trace) {
		m.interval = interval
	}
}

// QOSOption marks probe packets with a type-of-service / traffic class
// byte.
func QOSOption(qos byte) Option {
	return func(m *Trace) {
		m.qos = int(qos)
	}
}

func ResolverOption(r *resolve.Resolver) Option {
	return func(m *Trace) {
		m.resolver = r
	}
}

func (m *Trace) Close() {
	if m.sock != nil {
		m.sock.Close()
	}
}

func (m *Trace) Start() (*Result, error) {
	if atomic.SwapInt32(&m.startingFlag, 1) == 1 {
		return nil, network.ErrAlreadyRunning
	}
	var lastSendTime time.Time
	var waitTime time.Duration
	for m.count > m.currentCount {
		ld := time.Now().Sub(lastSendTime)
		if ld < m.interval {
			// previous probe's interval has not elapsed yet
			waitTime = m.interval - ld
			goto waitForReply
		}
		lastSendTime = time.Now()
		m.send(lastSendTime)
		m.currentTTL += 1
		if _, ok := m.pingTTL[m.currentCount]; ok || m.currentTTL > m.maxTTL {
			// this round reached the target or the hop cap, start the next
			m.currentTTL = 1
			m.currentCount += 1
		}
		waitTime = m.interval
	waitForReply:
		for {
			if w, _ := m.waitForReply(waitTime); !w {
				break
			}
			waitTime = 0
		}
	}

	for m.evFirst != nil {
		waitTime = m.evFirst.evTime.Sub(time.Now())
		if waitTime < 0 {
			// probe timed out
			m.evRemove(m.evFirst)
			continue
		}
		for {
			if w, _ := m.waitForReply(waitTime); !w {
				break
			}
			waitTime = 0
		}
	}

	result := &Result{
		TargetIp: m.ip,
		LocalIp:  m.localIp,
	}

	for ttl, r := range m.result[:m.currentMaxTTL+1] {
		if ttl == 0 {
			continue
		}
		if r == nil {
			break
		}
		tr := HopResult{}
		for i, entry := range r.entries {
			maxTTL := m.pingTTL[i]
			if maxTTL > 0 && maxTTL < ttl {
				continue
			}
			e := HopResultEntry{IP: entry.ip}
			if len(entry.ip) != 0 {
				e.Elapsed = entry.replyTime.Sub(entry.t)
			}
			tr.Entries = append(tr.Entries, e)
		}
		if len(tr.Entries) == 0 {
			break
		}
		result.Hops = append(result.Hops, tr)
	}
	return result, nil
}

func (m *Trace) waitForReply(waitTime time.Duration) (bool, error) {
	fd, err := m.s.CanRead(waitTime)
	if err != nil {
		return false, err
	}
	if fd < 0 {
		return false, nil
	}
	n, src, err := m.sock.RecvFrom(m.buffer[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		// interrupted read, nothing was received
		return false, nil
	}
	var start int
	if m.sock.Family() == rawsock.V4 {
		src, start = icmp2.StripIPv4Header(m.buffer[:n])
	}
	msg, err := icmp.ParseMessage(icmp2.Proto(m.sock.Family()), m.buffer[start:n])
	if err != nil {
		return false, err
	}
	switch msg.Type {
	case ipv4.ICMPTypeTimeExceeded, ipv6.ICMPTypeTimeExceeded:
		// type/code/checksum (4) + unused (4) + quoted IP header +
		// quoted echo type/code/checksum (4), then ident and seq
		inner := ipv4.HeaderLen
		if m.sock.Family() == rawsock.V6 {
			inner = ipv6.HeaderLen
		}
		pos := start + 4 + 4 + inner + 4
		if n < pos+4 {
			break
		}
		if int(binary.BigEndian.Uint16(m.buffer[pos:n])) != m.ident {
			// not sent by this process
			break
		}
		pkgSeq := binary.BigEndian.Uint16(m.buffer[pos+2 : n])
		val, ok := m.seqMap[int(pkgSeq)]
		if !ok {
			break
		}
		e := m.result[val.ttl].entries[val.index]
		e.ip = src
		e.replyTime = time.Now()
		m.result[val.ttl].entries[val.index] = e
		m.result[val.ttl].reply += 1
		m.evRemove(val)
		delete(m.seqMap, int(pkgSeq))
	case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
		if pkt, ok := msg.Body.(*icmp.Echo); ok {
			if pkt.ID != m.ident {
				// not sent by this process
				break
			}
			val, ok := m.seqMap[pkt.Seq]
			if !ok {
				break
			}
			e := m.result[val.ttl].entries[val.index]
			m.result[val.ttl].reply += 1
			e.ip = src
			e.replyTime = time.Now()
			e.end = true
			m.result[val.ttl].entries[val.index] = e
			// reached the target
			delete(m.seqMap, pkt.Seq)
			m.evRemove(val)
			if m.pingTTL[val.index] == 0 || m.pingTTL[val.index] > val.ttl {
				m.pingTTL[val.index] = val.ttl
				if m.currentMaxTTL == 0 || val.ttl > m.currentMaxTTL {
					m.currentMaxTTL = val.ttl
				}
			}
		}
	}
	return true, nil
}

func (m *Trace) send(lastSendTime time.Time) error {
	seq := m.incr()
	if m.result[m.currentTTL] == nil {
		m.result[m.currentTTL] = &seqResult{}
	}
	sv := &seqValue{
		ttl:    m.currentTTL,
		index:  len(m.result[m.currentTTL].entries),
		evTime: lastSendTime.Add(m.timeout),
	}
	m.result[m.currentTTL].entries = append(m.result[m.currentTTL].entries, seqEntry{
		t: lastSendTime,
	})

	m.seqMap[seq] = sv
	m.evEnqueue(sv)
	if m.dataSize > len(m.buffer) {
		m.buffer = make([]byte, m.dataSize)
	}
	b, err := icmp2.EchoRequest(m.sock.Family(), m.ident, seq, m.buffer[:m.dataSize])
	if err != nil {
		return err
	}
	if err := m.sock.SetTTL(m.currentTTL); err != nil {
		return err
	}
	_, err = m.sock.Send(b)
	return err
}

func (m *Trace) evRemove(h *seqValue) {
	if m.evFirst == h {
		m.evFirst = h.evNext
	}
	if m.evLast == h {
		m.evLast = h.evPrev
	}
	if h.evPrev != nil {
		h.evPrev.evNext = h.evNext
	}
	if h.evNext != nil {
		h.evNext.evPrev = h.evPrev
	}
	h.evPrev = nil
	h.evNext = nil
}

func (m *Trace) evEnqueue(h *seqValue) {
	var i *seqValue
	var iPrev *seqValue
	/* Empty list */
	if m.evLast == nil {
		h.evNext = nil
		h.evPrev = nil
		m.evFirst = h
		m.evLast = h
		return
	}
	if h.evTime.After(m.evLast.evTime) {
		h.evNext = nil
		h.evPrev = m.evLast
		m.evLast.evNext = h
		m.evLast = h
		return
	}
	i = m.evLast
	for {
		iPrev = i.evPrev
		if iPrev == nil || h.evTime.After(iPrev.evTime) {
			h.evPrev = iPrev
			h.evNext = i
			i.evPrev = h
			if iPrev != nil {
				iPrev.evNext = h
			} else {
				m.evFirst = h
			}
			return
		}
		i = iPrev
	}
}

func (m *Trace) incr() int {
	return int(atomic.AddInt32(&m.seq, 1))
}

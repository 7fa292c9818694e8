package ping

import (
	"container/heap"
	"os"
	"sync/atomic"
	"time"

	"github.com/probekit/icmp-probe-tool/network"
	"github.com/probekit/icmp-probe-tool/network/resolve"
	icmp2 "github.com/probekit/icmp-probe-tool/pkg/icmp"
	"github.com/probekit/icmp-probe-tool/pkg/rawsock"
	_select "github.com/probekit/icmp-probe-tool/pkg/select"
	"golang.org/x/net/icmp"
)

type entryReply struct {
	r *reply
	e *entry
}

// Ping probes a set of targets with echo requests. Each target gets its
// own raw socket bound to its address; replies are matched back through
// the (ident, seq) pool since every raw socket sees all ICMP traffic.
type Ping struct {
	s        *_select.Select
	byFD     map[int]*entry
	resolver *resolve.Resolver

	ident        int
	interval     time.Duration
	ttl          int
	qos          int
	entryHeap    EntryHeap
	entries      []*entry
	startingFlag int32
	closeFlag    int32

	buffer []byte

	seqPool *icmp2.SeqPool
}

type Option func(*Ping)

func IdentOption(ident uint16) Option {
	return func(ping *Ping) {
		ping.ident = int(ident)
	}
}

func IntervalOption(interval time.Duration) Option {
	return func(ping *Ping) {
		ping.interval = interval
	}
}

// TTLOption caps the hop count of every probe sent by this Ping.
func TTLOption(ttl int) Option {
	return func(ping *Ping) {
		ping.ttl = ttl
	}
}

// QOSOption marks outgoing probes with a type-of-service / traffic
// class byte.
func QOSOption(qos byte) Option {
	return func(ping *Ping) {
		ping.qos = int(qos)
	}
}

func ResolverOption(r *resolve.Resolver) Option {
	return func(ping *Ping) {
		ping.resolver = r
	}
}

func NewPing(opts ...Option) *Ping {
	p := &Ping{
		ident:    os.Getpid() & 0xFFFF,
		interval: time.Millisecond,
		ttl:      -1,
		qos:      -1,
		buffer:   make([]byte, 4096),
		s:        _select.NewSelect(),
		byFD:     map[int]*entry{},
		resolver: resolve.NewResolver(),
	}

	for _, opt := range opts {
		opt(p)
	}
	p.seqPool = icmp2.NewSeqPool(uint16(p.ident))
	return p
}

func (p *Ping) Add(host string, opts ...AddressOption) error {
	if atomic.LoadInt32(&p.startingFlag) == 1 {
		return nil
	}
	e, err := newEntry(p.resolver, host, opts...)
	if err != nil {
		return err
	}
	e.sock, err = rawsock.Connect(e.ip)
	if err != nil {
		return err
	}
	if p.ttl > 0 {
		if err := e.sock.SetTTL(p.ttl); err != nil {
			e.sock.Close()
			return err
		}
	}
	if p.qos >= 0 {
		if err := e.sock.SetQOS(byte(p.qos)); err != nil {
			e.sock.Close()
			return err
		}
	}
	p.s.Add(e.sock.FD())
	p.byFD[e.sock.FD()] = e
	p.enqueue(e)
	p.entries = append(p.entries, e)
	return nil
}

func (p *Ping) enqueue(e *entry) {
	heap.Push(&p.entryHeap, e)
}

func (p *Ping) dequeue() *entry {
	e := heap.Pop(&p.entryHeap)
	return e.(*entry)
}

func (p *Ping) remove(e *entry) {
	heap.Remove(&p.entryHeap, e.index)
}

func (p *Ping) send(e *entry, r *reply) error {
	e.send += 1
	ident, seq := p.seqPool.Apply(&entryReply{
		r: r,
		e: e,
	})
	if e.dataSize > len(p.buffer) {
		p.buffer = make([]byte, e.dataSize)
	}
	bytes, err := icmp2.EchoRequest(e.sock.Family(), int(ident), int(seq), p.buffer[:e.dataSize])
	if err != nil {
		p.seqPool.Free(ident, seq)
		return err
	}
	if _, err = e.sock.Send(bytes); err != nil {
		p.seqPool.Free(ident, seq)
	}
	return err
}

func (p *Ping) Stop() error {
	if atomic.LoadInt32(&p.startingFlag) != 1 {
		return network.ErrNotRunning
	}

	if !atomic.CompareAndSwapInt32(&p.closeFlag, 0, 1) {
		return network.ErrAlreadyClosed
	}

	for _, e := range p.entries {
		if e.sock != nil {
			e.sock.Close()
		}
	}
	return nil
}

func (p *Ping) Start() ([]Result, error) {
	if atomic.SwapInt32(&p.startingFlag, 1) == 1 {
		return nil, network.ErrAlreadyRunning
	}
	currentTime := time.Now()
	var lastSendTime time.Time
	var waitTime time.Duration
	for !p.isClosing() && p.entryHeap.Len() != 0 {
		e := p.entryHeap.Peek().(*entry)
		if e.evTime.Before(currentTime) {
			if e.typ == EVPing {
				if currentTime.Sub(lastSendTime) < p.interval {
					goto waitForReply
				}
				e := p.dequeue()
				lastSendTime = time.Now()
				r := &reply{
					sendTime: lastSendTime,
					elapsed:  ResultUnUsed,
				}

				e.result = append(e.result, r)
				err := p.send(e, r)
				if err != nil {
					r.elapsed = ResultError
				}
				if e.send < e.count {
					e.typ = EVPing
					e.evTime = lastSendTime.Add(e.interval)
				} else {
					e.typ = EVTimeout
					e.evTime = lastSendTime.Add(e.timeout)
				}
				p.enqueue(e)
			} else if e.typ == EVTimeout {
				p.remove(e)
			}
		}
	waitForReply:
		if p.entryHeap.Len() != 0 {
			e := p.entryHeap.Peek().(*entry)
			if e.evTime.IsZero() {
				waitTime = 0
			} else {
				waitTime = e.evTime.Sub(currentTime)
				if waitTime < 0 {
					waitTime = 0
				}
			}
			if e.typ == EVPing {
				if waitTime < p.interval {
					lt := currentTime.Sub(lastSendTime)
					if lt < p.interval {
						waitTime = p.interval - lt
					} else {
						waitTime = p.interval
					}
				}
			}
		} else {
			waitTime = 0
		}

		for !p.isClosing() {
			if w, _ := p.waitForReply(waitTime); !w {
				break
			}
			waitTime = 0
		}
		currentTime = time.Now()
	}
	if p.isClosing() {
		return nil, network.ErrAlreadyClosed
	}
	results := make([]Result, len(p.entries))
	for index, e := range p.entries {
		rs := Result{
			Packets:  e.send,
			Received: e.recv,
			IP:       e.ip,
			Dev:      e.Dev(),
		}
		rs.Host = e.host
		for _, r := range e.result {
			rs.Times = append(rs.Times, r.elapsed)
		}
		results[index] = rs
	}
	return results, nil
}

func (p *Ping) waitForReply(waitTime time.Duration) (bool, error) {
	fd, err := p.s.CanRead(waitTime)
	if err != nil {
		return false, err
	}
	if fd < 0 {
		return false, nil
	}
	e, ok := p.byFD[fd]
	if !ok {
		return false, nil
	}

	n, _, err := e.sock.RecvFrom(p.buffer[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		// interrupted read, nothing was received
		return false, nil
	}
	var start int
	if e.sock.Family() == rawsock.V4 {
		_, start = icmp2.StripIPv4Header(p.buffer[:n])
	}
	m, err := icmp.ParseMessage(icmp2.Proto(e.sock.Family()), p.buffer[start:n])
	if err != nil {
		return false, err
	}
	if pkt, ok := m.Body.(*icmp.Echo); ok {
		v := p.seqPool.Free(uint16(pkt.ID), uint16(pkt.Seq))
		if v == nil {
			return false, nil
		}
		r := v.(*entryReply)
		if r.r.elapsed == ResultUnUsed {
			r.r.elapsed = time.Since(r.r.sendTime)
			elapsed := float64(r.r.elapsed) / float64(time.Millisecond)
			if r.e.recv == 0 {
				r.e.oldMean = elapsed
			} else {
				newMean := r.e.oldMean + (elapsed-r.e.oldMean)/(float64(r.e.recv)+1)
				r.e.m2 += (elapsed - r.e.oldMean) * (elapsed - newMean)
				r.e.oldMean = newMean
			}
			r.e.recv += 1
			if r.e.recv >= r.e.count {
				p.remove(r.e)
			}
		}

	}
	return true, nil
}

func (p *Ping) isClosing() bool {
	return atomic.LoadInt32(&p.closeFlag) == 1
}

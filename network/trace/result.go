package trace

import (
	"net"
	"time"
)

type HopResultEntry struct {
	IP      net.IP
	Elapsed time.Duration
}

type HopResult struct {
	Entries []HopResultEntry
}

type Result struct {
	LocalIp  net.IP
	TargetIp net.IP
	Hops     []HopResult
}

type seqEntry struct {
	t         time.Time
	ip        net.IP
	replyTime time.Time
	end       bool
}

type seqResult struct {
	entries []seqEntry
	reply   int
}

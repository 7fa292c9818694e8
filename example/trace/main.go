package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/probekit/icmp-probe-tool/network/resolve"
	"github.com/probekit/icmp-probe-tool/network/trace"
	"github.com/probekit/icmp-probe-tool/pkg/icmp"
)

type StringSet map[string]struct{}

func (ms StringSet) Add(mk string) {
	ms[mk] = struct{}{}
}

func (ms StringSet) String() string {
	var values []string
	for v := range ms {
		values = append(values, v)
	}
	return strings.Join(values, ",")
}

func main() {
	var count = 3
	var maxTTL = 30
	var timeout = icmp.DefaultTimeout
	var interval = icmp.DefaultInterval
	var dataSize = icmp.DefaultDataSize
	var tos = -1
	var nameserver = ""
	flag.IntVar(&maxTTL, "max-ttl", maxTTL, "Specifies the maximum number of hops (max time-to-live value) traceroute will probe")
	flag.IntVar(&count, "c", count, "count of pings to send to each target")
	flag.DurationVar(&timeout, "t", timeout, "individual target initial timeout")
	flag.DurationVar(&interval, "i", interval, "interval between sending ping packets")
	flag.IntVar(&dataSize, "d", dataSize, "amount of ping data to send, in bytes")
	flag.IntVar(&tos, "q", tos, "type of service / traffic class of probe packets")
	flag.StringVar(&nameserver, "nameserver", nameserver, "resolve the target against this dns server instead of the system resolver")
	flag.Parse()
	target := flag.Arg(0)
	if target == "" {
		fmt.Printf("Usage of %s www.ip8.me\n", os.Args[0])
		flag.PrintDefaults()
		return
	}
	opts := []trace.Option{
		trace.CountOption(count),
		trace.TimeoutOption(timeout),
		trace.DataSizeOption(uint32(dataSize)),
		trace.MaxTTLOption(maxTTL),
		trace.IntervalOption(interval),
	}
	if tos >= 0 {
		opts = append(opts, trace.QOSOption(byte(tos)))
	}
	if nameserver != "" {
		opts = append(opts, trace.ResolverOption(resolve.NewResolver(resolve.NameserverOption(nameserver))))
	}
	m, err := trace.NewTrace(target, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()
	result, err := m.Start()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s => %s\n", result.LocalIp, result.TargetIp)
	fmt.Println("ttl", "host", "max", "min", "avg", "loss")
	for i, hop := range result.Hops {
		if len(hop.Entries) <= 0 {
			continue
		}
		ips := make(StringSet)
		var (
			sum   time.Duration
			max   time.Duration
			min   time.Duration
			num   time.Duration
			avg   time.Duration
			reply float64
		)
		for _, entry := range hop.Entries {
			if len(entry.IP) != 0 {
				reply += 1
				ips.Add(entry.IP.String())
				sum += entry.Elapsed
				num += 1
				if entry.Elapsed > max {
					max = entry.Elapsed
				}
				if min == 0 || entry.Elapsed < min {
					min = entry.Elapsed
				}
			}
		}
		if num > 0 {
			avg = sum / num
		}
		fmt.Println(i+1, ips.String(), max, min, avg,
			(float64(len(hop.Entries))-reply)/float64(len(hop.Entries))*100)
	}
}

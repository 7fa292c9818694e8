package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/probekit/icmp-probe-tool/network/ping"
	"github.com/probekit/icmp-probe-tool/network/resolve"
	"github.com/probekit/icmp-probe-tool/pkg/icmp"
)

func main() {
	var count = 3
	var timeout = icmp.DefaultTimeout
	var interval = icmp.DefaultInterval
	var dataSize = icmp.DefaultDataSize
	var ttl = 0
	var tos = -1
	var nameserver = ""

	flag.IntVar(&count, "count", count, "count of pings to send to each target")
	flag.DurationVar(&timeout, "timeout", timeout, "individual target initial timeout")
	flag.DurationVar(&interval, "interval", interval, "interval between sending ping packets")
	flag.IntVar(&dataSize, "data-size", dataSize, "amount of ping data to send, in bytes")
	flag.IntVar(&ttl, "ttl", ttl, "time to live / hop limit of outgoing packets")
	flag.IntVar(&tos, "tos", tos, "type of service / traffic class of outgoing packets")
	flag.StringVar(&nameserver, "nameserver", nameserver, "resolve targets against this dns server instead of the system resolver")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Printf("Usage of %s www.ip8.me\n", os.Args[0])
		flag.PrintDefaults()
		return
	}

	opts := []ping.Option{ping.IntervalOption(interval)}
	if ttl > 0 {
		opts = append(opts, ping.TTLOption(ttl))
	}
	if tos >= 0 {
		opts = append(opts, ping.QOSOption(byte(tos)))
	}
	if nameserver != "" {
		opts = append(opts, ping.ResolverOption(resolve.NewResolver(resolve.NameserverOption(nameserver))))
	}

	p := ping.NewPing(opts...)
	for _, host := range flag.Args() {
		err := p.Add(host,
			ping.CountOpt(count),
			ping.TimeoutOption(timeout),
			ping.DataSizeOption(dataSize),
			ping.AddressIntervalOption(interval))
		if err != nil {
			log.Fatal(err)
		}
	}
	rs, err := p.Start()
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range rs {
		fmt.Println(r.String())
	}
}

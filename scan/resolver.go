package scan

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
)

// Resolver maps an address to a display name. It returns the address itself
// when no name is found.
type Resolver interface {
	ResolveHostname(ctx context.Context, ip string) string
}

var (
	namePattern    = regexp.MustCompile(`(?m)^\s*Name:\s+(\S.*?)\s*$`)
	ptrNamePattern = regexp.MustCompile(`(?m)\sname = (\S+)`)
)

// ParseNameResponse extracts the first "Name:" value from nslookup output.
// Unix nslookup prints PTR answers as "name = host." which is accepted too.
func ParseNameResponse(output, ip string) string {
	if m := namePattern.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	if m := ptrNamePattern.FindStringSubmatch(output); m != nil {
		return strings.TrimSuffix(m[1], ".")
	}
	return ip
}

type NslookupResolver struct {
	Runner CommandRunner
}

func (r *NslookupResolver) ResolveHostname(ctx context.Context, ip string) string {
	runner := r.Runner
	if runner == nil {
		runner = ExecRunner
	}

	// nslookup exits non-zero on NXDOMAIN but still prints usable output
	out, err := runner.Run(ctx, "nslookup", ip)
	if err != nil {
		log.WithField("ip", ip).Debugf("nslookup: %s", err)
	}
	return ParseNameResponse(string(out), ip)
}

// LookupResolver uses the Go resolver.
type LookupResolver struct {
	Resolver *net.Resolver
}

func (r *LookupResolver) ResolveHostname(ctx context.Context, ip string) string {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	names, err := resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ip
	}
	return strings.TrimSuffix(names[0], ".")
}

// DNSResolver sends PTR queries straight to a DNS server.
type DNSResolver struct {
	Server  string
	Timeout time.Duration
}

// NewDNSResolver queries server, or the first nameserver of
// /etc/resolv.conf when server is empty.
func NewDNSResolver(server string, timeout time.Duration) (*DNSResolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("reading resolv.conf: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in resolv.conf")
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &DNSResolver{Server: server, Timeout: timeout}, nil
}

func (r *DNSResolver) ResolveHostname(ctx context.Context, ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ip
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	client := &dns.Client{Timeout: r.Timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, r.Server)
	if err != nil {
		log.WithField("ip", ip).Debugf("PTR query failed: %s", err)
		return ip
	}

	for _, answer := range resp.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ip
}

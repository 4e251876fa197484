package scan

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/go-ping/ping"
	log "github.com/sirupsen/logrus"
)

const DefaultProbeTimeout = 2 * time.Second

// Prober nudges the OS into resolving a neighbor. Its outcome is not
// reported: liveness is read back from the neighbor cache afterwards.
type Prober interface {
	Probe(ctx context.Context, ip string)
}

// PingProber sends one ICMP echo with github.com/go-ping/ping.
type PingProber struct {
	timeout    time.Duration
	privileged bool
}

func NewPingProber(timeout time.Duration, privileged bool) *PingProber {
	return &PingProber{
		timeout:    timeout,
		privileged: privileged,
	}
}

func (p *PingProber) Probe(ctx context.Context, ip string) {
	pinger, err := ping.NewPinger(ip)
	if err != nil {
		log.WithField("ip", ip).Debugf("ping setup failed: %s", err)
		return
	}
	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(p.privileged)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		log.WithField("ip", ip).Debugf("ping failed: %s", err)
		return
	}

	stats := pinger.Statistics()
	log.WithFields(log.Fields{
		"ip":       ip,
		"received": stats.PacketsRecv,
		"rtt":      stats.AvgRtt,
	}).Debug("ping finished")
}

// CommandProber runs the system ping binary.
type CommandProber struct {
	timeout time.Duration
	runner  CommandRunner
	goos    string
}

func NewCommandProber(timeout time.Duration, runner CommandRunner) *CommandProber {
	if runner == nil {
		runner = ExecRunner
	}
	return &CommandProber{
		timeout: timeout,
		runner:  runner,
		goos:    runtime.GOOS,
	}
}

func (p *CommandProber) args(ip string) []string {
	millis := strconv.FormatInt(p.timeout.Milliseconds(), 10)

	switch p.goos {
	case "windows":
		return []string{ip, "-n", "1", "-w", millis}
	case "darwin", "freebsd", "netbsd", "dragonfly":
		// BSD ping takes -W in milliseconds
		return []string{"-c", "1", "-W", millis, ip}
	}

	seconds := int((p.timeout + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return []string{"-c", "1", "-W", strconv.Itoa(seconds), ip}
}

func (p *CommandProber) Probe(ctx context.Context, ip string) {
	// ping exits non-zero for unreachable hosts, which is expected
	if _, err := p.runner.Run(ctx, "ping", p.args(ip)...); err != nil {
		log.WithField("ip", ip).Debugf("ping: %s", err)
	}
}

// ConnectProber opens a TCP connection to a port that is usually closed.
// Sending the SYN requires the kernel to resolve the neighbor first.
type ConnectProber struct {
	timeout time.Duration
	port    int
}

func NewConnectProber(timeout time.Duration, port int) *ConnectProber {
	if port <= 0 {
		port = 1
	}
	return &ConnectProber{
		timeout: timeout,
		port:    port,
	}
}

func (p *ConnectProber) Probe(ctx context.Context, ip string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(p.port)))
	if err != nil {
		log.WithField("ip", ip).Debugf("connect probe: %s after %s", err, time.Since(start))
		return
	}
	conn.Close()
	log.WithField("ip", ip).Debugf("connect probe answered in %s", time.Since(start))
}

// NewProber builds the prober named by kind: icmp, command or connect.
func NewProber(kind string, timeout time.Duration) (Prober, error) {
	switch kind {
	case "icmp":
		return NewPingProber(timeout, runtime.GOOS == "windows"), nil
	case "command", "":
		return NewCommandProber(timeout, nil), nil
	case "connect":
		return NewConnectProber(timeout, 1), nil
	}
	return nil, fmt.Errorf("Unknown probe type '%s'", kind)
}

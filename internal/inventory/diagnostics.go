package inventory

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Prober collects an ICMP TTL for a host, for OS fingerprinting.
type Prober interface {
	ProbeTTL(ctx context.Context, ip string) int
}

// ICMPProber pings a single host with pro-bing and reports the response TTL.
type ICMPProber struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewICMPProber creates a TTL prober.
func NewICMPProber(timeout time.Duration, logger *zap.Logger) *ICMPProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ICMPProber{timeout: timeout, logger: logger}
}

// ProbeTTL pings ip once and returns the TTL of the reply, or 0 when the
// host did not answer. A dead probe is not an error; TTL is one signal of
// several.
func (p *ICMPProber) ProbeTTL(ctx context.Context, ip string) int {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("ip", ip), zap.Error(err))
		return 0
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	var ttl int
	pinger.OnRecv = func(pkt *probing.Packet) {
		if ttl == 0 {
			ttl = pkt.TTL
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("ip", ip), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return 0
	}
	return ttl
}

// ErrScannerUnavailable means the scan tool is not installed on this host.
var ErrScannerUnavailable = errors.New("port scanner unavailable")

// OpenPort is one open port reported by a scan.
type OpenPort struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Service  string `json:"service,omitempty"`
}

// PortScanner runs an on-demand port scan against a host.
type PortScanner interface {
	Scan(ctx context.Context, ip string) ([]OpenPort, error)
}

// NmapScanner shells out to nmap. Scans fail with ErrScannerUnavailable
// when the binary is absent so callers can degrade instead of erroring.
type NmapScanner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewNmapScanner creates a scanner covering nmap's top 100 TCP ports.
func NewNmapScanner(timeout time.Duration, logger *zap.Logger) *NmapScanner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &NmapScanner{timeout: timeout, logger: logger}
}

func (n *NmapScanner) Scan(ctx context.Context, ip string) ([]OpenPort, error) {
	path, err := exec.LookPath("nmap")
	if err != nil {
		return nil, ErrScannerUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	out, err := exec.CommandContext(ctx, path, "-Pn", "-T4", "--top-ports", "100", "-oG", "-", ip).Output()
	if err != nil {
		return nil, fmt.Errorf("nmap scan of %s: %w", ip, err)
	}

	ports := parseNmapGrepable(string(out))
	n.logger.Debug("port scan complete",
		zap.String("ip", ip),
		zap.Int("open", len(ports)),
		zap.Duration("took", time.Since(start)),
	)
	return ports, nil
}

// parseNmapGrepable extracts open ports from `nmap -oG -` output. Port
// entries look like "22/open/tcp//ssh///" on the Host line.
func parseNmapGrepable(out string) []OpenPort {
	var ports []OpenPort
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Host:") {
			continue
		}
		idx := strings.Index(line, "Ports:")
		if idx < 0 {
			continue
		}
		for _, entry := range strings.Split(line[idx+len("Ports:"):], ",") {
			fields := strings.Split(strings.TrimSpace(entry), "/")
			if len(fields) < 5 || fields[1] != "open" {
				continue
			}
			port, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			ports = append(ports, OpenPort{Port: port, Protocol: fields[2], Service: fields[4]})
		}
	}
	return ports
}

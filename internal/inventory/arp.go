package inventory

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// ARPReader snapshots the system ARP cache as ip -> canonical MAC.
type ARPReader struct {
	logger  *zap.Logger
	subnets []*net.IPNet
}

// NewARPReader creates an ARP cache reader. Subnet CIDRs, when given,
// restrict the snapshot; malformed CIDRs are logged and skipped.
func NewARPReader(logger *zap.Logger, subnets []string) *ARPReader {
	r := &ARPReader{logger: logger}
	for _, cidr := range subnets {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("ignoring malformed subnet", zap.String("cidr", cidr), zap.Error(err))
			continue
		}
		r.subnets = append(r.subnets, ipnet)
	}
	return r
}

// ReadTable returns the current (ip, mac) pairs. On Linux it reads
// /proc/net/arp directly and falls back to the arp binary; elsewhere it
// parses `arp -a`. An error means the scan source itself is unavailable;
// the caller must skip the tick rather than treat the network as empty.
func (r *ARPReader) ReadTable(ctx context.Context) (map[string]string, error) {
	var (
		table map[string]string
		err   error
	)
	switch runtime.GOOS {
	case "linux":
		table, err = r.readProcARP()
		if err != nil {
			r.logger.Debug("falling back to arp binary", zap.Error(err))
			table, err = r.readARPCommand(ctx)
		}
	default:
		table, err = r.readARPCommand(ctx)
	}
	if err != nil {
		return nil, err
	}
	return r.filter(table), nil
}

func (r *ARPReader) readProcARP() (map[string]string, error) {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		return nil, err
	}
	return parseProcARP(string(data)), nil
}

func (r *ARPReader) readARPCommand(ctx context.Context) (map[string]string, error) {
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return nil, err
	}
	switch runtime.GOOS {
	case "windows":
		return parseWindowsARP(string(out)), nil
	default:
		return parseBSDARP(string(out)), nil
	}
}

// filter drops broadcast/zero MACs and, when subnets are configured,
// addresses outside them.
func (r *ARPReader) filter(table map[string]string) map[string]string {
	out := make(map[string]string, len(table))
	for ip, mac := range table {
		mac = models.NormalizeMAC(mac)
		if !models.ValidMAC(mac) {
			continue
		}
		if len(r.subnets) > 0 {
			addr := net.ParseIP(ip)
			if addr == nil {
				continue
			}
			inRange := false
			for _, s := range r.subnets {
				if s.Contains(addr) {
					inRange = true
					break
				}
			}
			if !inRange {
				continue
			}
		}
		out[ip] = mac
	}
	return out
}

// ParseARPOutput parses platform-specific ARP output. Exported for testing.
func ParseARPOutput(output, platform string) map[string]string {
	switch platform {
	case "linux":
		return parseProcARP(output)
	case "windows":
		return parseWindowsARP(output)
	case "darwin":
		return parseBSDARP(output)
	default:
		return map[string]string{}
	}
}

// parseProcARP parses /proc/net/arp.
// Format: IP address  HW type  Flags  HW address  Mask  Device
func parseProcARP(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Scan() // skip header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		// Flags 0x0 means the entry is incomplete.
		if fields[2] == "0x0" {
			continue
		}
		table[fields[0]] = strings.ToUpper(fields[3])
	}
	return table
}

// parseWindowsARP parses `arp -a` on Windows.
// Format: Internet Address  Physical Address  Type
func parseWindowsARP(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) < 3 {
			continue
		}
		ip := fields[0]
		if ip == "" || ip[0] < '0' || ip[0] > '9' {
			continue
		}
		table[ip] = strings.ToUpper(strings.ReplaceAll(fields[1], "-", ":"))
	}
	return table
}

// parseBSDARP parses `arp -a` on macOS and the BSDs.
// Format: hostname (ip) at mac on iface [...]
func parseBSDARP(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		parenStart := strings.Index(line, "(")
		parenEnd := strings.Index(line, ")")
		if parenStart < 0 || parenEnd < 0 || parenEnd <= parenStart {
			continue
		}
		ip := line[parenStart+1 : parenEnd]

		atIdx := strings.Index(line[parenEnd:], " at ")
		if atIdx < 0 {
			continue
		}
		fields := strings.Fields(line[parenEnd+atIdx+4:])
		if len(fields) == 0 || fields[0] == "(incomplete)" {
			continue
		}
		table[ip] = strings.ToUpper(fields[0])
	}
	return table
}

package agent

import (
	"strconv"
	"strings"
)

// detailEvery controls how often the expensive disk and interface
// inventory rides along with a report; the cheap CPU/memory figures go
// out every cycle.
const detailEvery = 5

// cpuSample is one reading of aggregate CPU jiffies.
type cpuSample struct {
	total uint64
	idle  uint64
}

// parseCPUStat extracts aggregate jiffies from the first line of
// /proc/stat ("cpu  user nice system idle iowait ...").
func parseCPUStat(content string) (cpuSample, bool) {
	line, _, _ := strings.Cut(content, "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuSample{}, false
	}

	var s cpuSample
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return cpuSample{}, false
		}
		s.total += v
		// idle + iowait both count as idle time.
		if i == 3 || i == 4 {
			s.idle += v
		}
	}
	return s, true
}

// cpuUsage converts two jiffy samples into a busy percentage.
func cpuUsage(prev, cur cpuSample) float64 {
	dTotal := cur.total - prev.total
	if cur.total < prev.total || dTotal == 0 {
		return 0
	}
	dIdle := cur.idle - prev.idle
	if cur.idle < prev.idle || dIdle > dTotal {
		return 0
	}
	return float64(dTotal-dIdle) / float64(dTotal) * 100
}

// memStats is parsed from /proc/meminfo; values are bytes.
type memStats struct {
	total     uint64
	used      uint64
	swapTotal uint64
	swapUsed  uint64
}

func parseMeminfo(content string) memStats {
	kb := make(map[string]uint64)
	for _, line := range strings.Split(content, "\n") {
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if v, err := strconv.ParseUint(fields[0], 10, 64); err == nil {
			kb[name] = v
		}
	}

	var m memStats
	m.total = kb["MemTotal"] * 1024
	avail := kb["MemAvailable"] * 1024
	if avail == 0 {
		avail = kb["MemFree"] * 1024
	}
	if m.total >= avail {
		m.used = m.total - avail
	}
	m.swapTotal = kb["SwapTotal"] * 1024
	swapFree := kb["SwapFree"] * 1024
	if m.swapTotal >= swapFree {
		m.swapUsed = m.swapTotal - swapFree
	}
	return m
}

// netDevCounters holds cumulative byte counters per interface.
type netDevCounters struct {
	rx uint64
	tx uint64
}

// parseNetDev reads /proc/net/dev. The loopback interface is skipped.
func parseNetDev(content string) map[string]netDevCounters {
	out := make(map[string]netDevCounters)
	for _, line := range strings.Split(content, "\n") {
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || name == "lo" {
			continue
		}
		fields := strings.Fields(rest)
		// rx bytes is field 0, tx bytes is field 8.
		if len(fields) < 9 {
			continue
		}
		rx, err1 := strconv.ParseUint(fields[0], 10, 64)
		tx, err2 := strconv.ParseUint(fields[8], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[name] = netDevCounters{rx: rx, tx: tx}
	}
	return out
}

// parseOSRelease extracts NAME and VERSION_ID from /etc/os-release.
func parseOSRelease(content string) (name, version string) {
	for _, line := range strings.Split(content, "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"`)
		switch key {
		case "NAME":
			name = val
		case "VERSION_ID":
			version = val
		}
	}
	return name, version
}

// parseLoadAvg reads the three load figures from /proc/loadavg.
func parseLoadAvg(content string) [3]float64 {
	var load [3]float64
	fields := strings.Fields(content)
	for i := 0; i < 3 && i < len(fields); i++ {
		load[i], _ = strconv.ParseFloat(fields[i], 64)
	}
	return load
}

// parseUptime reads whole seconds from /proc/uptime.
func parseUptime(content string) uint64 {
	first, _, _ := strings.Cut(strings.TrimSpace(content), " ")
	secs, err := strconv.ParseFloat(first, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return uint64(secs)
}

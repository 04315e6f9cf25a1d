package agent

import "testing"

func TestParseCPUStat(t *testing.T) {
	content := "cpu  100 20 50 800 30 0 5 0 0 0\ncpu0 50 10 25 400 15 0 2 0 0 0\n"
	s, ok := parseCPUStat(content)
	if !ok {
		t.Fatal("parseCPUStat failed")
	}
	if s.total != 1005 {
		t.Errorf("total = %d, want 1005", s.total)
	}
	if s.idle != 830 {
		t.Errorf("idle = %d, want 830 (idle+iowait)", s.idle)
	}
}

func TestCPUUsage(t *testing.T) {
	prev := cpuSample{total: 1000, idle: 800}
	cur := cpuSample{total: 2000, idle: 1600}
	if got := cpuUsage(prev, cur); got != 20 {
		t.Errorf("usage = %v, want 20", got)
	}

	// Counter went backwards: report 0 rather than garbage.
	if got := cpuUsage(cur, prev); got != 0 {
		t.Errorf("usage after wrap = %v, want 0", got)
	}
}

func TestParseMeminfo(t *testing.T) {
	content := `MemTotal:       16384000 kB
MemFree:         2048000 kB
MemAvailable:    8192000 kB
SwapTotal:       4096000 kB
SwapFree:        4000000 kB
`
	m := parseMeminfo(content)
	if m.total != 16384000*1024 {
		t.Errorf("total = %d, want %d", m.total, 16384000*1024)
	}
	if m.used != (16384000-8192000)*1024 {
		t.Errorf("used = %d, want total-available", m.used)
	}
	if m.swapUsed != (4096000-4000000)*1024 {
		t.Errorf("swapUsed = %d, want 96000 kB", m.swapUsed)
	}
}

func TestParseNetDev(t *testing.T) {
	content := `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo: 1000       10    0    0    0     0          0         0     1000      10    0    0    0     0       0          0
  eth0: 524288     400    0    0    0     0          0         0   262144     300    0    0    0     0       0          0
`
	counters := parseNetDev(content)
	if _, ok := counters["lo"]; ok {
		t.Error("loopback not skipped")
	}
	eth, ok := counters["eth0"]
	if !ok {
		t.Fatal("eth0 missing")
	}
	if eth.rx != 524288 || eth.tx != 262144 {
		t.Errorf("eth0 = rx %d / tx %d, want 524288/262144", eth.rx, eth.tx)
	}
}

func TestParseOSRelease(t *testing.T) {
	content := `NAME="Debian GNU/Linux"
VERSION_ID="12"
ID=debian
`
	name, version := parseOSRelease(content)
	if name != "Debian GNU/Linux" {
		t.Errorf("name = %q, want Debian GNU/Linux", name)
	}
	if version != "12" {
		t.Errorf("version = %q, want 12", version)
	}
}

func TestParseLoadAvg(t *testing.T) {
	load := parseLoadAvg("0.52 0.58 0.59 1/467 12345\n")
	want := [3]float64{0.52, 0.58, 0.59}
	if load != want {
		t.Errorf("load = %v, want %v", load, want)
	}
}

func TestParseUptime(t *testing.T) {
	if got := parseUptime("12345.67 54321.00\n"); got != 12345 {
		t.Errorf("uptime = %d, want 12345", got)
	}
	if got := parseUptime("garbage"); got != 0 {
		t.Errorf("uptime = %d, want 0 on bad input", got)
	}
}

//go:build linux

package agent

import (
	"net"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/panoptikon-net/panoptikon/internal/version"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// Collector assembles health reports from procfs.
type Collector struct {
	counters *CounterStore

	cycle    int
	prevCPU  cpuSample
	havePrev bool
}

// NewCollector creates a collector using the given counter store.
func NewCollector(counters *CounterStore) *Collector {
	return &Collector{counters: counters}
}

// Collect builds one report. The first call reports 0% CPU because usage
// needs two jiffy samples.
func (c *Collector) Collect(agentID string) *models.Report {
	rep := &models.Report{
		AgentID: agentID,
		Version: version.Version,
	}
	rep.Hostname, _ = os.Hostname()
	rep.OS = c.osInfo()
	rep.CPU = c.cpuInfo()
	rep.Memory = memoryInfo()
	rep.UptimeSeconds = uptime()

	// Disk and interface inventory is bulky; send it on the first report
	// and then every fifth cycle.
	if c.cycle%detailEvery == 0 {
		rep.Disks = diskInfo()
		rep.NetworkInterfaces = c.interfaceInfo()
		// A failed snapshot write only means bigger deltas after the
		// next restart.
		_ = c.counters.Save()
	}
	c.cycle++
	return rep
}

func (c *Collector) osInfo() models.OSInfo {
	info := models.OSInfo{Arch: runtime.GOARCH}
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		info.Name, info.Version = parseOSRelease(string(data))
	}
	if info.Name == "" {
		info.Name = "Linux"
	}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		info.Kernel = unix.ByteSliceToString(uts.Release[:])
	}
	return info
}

func (c *Collector) cpuInfo() models.CPUInfo {
	info := models.CPUInfo{Count: runtime.NumCPU()}

	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		info.LoadAvg = parseLoadAvg(string(data))
	}

	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return info
	}
	cur, ok := parseCPUStat(string(data))
	if !ok {
		return info
	}
	if c.havePrev {
		info.UsagePercent = cpuUsage(c.prevCPU, cur)
	}
	c.prevCPU = cur
	c.havePrev = true
	return info
}

func memoryInfo() models.MemoryInfo {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return models.MemoryInfo{}
	}
	m := parseMeminfo(string(data))
	return models.MemoryInfo{
		TotalBytes:     m.total,
		UsedBytes:      m.used,
		SwapTotalBytes: m.swapTotal,
		SwapUsedBytes:  m.swapUsed,
	}
}

func uptime() uint64 {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	return parseUptime(string(data))
}

// diskInfo reports real mounted filesystems, skipping pseudo mounts.
func diskInfo() []models.DiskInfo {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return nil
	}

	var disks []models.DiskInfo
	seen := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device, mount, fstype := fields[0], fields[1], fields[2]
		if !strings.HasPrefix(device, "/dev/") {
			continue
		}
		if _, dup := seen[mount]; dup {
			continue
		}
		seen[mount] = struct{}{}

		var st unix.Statfs_t
		if err := unix.Statfs(mount, &st); err != nil {
			continue
		}
		total := st.Blocks * uint64(st.Bsize)
		free := st.Bavail * uint64(st.Bsize)
		if total == 0 {
			continue
		}
		disks = append(disks, models.DiskInfo{
			Mount:      mount,
			Filesystem: fstype,
			TotalBytes: total,
			UsedBytes:  total - free,
		})
	}
	return disks
}

// interfaceInfo merges net.Interfaces metadata with /proc/net/dev byte
// counters and the persisted delta state.
func (c *Collector) interfaceInfo() []models.InterfaceInfo {
	counters := make(map[string]netDevCounters)
	if data, err := os.ReadFile("/proc/net/dev"); err == nil {
		counters = parseNetDev(string(data))
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []models.InterfaceInfo
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		state := "down"
		if iface.Flags&net.FlagUp != 0 {
			state = "up"
		}
		info := models.InterfaceInfo{
			Name:  iface.Name,
			MAC:   iface.HardwareAddr.String(),
			State: state,
		}
		if ctr, ok := counters[iface.Name]; ok {
			info.TxBytes = ctr.tx
			info.RxBytes = ctr.rx
			info.TxBytesDelta, info.RxBytesDelta = c.counters.Delta(iface.Name, ctr.tx, ctr.rx)
		}
		out = append(out, info)
	}
	return out
}

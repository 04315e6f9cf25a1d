//go:build !linux

package agent

import (
	"os"
	"runtime"

	"github.com/panoptikon-net/panoptikon/internal/version"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// Collector assembles health reports. Platforms without procfs only get
// the basics; full metrics need the Linux collector.
type Collector struct {
	counters *CounterStore
	cycle    int
}

// NewCollector creates a collector using the given counter store.
func NewCollector(counters *CounterStore) *Collector {
	return &Collector{counters: counters}
}

// Collect builds one report with host identity only.
func (c *Collector) Collect(agentID string) *models.Report {
	rep := &models.Report{
		AgentID: agentID,
		Version: version.Version,
	}
	rep.Hostname, _ = os.Hostname()
	rep.OS = models.OSInfo{Name: runtime.GOOS, Arch: runtime.GOARCH}
	rep.CPU = models.CPUInfo{Count: runtime.NumCPU()}
	c.cycle++
	return rep
}

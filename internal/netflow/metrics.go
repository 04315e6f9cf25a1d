package netflow

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panoptikon_netflow_flows_total",
		Help: "Flow records received",
	})
	packetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panoptikon_netflow_packets_total",
		Help: "NetFlow UDP packets received",
	})
	parseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panoptikon_netflow_parse_errors_total",
		Help: "NetFlow packets dropped due to parse failures",
	})
)

// Counters tracks collector totals for the stats endpoint. Prometheus gets
// the same numbers through the registry.
type Counters struct {
	flows       atomic.Uint64
	packets     atomic.Uint64
	parseErrors atomic.Uint64
}

func (c *Counters) addFlows(n uint64) {
	c.flows.Add(n)
	flowsTotal.Add(float64(n))
}

func (c *Counters) addPacket() {
	c.packets.Add(1)
	packetsTotal.Inc()
}

func (c *Counters) addParseError() {
	c.parseErrors.Add(1)
	parseErrorsTotal.Inc()
}

// Flows returns the number of flow records received since start.
func (c *Counters) Flows() uint64 { return c.flows.Load() }

// Packets returns the number of UDP packets received since start.
func (c *Counters) Packets() uint64 { return c.packets.Load() }

// ParseErrors returns the number of dropped packets since start.
func (c *Counters) ParseErrors() uint64 { return c.parseErrors.Load() }

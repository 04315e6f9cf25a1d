package netflow

import (
	"time"

	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// windowSeconds is the aggregation window. Byte totals collected over one
// window convert to bits per second as bytes*8/windowSeconds.
const windowSeconds = 60

// deviceTraffic accumulates byte totals for one device within a window.
type deviceTraffic struct {
	rxBytes uint64
	txBytes uint64
}

// Aggregator buckets flow octets by device over a wall-clock window. Not
// safe for concurrent use; the collector task owns it.
type Aggregator struct {
	window      map[string]*deviceTraffic
	windowStart time.Time
}

// NewAggregator creates an empty aggregator with the window starting now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		window:      make(map[string]*deviceTraffic),
		windowStart: time.Now(),
	}
}

// AddTx credits octets sent by the device.
func (a *Aggregator) AddTx(deviceID string, octets uint64) {
	a.bucket(deviceID).txBytes += octets
}

// AddRx credits octets received by the device.
func (a *Aggregator) AddRx(deviceID string, octets uint64) {
	a.bucket(deviceID).rxBytes += octets
}

func (a *Aggregator) bucket(deviceID string) *deviceTraffic {
	t, ok := a.window[deviceID]
	if !ok {
		t = &deviceTraffic{}
		a.window[deviceID] = t
	}
	return t
}

// Due reports whether the current window has rolled over.
func (a *Aggregator) Due(now time.Time) bool {
	return now.Sub(a.windowStart) >= windowSeconds*time.Second
}

// Flush converts the window's byte totals to samples and starts a new
// window. Devices with zero traffic in both directions produce no row.
func (a *Aggregator) Flush(now time.Time) []models.TrafficSample {
	samples := make([]models.TrafficSample, 0, len(a.window))
	for deviceID, t := range a.window {
		rxBps := int64(t.rxBytes) * 8 / windowSeconds
		txBps := int64(t.txBytes) * 8 / windowSeconds
		if rxBps == 0 && txBps == 0 {
			continue
		}
		samples = append(samples, models.TrafficSample{
			DeviceID:  deviceID,
			SampledAt: now.UTC(),
			RxBps:     rxBps,
			TxBps:     txBps,
			Source:    "netflow",
		})
	}
	a.window = make(map[string]*deviceTraffic)
	a.windowStart = now
	return samples
}

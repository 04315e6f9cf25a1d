package alerting

import (
	"context"
	"sync"

	"github.com/panoptikon-net/panoptikon/pkg/models"
)

// consecutiveWindows is how many back-to-back over-threshold windows a
// device must show before a high_bandwidth alert fires.
const consecutiveWindows = 3

// ThresholdSource supplies the per-device bandwidth threshold in bits per
// second. Zero disables the check for that device.
type ThresholdSource interface {
	BandwidthThreshold(ctx context.Context, deviceID string) (int64, error)
}

// BandwidthTrip describes one device crossing its threshold.
type BandwidthTrip struct {
	DeviceID    string
	Threshold   int64
	ObservedBps int64
}

// bandwidthTracker counts consecutive over-threshold windows per device.
// After a trip the counter resets, so a device that stays hot re-alerts
// only after another full run of windows.
type bandwidthTracker struct {
	thresholds ThresholdSource

	mu     sync.Mutex
	streak map[string]int
}

func newBandwidthTracker(thresholds ThresholdSource) *bandwidthTracker {
	return &bandwidthTracker{
		thresholds: thresholds,
		streak:     make(map[string]int),
	}
}

// Observe consumes one flush of samples and returns the devices that just
// completed their third consecutive over-threshold window.
func (t *bandwidthTracker) Observe(ctx context.Context, samples []models.TrafficSample) []BandwidthTrip {
	if t.thresholds == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var trips []BandwidthTrip
	for _, s := range samples {
		threshold, err := t.thresholds.BandwidthThreshold(ctx, s.DeviceID)
		if err != nil || threshold <= 0 {
			delete(t.streak, s.DeviceID)
			continue
		}

		total := s.RxBps + s.TxBps
		if total <= threshold {
			delete(t.streak, s.DeviceID)
			continue
		}

		t.streak[s.DeviceID]++
		if t.streak[s.DeviceID] >= consecutiveWindows {
			trips = append(trips, BandwidthTrip{
				DeviceID:    s.DeviceID,
				Threshold:   threshold,
				ObservedBps: total,
			})
			delete(t.streak, s.DeviceID)
		}
	}
	return trips
}

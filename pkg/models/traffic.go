package models

import "time"

// TrafficSample is one per-device bandwidth sample over a fixed window.
// Rates are bits per second and never negative.
type TrafficSample struct {
	DeviceID  string    `json:"device_id"`
	SampledAt time.Time `json:"sampled_at"`
	RxBps     int64     `json:"rx_bps"`
	TxBps     int64     `json:"tx_bps"`
	Source    string    `json:"source"` // "netflow" or "agent"
}

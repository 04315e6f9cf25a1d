package inventory

import "time"

// Event topics published by the Inventory module.
const (
	TopicDeviceNew     = "inventory.device.new"
	TopicDeviceOnline  = "inventory.device.online"
	TopicDeviceOffline = "inventory.device.offline"
	TopicIPChanged     = "inventory.device.ip_changed"
	TopicScanCompleted = "inventory.scan.completed"
)

// DeviceEvent is the payload for device lifecycle topics. OfflineSince is
// set on online transitions so consumers can tell a blip from a real outage.
type DeviceEvent struct {
	DeviceID     string     `json:"device_id"`
	MAC          string     `json:"mac"`
	IP           string     `json:"ip,omitempty"`
	Hostname     string     `json:"hostname,omitempty"`
	OfflineSince *time.Time `json:"offline_since,omitempty"`
}

// IPChangedEvent is the payload for TopicIPChanged.
type IPChangedEvent struct {
	DeviceID string `json:"device_id"`
	MAC      string `json:"mac"`
	OldIP    string `json:"old_ip"`
	NewIP    string `json:"new_ip"`
}

// ScanCompletedEvent reports a finished discovery tick.
type ScanCompletedEvent struct {
	HostsSeen   int           `json:"hosts_seen"`
	NewDevices  int           `json:"new_devices"`
	WentOffline int           `json:"went_offline"`
	Duration    time.Duration `json:"duration_ms"`
}

package models

import "time"

// Severity classifies an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert types with frozen severities.
const (
	AlertNewDevice     = "new_device"
	AlertDeviceOnline  = "device_online"
	AlertDeviceOffline = "device_offline"
	AlertAgentOffline  = "agent_offline"
	AlertHighBandwidth = "high_bandwidth"
)

// Alert is a persisted, user-visible notification derived from an event.
type Alert struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Severity       Severity   `json:"severity"`
	DeviceID       string     `json:"device_id,omitempty"`
	AgentID        string     `json:"agent_id,omitempty"`
	Message        string     `json:"message"`
	Details        string     `json:"details,omitempty"`
	IsRead         bool       `json:"is_read"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

package agenthub

import "time"

// Event topics published by the AgentHub module.
const (
	TopicAgentReport  = "agenthub.report.received"
	TopicAgentOffline = "agenthub.agent.offline"
)

// ReportEvent is the payload for TopicAgentReport.
type ReportEvent struct {
	AgentID    string    `json:"agent_id"`
	DeviceID   string    `json:"device_id,omitempty"`
	Hostname   string    `json:"hostname"`
	CPUPercent float64   `json:"cpu_percent"`
	MemUsed    uint64    `json:"mem_used"`
	MemTotal   uint64    `json:"mem_total"`
	ReportedAt time.Time `json:"reported_at"`
}

// OfflineEvent is the payload for TopicAgentOffline.
type OfflineEvent struct {
	AgentID      string    `json:"agent_id"`
	DeviceID     string    `json:"device_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	LastReportAt time.Time `json:"last_report_at"`
}

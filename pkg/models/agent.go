package models

import "time"

// Agent is a registered endpoint agent. APIKeyHash is a bcrypt hash of the
// plaintext key handed out once at creation time.
type Agent struct {
	ID           string     `json:"id"`
	DeviceID     string     `json:"device_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	APIKeyHash   string     `json:"-"`
	LastReportAt *time.Time `json:"last_report_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Report is the wire format an agent sends every report cycle. Unknown
// fields in incoming frames are ignored.
type Report struct {
	AgentID           string          `json:"agent_id"`
	Timestamp         time.Time       `json:"timestamp"`
	Version           string          `json:"version"`
	Hostname          string          `json:"hostname"`
	OS                OSInfo          `json:"os"`
	UptimeSeconds     uint64          `json:"uptime_seconds"`
	CPU               CPUInfo         `json:"cpu"`
	Memory            MemoryInfo      `json:"memory"`
	Disks             []DiskInfo      `json:"disks,omitempty"`
	NetworkInterfaces []InterfaceInfo `json:"network_interfaces,omitempty"`
}

// OSInfo describes the agent host's operating system.
type OSInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Kernel  string `json:"kernel"`
	Arch    string `json:"arch"`
}

// CPUInfo carries processor load figures.
type CPUInfo struct {
	Count        int        `json:"count"`
	UsagePercent float64    `json:"usage_percent"`
	LoadAvg      [3]float64 `json:"load_avg"`
}

// MemoryInfo carries RAM and swap usage in bytes.
type MemoryInfo struct {
	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	SwapTotalBytes uint64 `json:"swap_total_bytes"`
	SwapUsedBytes  uint64 `json:"swap_used_bytes"`
}

// DiskInfo describes one mounted filesystem.
type DiskInfo struct {
	Mount      string `json:"mount"`
	Filesystem string `json:"filesystem"`
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
}

// InterfaceInfo describes one network interface with cumulative counters
// and the deltas since the previous report.
type InterfaceInfo struct {
	Name         string `json:"name"`
	MAC          string `json:"mac"`
	TxBytes      uint64 `json:"tx_bytes"`
	RxBytes      uint64 `json:"rx_bytes"`
	TxBytesDelta uint64 `json:"tx_bytes_delta"`
	RxBytesDelta uint64 `json:"rx_bytes_delta"`
	State        string `json:"state"`
}

// Ack is the server's reply to a report frame.
type Ack struct {
	Status string `json:"status"`
}

// AgentReport is one system-health report as received from an agent.
// ReportedAt is the server's wall clock at receipt, never client-supplied.
type AgentReport struct {
	AgentID    string    `json:"agent_id"`
	ReportedAt time.Time `json:"reported_at"`
	Hostname   string    `json:"hostname"`
	OSName     string    `json:"os_name"`
	OSVersion  string    `json:"os_version"`
	CPUPercent float64   `json:"cpu_percent"`
	MemUsed    uint64    `json:"mem_used"`
	MemTotal   uint64    `json:"mem_total"`
	Disks      string    `json:"disks"`      // raw JSON array from the report
	Interfaces string    `json:"interfaces"` // raw JSON array from the report
}

// Package ws streams catalogue and alert events to browser clients over
// WebSocket.
package ws

import "time"

// Message types pushed to UI clients.
const (
	MessageDeviceNew     = "device_new"
	MessageDeviceUp      = "device_up"
	MessageDeviceDown    = "device_down"
	MessageIPChanged     = "ip_changed"
	MessageAlertCreated  = "alert_created"
	MessageAgentReport   = "agent_report"
	MessageScanCompleted = "scan_completed"
)

// Message is the envelope for all UI WebSocket frames.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

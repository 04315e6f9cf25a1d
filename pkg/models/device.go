// Package models holds the shared entity types for the Panoptikon catalogue.
package models

import (
	"strings"
	"time"
)

// Device is a catalogued LAN host, keyed by canonical MAC.
type Device struct {
	ID                 string     `json:"id"`
	MAC                string     `json:"mac"`
	Hostname           string     `json:"hostname,omitempty"`
	Vendor             string     `json:"vendor,omitempty"`
	Icon               string     `json:"icon"`
	Notes              string     `json:"notes,omitempty"`
	IsKnown            bool       `json:"is_known"`
	IsFavorite         bool       `json:"is_favorite"`
	IsOnline           bool       `json:"is_online"`
	FirstSeenAt        time.Time  `json:"first_seen_at"`
	LastSeenAt         time.Time  `json:"last_seen_at"`
	OSFamily           string     `json:"os_family,omitempty"`
	OSVersion          string     `json:"os_version,omitempty"`
	DeviceType         string     `json:"device_type,omitempty"`
	DeviceBrand        string     `json:"device_brand,omitempty"`
	DeviceModel        string     `json:"device_model,omitempty"`
	EnrichmentSource   string     `json:"enrichment_source,omitempty"`
	EnrichmentCorrected bool      `json:"enrichment_corrected"`
	MDNSServices       string     `json:"mdns_services,omitempty"` // comma-joined service types
	MutedUntil         *time.Time `json:"muted_until,omitempty"`
	CurrentIP          string     `json:"current_ip,omitempty"`
}

// Muted reports whether the device's alert mute window covers now.
func (d *Device) Muted(now time.Time) bool {
	return d.MutedUntil != nil && d.MutedUntil.After(now)
}

// DeviceIP records one IP assignment for a device. At most one row per
// device carries IsCurrent=true; older assignments stay as history.
type DeviceIP struct {
	DeviceID  string    `json:"device_id"`
	IP        string    `json:"ip"`
	IsCurrent bool      `json:"is_current"`
	SeenAt    time.Time `json:"seen_at"`
}

// DeviceEvent is an append-only state transition record.
type DeviceEvent struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	EventType  EventType `json:"event_type"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventType enumerates device state transitions.
type EventType string

const (
	EventNew       EventType = "new"
	EventOnline    EventType = "online"
	EventOffline   EventType = "offline"
	EventIPChanged EventType = "ip_changed"
)

// NormalizeMAC canonicalizes a MAC address to upper-case colon-separated
// form (AA:BB:CC:DD:EE:FF). Dashes and dots are accepted as input separators.
func NormalizeMAC(mac string) string {
	s := strings.ToUpper(strings.TrimSpace(mac))
	s = strings.ReplaceAll(s, "-", ":")
	s = strings.ReplaceAll(s, ".", "")
	if !strings.Contains(s, ":") && len(s) == 12 {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(s[i : i+2])
		}
		return b.String()
	}
	// Pad single-digit octets (darwin arp output prints "0:1a:2b:...").
	parts := strings.Split(s, ":")
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

// Broadcast and all-zeros MACs are never catalogued.
const (
	MACBroadcast = "FF:FF:FF:FF:FF:FF"
	MACZero      = "00:00:00:00:00:00"
)

// ValidMAC reports whether mac (already normalized) identifies a real host.
func ValidMAC(mac string) bool {
	if mac == "" || mac == MACBroadcast || mac == MACZero {
		return false
	}
	return len(mac) == 17
}

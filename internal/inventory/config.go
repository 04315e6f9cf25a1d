package inventory

import "time"

// Config holds the Inventory module's settings.
type Config struct {
	// ScanInterval is the discovery tick period.
	ScanInterval time.Duration
	// OfflineGrace is how long after last_seen_at a device stays online.
	OfflineGrace time.Duration
	// Subnets restricts discovery to these CIDR ranges; empty means all.
	Subnets []string
	// MDNSEnabled turns on the passive mDNS browser.
	MDNSEnabled bool
	// ProbeEnabled turns on the on-demand ICMP probe used for TTL
	// fingerprinting during enrichment.
	ProbeEnabled bool
}

// DefaultConfig returns the default inventory configuration.
func DefaultConfig() Config {
	return Config{
		ScanInterval: 60 * time.Second,
		OfflineGrace: 300 * time.Second,
		MDNSEnabled:  true,
		ProbeEnabled: true,
	}
}

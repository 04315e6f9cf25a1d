package inventory

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/enrich"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// ARPSource snapshots reachable (ip, mac) pairs.
type ARPSource interface {
	ReadTable(ctx context.Context) (map[string]string, error)
}

// Loop is the discovery loop: it reconciles ARP snapshots against the
// device catalogue, emits lifecycle events, and dispatches enrichment.
type Loop struct {
	store  *Store
	arp    ARPSource
	oui    OUIResolver
	prober Prober // nil disables TTL probing
	bus    plugin.EventBus
	cfg    Config
	logger *zap.Logger

	// lookupAddr is swappable for tests; defaults to net.LookupAddr.
	lookupAddr func(string) ([]string, error)

	faultLogged bool // one log line per fault window
}

// NewLoop wires a discovery loop.
func NewLoop(store *Store, arp ARPSource, oui OUIResolver, prober Prober, bus plugin.EventBus, cfg Config, logger *zap.Logger) *Loop {
	return &Loop{
		store:      store,
		arp:        arp,
		oui:        oui,
		prober:     prober,
		bus:        bus,
		cfg:        cfg,
		logger:     logger,
		lookupAddr: net.LookupAddr,
	}
}

// Run ticks until the context is cancelled. Each tick is independent;
// failure in one does not affect the next.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.ScanInterval)
	defer ticker.Stop()

	l.logger.Info("discovery loop started",
		zap.Duration("interval", l.cfg.ScanInterval),
		zap.Duration("offline_grace", l.cfg.OfflineGrace),
	)

	// First tick immediately so a fresh start populates the catalogue.
	l.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("discovery loop stopped")
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one discovery pass.
func (l *Loop) Tick(ctx context.Context) {
	start := time.Now()

	table, err := l.arp.ReadTable(ctx)
	if err != nil {
		// Skip the tick entirely: marking devices offline because the scan
		// source failed would be a false transition.
		if !l.faultLogged {
			l.logger.Error("scan source unavailable, skipping ticks until it recovers", zap.Error(err))
			l.faultLogged = true
		}
		return
	}
	if l.faultLogged {
		l.logger.Info("scan source recovered")
		l.faultLogged = false
	}

	var (
		newDevices  int
		ipChangedBy = make(map[string]bool) // one ip_changed per device per tick
	)
	for ip, mac := range table {
		sg, err := l.store.UpsertSighting(ctx, mac, ip)
		if err != nil {
			l.logger.Error("failed to record sighting",
				zap.String("mac", mac), zap.String("ip", ip), zap.Error(err))
			continue
		}

		switch {
		case sg.WasNew:
			newDevices++
			l.recordAndPublish(ctx, sg.DeviceID, models.EventNew, TopicDeviceNew,
				DeviceEvent{DeviceID: sg.DeviceID, MAC: mac, IP: ip})
			l.enrichDevice(ctx, sg.DeviceID, mac, ip)
		case sg.WasOffline:
			since := sg.PrevLastSeen
			l.recordAndPublish(ctx, sg.DeviceID, models.EventOnline, TopicDeviceOnline,
				DeviceEvent{DeviceID: sg.DeviceID, MAC: mac, IP: ip, OfflineSince: &since})
		}

		if sg.IPChanged && !ipChangedBy[sg.DeviceID] {
			ipChangedBy[sg.DeviceID] = true
			l.recordAndPublishIP(ctx, sg.DeviceID, mac, sg.OldIP, ip)
		}
	}

	stale, err := l.store.MarkStaleOffline(ctx, l.cfg.OfflineGrace)
	if err != nil {
		l.logger.Error("failed to mark stale devices offline", zap.Error(err))
	}
	for i := range stale {
		l.recordAndPublish(ctx, stale[i].ID, models.EventOffline, TopicDeviceOffline,
			DeviceEvent{DeviceID: stale[i].ID, MAC: stale[i].MAC, Hostname: stale[i].Hostname})
	}

	l.publish(ctx, TopicScanCompleted, ScanCompletedEvent{
		HostsSeen:   len(table),
		NewDevices:  newDevices,
		WentOffline: len(stale),
		Duration:    time.Since(start),
	})

	l.logger.Debug("discovery tick complete",
		zap.Int("hosts", len(table)),
		zap.Int("new", newDevices),
		zap.Int("offline", len(stale)),
		zap.Duration("took", time.Since(start)),
	)
}

// enrichDevice gathers passive signals for a newly seen device and applies
// the classification result.
func (l *Loop) enrichDevice(ctx context.Context, deviceID, mac, ip string) {
	sig := enrich.Signals{}

	if l.oui != nil {
		sig.Vendor = l.oui.Lookup(mac)
		if sig.Vendor != "" {
			if err := l.store.SetVendor(ctx, deviceID, sig.Vendor); err != nil {
				l.logger.Warn("failed to store vendor", zap.String("device_id", deviceID), zap.Error(err))
			}
		}
	}

	if names, err := l.lookupAddr(ip); err == nil && len(names) > 0 {
		sig.Hostname = strings.TrimSuffix(names[0], ".")
		if err := l.store.SetHostname(ctx, deviceID, sig.Hostname); err != nil {
			l.logger.Warn("failed to store hostname", zap.String("device_id", deviceID), zap.Error(err))
		}
	}

	if l.prober != nil {
		sig.TTL = l.prober.ProbeTTL(ctx, ip)
	}

	result := enrich.Enrich(sig)
	if result.Empty() {
		return
	}
	if err := l.store.ApplyEnrichment(ctx, deviceID, result); err != nil {
		l.logger.Warn("failed to apply enrichment", zap.String("device_id", deviceID), zap.Error(err))
		return
	}
	l.logger.Debug("device enriched",
		zap.String("device_id", deviceID),
		zap.String("source", result.Source),
		zap.String("device_type", result.DeviceType),
	)
}

func (l *Loop) recordAndPublish(ctx context.Context, deviceID string, et models.EventType, topic string, payload DeviceEvent) {
	if err := l.store.RecordEvent(ctx, deviceID, string(et), payload.IP); err != nil {
		l.logger.Warn("failed to record device event",
			zap.String("device_id", deviceID), zap.Error(err))
	}
	l.publish(ctx, topic, payload)
}

func (l *Loop) recordAndPublishIP(ctx context.Context, deviceID, mac, oldIP, newIP string) {
	detail := oldIP + " -> " + newIP
	if err := l.store.RecordEvent(ctx, deviceID, string(models.EventIPChanged), detail); err != nil {
		l.logger.Warn("failed to record device event",
			zap.String("device_id", deviceID), zap.Error(err))
	}
	l.publish(ctx, TopicIPChanged, IPChangedEvent{
		DeviceID: deviceID, MAC: mac, OldIP: oldIP, NewIP: newIP,
	})
}

func (l *Loop) publish(ctx context.Context, topic string, payload any) {
	if l.bus == nil {
		return
	}
	l.bus.PublishAsync(ctx, plugin.Event{
		Topic:     topic,
		Source:    "inventory",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

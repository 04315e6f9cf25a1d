package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/enrich"
)

// mdnsServiceTypes are the service types the browser queries. Kept to the
// ones the enrichment engine can interpret.
var mdnsServiceTypes = []string{
	"_apple-mobdev2._tcp",
	"_companion-link._tcp",
	"_airplay._tcp",
	"_raop._tcp",
	"_googlecast._tcp",
	"_spotify-connect._tcp",
	"_sonos._tcp",
	"_ipp._tcp",
	"_ipps._tcp",
	"_printer._tcp",
	"_pdl-datastream._tcp",
	"_afpovertcp._tcp",
	"_smb._tcp",
	"_homekit._tcp",
	"_hap._tcp",
	"_workstation._tcp",
	"_ssh._tcp",
	"_smartview._tcp",
}

// MDNSBrowser passively collects Bonjour service advertisements and feeds
// them into the device catalogue and the enrichment engine.
type MDNSBrowser struct {
	store    *Store
	logger   *zap.Logger
	interval time.Duration
	browse   time.Duration
}

// NewMDNSBrowser creates the browser. It sweeps all known service types
// every interval, listening browse seconds per type.
func NewMDNSBrowser(store *Store, logger *zap.Logger) *MDNSBrowser {
	return &MDNSBrowser{
		store:    store,
		logger:   logger,
		interval: 5 * time.Minute,
		browse:   4 * time.Second,
	}
}

// Run sweeps until the context is cancelled.
func (b *MDNSBrowser) Run(ctx context.Context) {
	b.logger.Info("mdns browser started", zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("mdns browser stopped")
			return
		case <-ticker.C:
			b.sweep(ctx)
		}
	}
}

// sweep browses every service type once and applies what it learned.
func (b *MDNSBrowser) sweep(ctx context.Context) {
	// ip -> set of service types, ip -> hostname
	services := make(map[string]map[string]struct{})
	hostnames := make(map[string]string)

	for _, svcType := range mdnsServiceTypes {
		if ctx.Err() != nil {
			return
		}
		b.browseType(ctx, svcType, services, hostnames)
	}

	for ip, svcSet := range services {
		deviceID, err := b.store.DeviceIDByIP(ctx, ip)
		if err != nil {
			b.logger.Warn("mdns device lookup failed", zap.String("ip", ip), zap.Error(err))
			continue
		}
		if deviceID == "" {
			continue // not in the catalogue yet; the discovery loop will get it
		}

		list := make([]string, 0, len(svcSet))
		for svc := range svcSet {
			list = append(list, svc)
		}
		sort.Strings(list)
		joined := strings.Join(list, ",")

		if err := b.store.SetMDNSServices(ctx, deviceID, joined); err != nil {
			b.logger.Warn("failed to store mdns services", zap.String("device_id", deviceID), zap.Error(err))
			continue
		}
		if host := hostnames[ip]; host != "" {
			if err := b.store.SetHostname(ctx, deviceID, host); err != nil {
				b.logger.Warn("failed to store mdns hostname", zap.String("device_id", deviceID), zap.Error(err))
			}
		}

		result := enrich.Enrich(enrich.Signals{
			Hostname:     hostnames[ip],
			MDNSServices: list,
		})
		if result.Empty() {
			continue
		}
		if err := b.store.ApplyEnrichment(ctx, deviceID, result); err != nil {
			b.logger.Warn("failed to apply mdns enrichment", zap.String("device_id", deviceID), zap.Error(err))
		}
	}
}

func (b *MDNSBrowser) browseType(ctx context.Context, svcType string, services map[string]map[string]struct{}, hostnames map[string]string) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		b.logger.Debug("mdns resolver unavailable", zap.Error(err))
		return
	}

	browseCtx, cancel := context.WithTimeout(ctx, b.browse)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			for _, addr := range entry.AddrIPv4 {
				ip := addr.String()
				if services[ip] == nil {
					services[ip] = make(map[string]struct{})
				}
				services[ip][svcType] = struct{}{}
				if host := strings.TrimSuffix(entry.HostName, ".local."); host != "" && hostnames[ip] == "" {
					hostnames[ip] = host
				}
			}
		}
	}()

	if err := resolver.Browse(browseCtx, svcType, "local.", entries); err != nil {
		b.logger.Debug("mdns browse failed", zap.String("service", svcType), zap.Error(err))
		return
	}
	<-browseCtx.Done()
}

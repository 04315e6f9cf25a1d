// Package inventory implements device discovery and cataloguing: the ARP
// discovery loop, the device/IP/event store, passive mDNS collection, and
// the device CRUD API.
package inventory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the Inventory plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	store    *Store
	bus      plugin.EventBus
	loop     *Loop
	mdns     *MDNSBrowser
	prober   Prober
	portscan PortScanner

	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc
}

// New creates a new Inventory plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "inventory",
		Version:     "0.1.0",
		Description: "Device discovery and catalogue",
		Required:    true,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if v := deps.Config.GetInt("interval_seconds"); v > 0 {
			m.cfg.ScanInterval = time.Duration(v) * time.Second
		}
		if v := deps.Config.GetInt("offline_grace_seconds"); v > 0 {
			m.cfg.OfflineGrace = time.Duration(v) * time.Second
		}
		if v := deps.Config.GetStringSlice("subnets"); len(v) > 0 {
			m.cfg.Subnets = v
		}
		if deps.Config.IsSet("mdns_enabled") {
			m.cfg.MDNSEnabled = deps.Config.GetBool("mdns_enabled")
		}
		if deps.Config.IsSet("probe_enabled") {
			m.cfg.ProbeEnabled = deps.Config.GetBool("probe_enabled")
		}
	}

	if err := deps.Store.Migrate(ctx, "inventory", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB(), deps.Store)

	arp := NewARPReader(m.logger.Named("arp"), m.cfg.Subnets)
	m.prober = NewICMPProber(2*time.Second, m.logger.Named("probe"))
	m.portscan = NewNmapScanner(60*time.Second, m.logger.Named("portscan"))

	// On-demand probes stay available even when per-tick probing is off.
	var loopProber Prober
	if m.cfg.ProbeEnabled {
		loopProber = m.prober
	}
	m.loop = NewLoop(m.store, arp, NewStaticOUI(), loopProber, m.bus, m.cfg, m.logger.Named("loop"))

	if m.cfg.MDNSEnabled {
		m.mdns = NewMDNSBrowser(m.store, m.logger.Named("mdns"))
	}

	m.logger.Info("inventory module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.runCtx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop.Run(m.runCtx)
	}()

	if m.mdns != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.mdns.Run(m.runCtx)
		}()
	}

	m.logger.Info("inventory module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("inventory module stopped")
	return nil
}

// Store exposes the device store for components wired in the composition
// root (NetFlow resolution, agent device linking, mute checks).
func (m *Module) Store() *Store {
	return m.store
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "PUT", Path: "/devices/{id}", Handler: m.handleUpdateDevice},
		{Method: "DELETE", Path: "/devices/{id}", Handler: m.handleDeleteDevice},
		{Method: "POST", Path: "/devices/{id}/mute", Handler: m.handleMuteDevice},
		{Method: "POST", Path: "/devices/{id}/probe", Handler: m.handleProbeDevice},
		{Method: "POST", Path: "/devices/{id}/portscan", Handler: m.handlePortScanDevice},
		{Method: "GET", Path: "/devices/{id}/ips", Handler: m.handleListIPs},
		{Method: "GET", Path: "/devices/{id}/events", Handler: m.handleListEvents},
		{Method: "POST", Path: "/scan", Handler: m.handleScanNow},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	total, online, err := m.store.CountDevices(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"error": err.Error()}}
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"devices":        strconv.Itoa(total),
			"devices_online": strconv.Itoa(online),
		},
	}
}

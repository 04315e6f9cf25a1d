// Package agenthub receives system-health reports from endpoint agents
// over WebSocket, persists them, and tracks agent liveness.
package agenthub

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/auth"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Config holds agent hub settings.
type Config struct {
	// ReportInterval is the expected cadence of agent reports. Sessions
	// are torn down after three missed intervals.
	ReportInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{ReportInterval: 30 * time.Second}
}

// Module implements the agent hub plugin.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	store   *Store
	bus     plugin.EventBus
	devices DeviceLookup
	limiter *auth.FailLimiter
	hub     *SessionHub
	live    *liveness

	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc
}

// New creates the agent hub plugin. devices may be nil when discovery is
// unavailable; agents then stay unlinked until set manually. limiter rate
// limits failed websocket authentications per remote address; nil disables.
func New(devices DeviceLookup, limiter *auth.FailLimiter) *Module {
	return &Module{devices: devices, limiter: limiter, hub: NewSessionHub()}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "agents",
		Version:      "0.1.0",
		Description:  "Endpoint agent report hub",
		Dependencies: []string{"inventory"},
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if v := deps.Config.GetInt("report_interval_seconds"); v > 0 {
			m.cfg.ReportInterval = time.Duration(v) * time.Second
		}
	}

	if err := deps.Store.Migrate(ctx, "agents", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB(), deps.Store)
	m.live = newLiveness(m.store, m.bus, m.logger.Named("liveness"))

	m.logger.Info("agent hub initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.runCtx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.live.run(m.runCtx)
	}()

	m.logger.Info("agent hub started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("agent hub stopped")
	return nil
}

// Store exposes the agent store for other components (retention sweeps).
func (m *Module) Store() *Store {
	return m.store
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "", Handler: m.handleListAgents},
		{Method: "POST", Path: "", Handler: m.handleCreateAgent},
		{Method: "GET", Path: "/{id}", Handler: m.handleGetAgent},
		{Method: "PUT", Path: "/{id}", Handler: m.handleUpdateAgent},
		{Method: "DELETE", Path: "/{id}", Handler: m.handleDeleteAgent},
		{Method: "GET", Path: "/{id}/reports/latest", Handler: m.handleLatestReport},
		{Method: "GET", Path: "/{id}/reports", Handler: m.handleListReports},
	}
}

// RegisterRoutes mounts the agent WebSocket endpoint outside the module
// prefix; deployed agents dial this fixed path.
func (m *Module) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/agent/ws", m.handleAgentWS)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	n, err := m.store.CountAgents(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"error": err.Error()}}
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"agents":    strconv.Itoa(n),
			"connected": strconv.Itoa(m.hub.Count()),
		},
	}
}

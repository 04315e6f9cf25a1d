// Package alerting derives persisted alerts from catalogue events: new
// and offline devices, silent agents, and sustained high bandwidth.
package alerting

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the alerting plugin.
type Module struct {
	logger     *zap.Logger
	store      *Store
	engine     *Engine
	bus        plugin.EventBus
	mutes      MuteChecker
	thresholds ThresholdSource
}

// New creates the alerting plugin. mutes and thresholds are supplied by
// the inventory and settings components.
func New(mutes MuteChecker, thresholds ThresholdSource) *Module {
	return &Module{mutes: mutes, thresholds: thresholds}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "alerts",
		Version:      "0.1.0",
		Description:  "Alert derivation and lifecycle",
		Dependencies: []string{"inventory"},
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "alerts", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB(), deps.Store)
	m.engine = NewEngine(m.store, m.mutes, m.thresholds, m.bus, m.logger.Named("engine"))

	m.logger.Info("alerting module initialized")
	return nil
}

// Start subscribes the engine; subscriptions live for the process, the
// bus has no teardown between Stop and a restart.
func (m *Module) Start(_ context.Context) error {
	m.engine.subscribe()
	m.logger.Info("alerting module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("alerting module stopped")
	return nil
}

// Store exposes the alert store for retention sweeps.
func (m *Module) Store() *Store {
	return m.store
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "", Handler: m.handleListAlerts},
		{Method: "GET", Path: "/{id}", Handler: m.handleGetAlert},
		{Method: "POST", Path: "/{id}/read", Handler: m.handleMarkRead},
		{Method: "POST", Path: "/{id}/ack", Handler: m.handleAcknowledge},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	unread, err := m.store.CountUnread(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"error": err.Error()}}
	}
	return plugin.HealthStatus{
		Status:  "ok",
		Details: map[string]string{"unread": strconv.Itoa(unread)},
	}
}

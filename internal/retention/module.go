package retention

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.Plugin = (*Module)(nil)

// Module runs the retention sweeper as a plugin.
type Module struct {
	logger  *zap.Logger
	sweeper *Sweeper

	alerts   AlertPruner
	sessions SessionPruner
	clock    VacuumClock

	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc
}

// New creates the retention plugin. Any collaborator may be nil; its
// sweep step is skipped.
func New(alerts AlertPruner, sessions SessionPruner, clock VacuumClock) *Module {
	return &Module{alerts: alerts, sessions: sessions, clock: clock}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "retention",
		Version:     "0.1.0",
		Description: "Ages out bounded-retention rows and compacts the database",
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	w := DefaultWindows()
	if deps.Config != nil {
		if v := deps.Config.GetInt("traffic_samples_hours"); v > 0 {
			w.TrafficSamples = time.Duration(v) * time.Hour
		}
		if v := deps.Config.GetInt("agent_reports_days"); v > 0 {
			w.AgentReports = time.Duration(v) * 24 * time.Hour
		}
		if v := deps.Config.GetInt("device_events_days"); v > 0 {
			w.DeviceEvents = time.Duration(v) * 24 * time.Hour
		}
		if v := deps.Config.GetInt("alerts_days"); v > 0 {
			w.Alerts = time.Duration(v) * 24 * time.Hour
		}
	}

	var compact Compactor
	if c, ok := deps.Store.(Compactor); ok {
		compact = c
	}
	m.sweeper = NewSweeper(deps.Store.DB(), w, m.alerts, m.sessions, compact, m.clock, m.logger.Named("sweeper"))

	m.logger.Info("retention module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweeper.Run(m.runCtx)
	}()
	m.logger.Info("retention module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("retention module stopped")
	return nil
}

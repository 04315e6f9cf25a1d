package netflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/server"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the NetFlow collector plugin. It depends on the
// inventory module for IP-to-device resolution.
type Module struct {
	logger   *zap.Logger
	store    *Store
	bus      plugin.EventBus
	counters Counters
	resolver DeviceResolver

	enabled bool
	port    int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a new NetFlow plugin. The resolver is injected by the
// composition root from the inventory module's store.
func New(resolver DeviceResolver) *Module {
	return &Module{resolver: resolver}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "netflow",
		Version:      "0.1.0",
		Description:  "NetFlow v5 bandwidth telemetry",
		Dependencies: []string{"inventory"},
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.enabled = true
	m.port = 9995
	if deps.Config != nil {
		if deps.Config.IsSet("netflow_enabled") {
			m.enabled = deps.Config.GetBool("netflow_enabled")
		}
		if v := deps.Config.GetInt("netflow_port"); v > 0 {
			m.port = v
		}
	}

	if err := deps.Store.Migrate(ctx, "netflow", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB(), deps.Store)

	m.logger.Info("netflow module initialized",
		zap.Bool("enabled", m.enabled), zap.Int("port", m.port))
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if !m.enabled {
		m.logger.Info("netflow collector disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	collector := NewCollector(
		fmt.Sprintf("0.0.0.0:%d", m.port),
		m.resolver, m.store, m.bus, &m.counters,
		m.logger.Named("collector"),
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := collector.Run(runCtx); err != nil {
			// Bind failure kills the collector task, not the process.
			m.logger.Error("netflow collector exited", zap.Error(err))
		}
	}()

	m.logger.Info("netflow module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("netflow module stopped")
	return nil
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/devices/{id}/samples", Handler: m.handleDeviceSamples},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"enabled":      strconv.FormatBool(m.enabled),
			"flows":        strconv.FormatUint(m.counters.Flows(), 10),
			"packets":      strconv.FormatUint(m.counters.Packets(), 10),
			"parse_errors": strconv.FormatUint(m.counters.ParseErrors(), 10),
		},
	}
}

func (m *Module) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{
		"flows_received": m.counters.Flows(),
		"packets":        m.counters.Packets(),
		"parse_errors":   m.counters.ParseErrors(),
	})
}

func (m *Module) handleDeviceSamples(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 168 {
			server.BadRequest(w, "hours must be between 1 and 168")
			return
		}
		hours = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	samples, err := m.store.ListSamples(r.Context(), r.PathValue("id"), since)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("failed to list samples", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

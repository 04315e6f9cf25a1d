// Command panoptikond runs the Panoptikon server: device discovery,
// NetFlow collection, agent report ingestion, alerting, and the REST +
// WebSocket API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/agenthub"
	"github.com/panoptikon-net/panoptikon/internal/alerting"
	"github.com/panoptikon-net/panoptikon/internal/audit"
	"github.com/panoptikon-net/panoptikon/internal/auth"
	"github.com/panoptikon-net/panoptikon/internal/config"
	"github.com/panoptikon-net/panoptikon/internal/event"
	"github.com/panoptikon-net/panoptikon/internal/inventory"
	"github.com/panoptikon-net/panoptikon/internal/netflow"
	"github.com/panoptikon-net/panoptikon/internal/registry"
	"github.com/panoptikon-net/panoptikon/internal/retention"
	"github.com/panoptikon-net/panoptikon/internal/server"
	"github.com/panoptikon-net/panoptikon/internal/settings"
	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/internal/version"
	"github.com/panoptikon-net/panoptikon/internal/webhook"
	"github.com/panoptikon-net/panoptikon/internal/ws"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// moduleSection maps module names to their config file sections.
var moduleSection = map[string]string{
	"inventory": "scanner",
	"netflow":   "scanner",
	"agents":    "agents",
	"alerts":    "alerts",
	"retention": "retention",
	"webhook":   "alerts",
}

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("panoptikon server starting", zap.String("version", version.Short()))
	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	path := *dbPath
	if path == "" {
		path = viperCfg.GetString("db_path")
	}
	db, err := store.New(path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database initialized", zap.String("path", path))

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared stores wired outside the plugin lifecycle.
	settingsStore, err := settings.NewStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize settings store", zap.Error(err))
	}
	sessions, err := auth.NewSessionStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize session store", zap.Error(err))
	}
	auditLog, err := audit.NewLog(ctx, db, logger.Named("audit"))
	if err != nil {
		logger.Fatal("failed to initialize audit log", zap.Error(err))
	}

	// Shared across the login endpoint and the agent websocket upgrade.
	failPerMinute := viperCfg.GetFloat64("auth.failed_auth_per_minute")
	if failPerMinute <= 0 {
		failPerMinute = 5
	}
	limiter := auth.NewFailLimiter(failPerMinute, 10)

	invMod := inventory.New()
	netflowMod := netflow.New(&deviceResolverAdapter{inv: invMod})
	agentsMod := agenthub.New(&deviceLookupAdapter{inv: invMod}, limiter)
	alertsMod := alerting.New(&muteAdapter{inv: invMod}, settingsStore)
	webhookMod := webhook.New(settingsStore)
	retentionMod := retention.New(&alertPrunerAdapter{alerts: alertsMod}, sessions, settingsStore)

	modules := []plugin.Plugin{invMod, netflowMod, agentsMod, alertsMod, webhookMod, retentionMod}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register module", zap.Error(err))
		}
	}
	if err := reg.Validate(); err != nil {
		logger.Fatal("module validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		section := moduleSection[name]
		if section == "" {
			section = name
		}
		return plugin.Dependencies{
			Config: cfg.Sub(section),
			Logger: logger.Named(name),
			Store:  db,
			Bus:    bus,
		}
	}); err != nil {
		logger.Fatal("failed to initialize modules", zap.Error(err))
	}
	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	// Auth: UI sessions plus short-lived WebSocket tokens.
	jwtSecret := viperCfg.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatal("failed to generate JWT secret", zap.Error(err))
		}
		jwtSecret = hex.EncodeToString(b)
		logger.Info("using auto-generated JWT secret; set auth.jwt_secret to persist WS tokens across restarts")
	}
	wsTokenTTL := viperCfg.GetDuration("auth.ws_token_ttl")
	if wsTokenTTL == 0 {
		wsTokenTTL = time.Minute
	}
	sessionTTL := time.Duration(viperCfg.GetInt("auth.session_expiry_seconds")) * time.Second
	if sessionTTL == 0 {
		sessionTTL = 24 * time.Hour
	}
	tokens := auth.NewTokenService([]byte(jwtSecret), wsTokenTTL)
	authHandler := auth.NewHandler(sessions, tokens, settingsStore, limiter, auditLog, sessionTTL, logger.Named("auth"))

	wsHandler := ws.NewHandler(tokens, bus, logger.Named("ws"))
	settingsHandler := settings.NewHandler(settingsStore, auditLog, logger.Named("settings"))
	auditHandler := audit.NewHandler(auditLog, logger.Named("audit"))

	addr := *listen
	if addr == "" {
		addr = viperCfg.GetString("listen")
	}
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, reg, logger.Named("server"), readyCheck,
		authHandler, wsHandler, settingsHandler, auditHandler, agentsMod)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("panoptikon server ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("panoptikon server stopped")
}

// deviceResolverAdapter maps traffic sample IPs to devices. Lives here to
// avoid coupling netflow -> inventory.
type deviceResolverAdapter struct {
	inv *inventory.Module
}

func (a *deviceResolverAdapter) DeviceIDByIP(ctx context.Context, ip string) (string, error) {
	return a.inv.Store().DeviceIDByIP(ctx, ip)
}

// deviceLookupAdapter links agents to discovered devices.
type deviceLookupAdapter struct {
	inv *inventory.Module
}

func (a *deviceLookupAdapter) GetDeviceByMAC(ctx context.Context, mac string) (*models.Device, error) {
	return a.inv.Store().GetDeviceByMAC(ctx, mac)
}

func (a *deviceLookupAdapter) GetDeviceByHostname(ctx context.Context, hostname string) (*models.Device, error) {
	return a.inv.Store().GetDeviceByHostname(ctx, hostname)
}

// muteAdapter exposes the inventory mute window to the alert engine.
type muteAdapter struct {
	inv *inventory.Module
}

func (a *muteAdapter) IsMuted(ctx context.Context, deviceID string) (bool, error) {
	return a.inv.Store().IsMuted(ctx, deviceID)
}

// alertPrunerAdapter exposes the alert store to the retention sweeper.
type alertPrunerAdapter struct {
	alerts *alerting.Module
}

func (a *alertPrunerAdapter) DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.alerts.Store().DeleteAcknowledgedBefore(ctx, cutoff)
}

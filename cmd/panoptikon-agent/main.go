// Command panoptikon-agent collects local system health and streams it
// to a Panoptikon server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/agent"
	"github.com/panoptikon-net/panoptikon/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapCfg := zap.NewProductionConfig()
	if *verbose {
		zapCfg = zap.NewDevelopmentConfig()
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	counterDir, err := agent.DefaultCounterDir()
	if err != nil {
		logger.Fatal("failed to resolve counter directory", zap.Error(err))
	}
	counters := agent.NewCounterStore(counterDir)
	collector := agent.NewCollector(counters)

	logger.Info("panoptikon agent starting",
		zap.String("version", version.Short()),
		zap.String("server", cfg.ServerURL),
		zap.Duration("report_interval", cfg.ReportInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	agent.New(cfg, collector, logger).Run(ctx)
	logger.Info("panoptikon agent stopped")
}

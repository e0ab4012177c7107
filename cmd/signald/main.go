package main

import (
	"flag"
	"fmt"
	"os"

	"TradeSignal/internal/di"
	"TradeSignal/pkg/config"
	applogger "TradeSignal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path, empty for defaults and environment only")
	port := flag.Int("port", 0, "override server.port")
	check := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	boot, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Error("config load failed", applogger.String("path", *configPath), applogger.Error(err))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	boot.Info("configuration loaded",
		applogger.String("env", cfg.Environment),
		applogger.String("model", cfg.Model.Backend),
		applogger.String("market_data", cfg.MarketData.Source),
		applogger.Bool("ingest", cfg.Ingest.Enabled),
		applogger.Bool("redis_cache", cfg.Cache.Enabled && cfg.Cache.Redis.Enabled),
		applogger.Int("port", cfg.Server.Port),
	)
	if *check {
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("app initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	// blocks until SIGINT or SIGTERM
	if err := app.Run(); err != nil {
		boot.Error("app stopped with errors", applogger.Error(err))
		os.Exit(1)
	}
}

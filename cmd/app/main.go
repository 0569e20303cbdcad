package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FeatPull/internal/di"
	"FeatPull/pkg/config"
	applogger "FeatPull/pkg/logger"
	"FeatPull/pkg/server"
	"FeatPull/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path (empty for built-in defaults)")
	modeFlag := flag.String("mode", "build", "build, bitcoin or serve")
	asOfFlag := flag.String("as-of", "", "build date YYYY-MM-DD (default today)")
	days := flag.Int("days", 0, "BTC history length in days (default crypto.days)")
	flag.Parse()

	mode, err := server.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	asOf, err := util.DayOrToday(*asOfFlag, time.Now)
	if err != nil {
		log.Fatalf("invalid -as-of: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	l := app.Logger()
	l.Info("starting",
		applogger.String("env", cfg.Environment),
		applogger.String("mode", string(mode)),
		applogger.String("equity_backend", cfg.Equity.Backend),
		applogger.Date("as_of", asOf),
		applogger.Bool("clickhouse", cfg.Sinks.ClickHouse.Enabled),
		applogger.Bool("kafka", cfg.Sinks.Kafka.Enabled),
		applogger.Bool("redis_lock", cfg.Lock.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, mode, server.RunOptions{AsOf: asOf, Days: *days})
	stop()
	cleanup()
	if err != nil {
		l.Error("app error", applogger.Error(err))
		os.Exit(1)
	}
}

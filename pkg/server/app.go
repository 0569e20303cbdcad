package server

import (
	"context"
	"fmt"
	"time"

	"FeatPull/internal/domain/models"
	"FeatPull/pkg/config"
	xhttp "FeatPull/pkg/http"
	applogger "FeatPull/pkg/logger"
)

// Mode selects what a single process run does.
type Mode string

const (
	ModeBuild   Mode = "build"
	ModeBitcoin Mode = "bitcoin"
	ModeServe   Mode = "serve"
)

// ParseMode validates a -mode flag value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBuild, ModeBitcoin, ModeServe:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want build, bitcoin or serve)", s)
	}
}

// Exporter builds datasets and writes them to the configured sinks.
type Exporter interface {
	Export(ctx context.Context, today time.Time) (*models.FeatureMatrix, error)
	ExportBitcoin(ctx context.Context, today time.Time, days int) (*models.PriceSeries, error)
}

// RunOptions carries per-run flags.
type RunOptions struct {
	AsOf time.Time
	Days int
}

// App encapsulates the application lifecycle.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	exporter Exporter
	handlers []xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, logger *applogger.Logger, exporter Exporter, handlers ...xhttp.Handler) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{cfg: cfg, logger: logger, exporter: exporter, handlers: handlers}
}

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.logger }

// Run executes mode. Build modes return when the export finishes;
// serve blocks until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context, mode Mode, opts RunOptions) error {
	switch mode {
	case ModeBuild:
		m, err := a.exporter.Export(ctx, opts.AsOf)
		if err != nil {
			return fmt.Errorf("build features: %w", err)
		}
		a.logger.Info("feature build complete",
			applogger.Date("as_of", m.AsOf),
			applogger.Int("rows", m.NumRows()),
			applogger.Strings("columns", m.Columns),
		)
		return nil
	case ModeBitcoin:
		days := opts.Days
		if days == 0 {
			days = a.cfg.Crypto.Days
		}
		s, err := a.exporter.ExportBitcoin(ctx, opts.AsOf, days)
		if err != nil {
			return fmt.Errorf("export bitcoin: %w", err)
		}
		a.logger.Info("bitcoin export complete", applogger.Int("points", s.Len()))
		return nil
	case ModeServe:
		return a.serve(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (a *App) serve(ctx context.Context) error {
	srv := xhttp.NewServer(a.logger, a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	errs := srv.Start()

	select {
	case err, ok := <-errs:
		if ok && err != nil {
			a.logger.Error("http server start error", applogger.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	if err := srv.Stop(context.WithoutCancel(ctx)); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

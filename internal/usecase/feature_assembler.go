package usecase

import (
	"context"
	"fmt"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	"FeatPull/internal/services/features"
	applogger "FeatPull/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// TargetSuffix is appended to the primary ticker to name the target column.
const TargetSuffix = "_Future"

var validate = validator.New()

// AssemblerConfig selects the instruments and horizon of a build.
type AssemblerConfig struct {
	Primary      string   `validate:"required"`
	Auxiliary    []string `validate:"dive,required"`
	FX           []string `validate:"dive,required"`
	Indexes      []string `validate:"dive,required"`
	ReturnPeriod int      `validate:"gte=1"`
	WindowDays   int      `validate:"gte=1"`
}

// TargetColumn returns the name of the target column.
func (c AssemblerConfig) TargetColumn() string { return c.Primary + TargetSuffix }

// FeatureAssembler turns raw equity and macro series into a leakage-free
// feature matrix sampled every ReturnPeriod rows.
type FeatureAssembler struct {
	cfg     AssemblerConfig
	equity  domrepo.EquitySource
	macro   domrepo.MacroSource
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

// NewFeatureAssembler validates cfg and returns an assembler.
func NewFeatureAssembler(cfg AssemblerConfig, equity domrepo.EquitySource, macro domrepo.MacroSource, metrics domrepo.Metrics, logger *applogger.Logger) (*FeatureAssembler, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("assembler config: %w", err)
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &FeatureAssembler{cfg: cfg, equity: equity, macro: macro, metrics: metrics, logger: logger}, nil
}

// Config returns the assembler configuration.
func (a *FeatureAssembler) Config() AssemblerConfig { return a.cfg }

// WithReturnPeriod returns a copy of the assembler using horizon k.
func (a *FeatureAssembler) WithReturnPeriod(k int) (*FeatureAssembler, error) {
	cfg := a.cfg
	cfg.ReturnPeriod = k
	return NewFeatureAssembler(cfg, a.equity, a.macro, a.metrics, a.logger)
}

// Build assembles the matrix for the window ending at today.
func (a *FeatureAssembler) Build(ctx context.Context, today time.Time) (*models.FeatureMatrix, error) {
	began := time.Now()
	k := a.cfg.ReturnPeriod
	end := models.Day(today)
	start := end.AddDate(0, 0, -a.cfg.WindowDays)

	tickers := append([]string{a.cfg.Primary}, a.cfg.Auxiliary...)
	panel, err := a.equity.Download(ctx, domrepo.EquityRequest{Tickers: tickers, Start: start, End: end})
	if err != nil {
		a.metrics.RecordError("equity_download")
		return nil, fmt.Errorf("download equities: %w", err)
	}
	adj, err := panel.Field(models.FieldAdjClose)
	if err != nil {
		return nil, fmt.Errorf("equity panel: %w", err)
	}
	prices, err := adj.Select(tickers...)
	if err != nil {
		return nil, fmt.Errorf("equity panel: %w", err)
	}

	target := models.NewFrame(prices.Index)
	if err := target.AddColumn(a.cfg.TargetColumn(), features.FutureLogReturn(prices.Cols[0], k)); err != nil {
		return nil, err
	}
	aux, err := prices.Select(a.cfg.Auxiliary...)
	if err != nil {
		return nil, err
	}
	frames := []*models.Frame{target, features.LogDiffFrame(aux, k)}

	for _, group := range []struct {
		name string
		ids  []string
	}{
		{"fx", a.cfg.FX},
		{"indexes", a.cfg.Indexes},
	} {
		if len(group.ids) == 0 {
			continue
		}
		f, err := a.macro.Fetch(ctx, group.ids, start, end)
		if err != nil {
			a.metrics.RecordError("macro_fetch")
			return nil, fmt.Errorf("fetch %s: %w", group.name, err)
		}
		sel, err := f.Select(group.ids...)
		if err != nil {
			return nil, fmt.Errorf("%s frame: %w", group.name, err)
		}
		frames = append(frames, features.LogDiffFrame(sel, k))
	}

	joined, err := features.Join(frames...)
	if err != nil {
		return nil, err
	}
	complete := features.DropIncomplete(joined)
	sampled := features.EveryNth(complete, k)

	a.logger.Info("features assembled",
		applogger.Date("as_of", end),
		applogger.Int("return_period", k),
		applogger.Int("joined_rows", joined.Len()),
		applogger.Int("complete_rows", complete.Len()),
		applogger.Int("sampled_rows", sampled.Len()),
	)
	a.metrics.RecordRows("features", sampled.Len())
	a.metrics.RecordLatency("build_features", time.Since(began).Seconds())

	if sampled.Len() == 0 {
		return nil, fmt.Errorf("%w: %d rows before dropping incomplete rows", models.ErrEmptyDataset, joined.Len())
	}
	return features.ToMatrix(sampled, a.cfg.TargetColumn(), end), nil
}

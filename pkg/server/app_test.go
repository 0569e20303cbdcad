package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"FeatPull/internal/domain/models"
	"FeatPull/pkg/config"
	applogger "FeatPull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	asOf time.Time
	days int
	err  error
}

func (f *fakeExporter) Export(_ context.Context, today time.Time) (*models.FeatureMatrix, error) {
	f.asOf = today
	if f.err != nil {
		return nil, f.err
	}
	return &models.FeatureMatrix{AsOf: today, Columns: []string{"NVDA_Future"}}, nil
}

func (f *fakeExporter) ExportBitcoin(_ context.Context, today time.Time, days int) (*models.PriceSeries, error) {
	f.asOf, f.days = today, days
	if f.err != nil {
		return nil, f.err
	}
	return &models.PriceSeries{}, nil
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"build", "bitcoin", "serve"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("stream")
	assert.Error(t, err)
}

func TestRun_Build(t *testing.T) {
	exp := &fakeExporter{}
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	app := New(config.Default(), applogger.Nop(), exp)

	require.NoError(t, app.Run(context.Background(), ModeBuild, RunOptions{AsOf: asOf}))
	assert.True(t, exp.asOf.Equal(asOf))
}

func TestRun_BitcoinDefaultsDaysFromConfig(t *testing.T) {
	exp := &fakeExporter{}
	app := New(config.Default(), applogger.Nop(), exp)

	require.NoError(t, app.Run(context.Background(), ModeBitcoin, RunOptions{}))
	assert.Equal(t, 60, exp.days)

	require.NoError(t, app.Run(context.Background(), ModeBitcoin, RunOptions{Days: 7}))
	assert.Equal(t, 7, exp.days)
}

func TestRun_PropagatesExportError(t *testing.T) {
	boom := errors.New("boom")
	app := New(config.Default(), applogger.Nop(), &fakeExporter{err: boom})

	err := app.Run(context.Background(), ModeBuild, RunOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestRun_ServeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0
	app := New(cfg, applogger.Nop(), &fakeExporter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx, ModeServe, RunOptions{}))
}

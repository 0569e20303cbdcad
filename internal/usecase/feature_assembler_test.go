package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"FeatPull/internal/domain/models"
	"FeatPull/internal/middleware"
	"FeatPull/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rows = 20

func testConfig() AssemblerConfig {
	return AssemblerConfig{
		Primary:      "NVDA",
		Auxiliary:    []string{"AMD"},
		FX:           []string{"DEXJPUS"},
		Indexes:      []string{"SP500"},
		ReturnPeriod: 5,
		WindowDays:   365,
	}
}

func primaryPrices() []float64 {
	return series(rows, func(i int) float64 { return 100 * math.Exp(0.01*float64(i*i)) })
}

func newSources(primary []float64) (*fakeEquity, *fakeMacro) {
	idx := dates(rows)
	eq := &fakeEquity{
		index: idx,
		adj: map[string][]float64{
			"NVDA": primary,
			"AMD":  series(rows, func(i int) float64 { return 50 + float64(i) }),
		},
	}
	mac := &fakeMacro{
		index: idx,
		cols: map[string][]float64{
			"DEXJPUS": series(rows, func(i int) float64 { return 140 + 0.1*float64(i) }),
			"SP500":   series(rows, func(i int) float64 { return 4000 + float64(i) }),
		},
	}
	return eq, mac
}

func newAssembler(t *testing.T, cfg AssemblerConfig, eq *fakeEquity, mac *fakeMacro) *FeatureAssembler {
	t.Helper()
	a, err := NewFeatureAssembler(cfg, eq, mac, metrics.Nop{}, nil)
	require.NoError(t, err)
	return a
}

func TestBuild_TwentyRowsKeepsRowsFiveAndTen(t *testing.T) {
	p := primaryPrices()
	eq, mac := newSources(p)
	today := day0.AddDate(0, 0, rows-1)

	m, err := newAssembler(t, testConfig(), eq, mac).Build(context.Background(), today)
	require.NoError(t, err)

	require.Equal(t, 2, m.NumRows())
	assert.True(t, m.Dates[0].Equal(day0.AddDate(0, 0, 5)))
	assert.True(t, m.Dates[1].Equal(day0.AddDate(0, 0, 10)))
	assert.Equal(t, []string{"NVDA_Future", "AMD", "DEXJPUS", "SP500"}, m.Columns)
	assert.Equal(t, "NVDA_Future", m.Target)
	assert.True(t, m.AsOf.Equal(today))

	assert.InDelta(t, math.Log(p[10])-math.Log(p[5]), m.Rows[0][0], 1e-12)
	assert.InDelta(t, math.Log(55.0)-math.Log(50.0), m.Rows[0][1], 1e-12)

	require.Len(t, eq.reqs, 1)
	assert.Equal(t, []string{"NVDA", "AMD"}, eq.reqs[0].Tickers)
	assert.True(t, eq.reqs[0].End.Equal(today))
	assert.True(t, eq.reqs[0].Start.Equal(today.AddDate(0, 0, -365)))
	assert.Equal(t, [][]string{{"DEXJPUS"}, {"SP500"}}, mac.calls)
}

func buildWithPrimary(t *testing.T, p []float64) [][]float64 {
	t.Helper()
	eq, mac := newSources(p)
	m, err := newAssembler(t, testConfig(), eq, mac).Build(context.Background(), day0)
	require.NoError(t, err)
	require.Len(t, m.Rows, 2)
	return m.Rows
}

// Sampled rows are i=5 and i=10 with k=5, so row i only reads prices up to i+5.
func TestBuild_NoLookAhead(t *testing.T) {
	p := primaryPrices()
	base := buildWithPrimary(t, p)

	later := append([]float64(nil), p...)
	later[16] *= 3
	assert.Equal(t, base, buildWithPrimary(t, later))

	atHorizon := append([]float64(nil), p...)
	atHorizon[15] *= 3
	moved := buildWithPrimary(t, atHorizon)
	assert.Equal(t, base[0], moved[0])
	assert.InDelta(t, base[1][0]+math.Log(3), moved[1][0], 1e-12)
	assert.Equal(t, base[1][1:], moved[1][1:])
}

func TestBuild_FetchErrorsPropagate(t *testing.T) {
	p := primaryPrices()

	t.Run("equity", func(t *testing.T) {
		eq, mac := newSources(p)
		last := errors.New("Too Many Requests")
		eq.err = &middleware.RetriesExhaustedError{Attempts: 6, Last: last}

		_, err := newAssembler(t, testConfig(), eq, mac).Build(context.Background(), day0)
		assert.ErrorIs(t, err, middleware.ErrRetriesExhausted)
		assert.ErrorIs(t, err, last)
		assert.Empty(t, mac.calls)
	})

	t.Run("macro", func(t *testing.T) {
		eq, mac := newSources(p)
		mac.err = models.ErrMalformedResponse

		_, err := newAssembler(t, testConfig(), eq, mac).Build(context.Background(), day0)
		assert.ErrorIs(t, err, models.ErrMalformedResponse)
	})
}

func TestBuild_MissingTicker(t *testing.T) {
	eq, mac := newSources(primaryPrices())
	delete(eq.adj, "AMD")

	_, err := newAssembler(t, testConfig(), eq, mac).Build(context.Background(), day0)
	assert.ErrorIs(t, err, models.ErrMissingSeries)
}

func TestBuild_EmptyAfterAlignment(t *testing.T) {
	eq, mac := newSources(primaryPrices())
	cfg := testConfig()
	cfg.ReturnPeriod = 10

	_, err := newAssembler(t, cfg, eq, mac).Build(context.Background(), day0)
	assert.ErrorIs(t, err, models.ErrEmptyDataset)
}

func TestNewFeatureAssembler_RejectsInvalidConfig(t *testing.T) {
	eq, mac := newSources(primaryPrices())
	for name, mutate := range map[string]func(*AssemblerConfig){
		"return period": func(c *AssemblerConfig) { c.ReturnPeriod = 0 },
		"primary":       func(c *AssemblerConfig) { c.Primary = "" },
		"window":        func(c *AssemblerConfig) { c.WindowDays = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := NewFeatureAssembler(cfg, eq, mac, metrics.Nop{}, nil)
			assert.Error(t, err)
		})
	}
}

func TestWithReturnPeriod(t *testing.T) {
	eq, mac := newSources(primaryPrices())
	a := newAssembler(t, testConfig(), eq, mac)

	b, err := a.WithReturnPeriod(2)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Config().ReturnPeriod)
	assert.Equal(t, 5, a.Config().ReturnPeriod)

	_, err = a.WithReturnPeriod(0)
	assert.Error(t, err)
}

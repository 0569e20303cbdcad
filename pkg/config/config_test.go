package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "NVDA", c.Equity.Primary)
	assert.Equal(t, []string{"AVGO", "TSM", "ORCL", "AMD", "META"}, c.Equity.Tickers)
	assert.Equal(t, []string{"DEXJPUS", "DEXUSUK"}, c.Macro.FX)
	assert.Equal(t, []string{"SP500", "DJIA", "VIXCLS"}, c.Macro.Indexes)
	assert.Equal(t, 5, c.Features.ReturnPeriod)
	assert.Equal(t, 365, c.Features.WindowDays)
	assert.Equal(t, 6, c.Equity.MaxAttempts)
	assert.Equal(t, 60, c.Crypto.Days)
	assert.Equal(t, 500*time.Millisecond, c.Equity.MinInterval)
}

func TestParse_OverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
equity:
  backend: financego
  primary: AMD
  tickers: [NVDA]
features:
  return_period: 10
`))
	require.NoError(t, err)
	assert.Equal(t, "financego", c.Equity.Backend)
	assert.Equal(t, "AMD", c.Equity.Primary)
	assert.Equal(t, []string{"NVDA"}, c.Equity.Tickers)
	assert.Equal(t, 10, c.Features.ReturnPeriod)
	assert.Equal(t, 365, c.Features.WindowDays)
}

func TestParse_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"backend":       "equity:\n  backend: csv\n",
		"return period": "features:\n  return_period: 0\n",
		"attempts":      "equity:\n  max_attempts: 0\n",
		"primary dup":   "equity:\n  tickers: [NVDA, AMD]\n",
		"kafka brokers": "sinks:\n  kafka:\n    enabled: true\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o644))

	t.Setenv("EQUITY_BACKEND", "financego")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OUTPUT_DIR", "/tmp/out")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "financego", c.Equity.Backend)
	assert.True(t, c.Sinks.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Sinks.Kafka.Brokers)
	assert.Equal(t, "/tmp/out", c.Sinks.CSV.Dir)
}

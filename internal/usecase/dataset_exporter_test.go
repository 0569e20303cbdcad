package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	"FeatPull/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExporter(t *testing.T, sinks []domrepo.DatasetSink, locker domrepo.Locker) (*DatasetExporter, *fakeCrypto) {
	t.Helper()
	eq, mac := newSources(primaryPrices())
	crypto := &fakeCrypto{series: &models.PriceSeries{
		Name:   "Close Price (USD)",
		Points: []models.PricePoint{{Date: day0, Price: 42000}},
	}}
	btc := NewBitcoinHistory(crypto, metrics.Nop{}, nil)
	return NewDatasetExporter(newAssembler(t, testConfig(), eq, mac), btc, sinks, locker, time.Minute, metrics.Nop{}, nil), crypto
}

func TestExport_StoresInEverySink(t *testing.T) {
	a, b := &fakeSink{name: "csv"}, &fakeSink{name: "kafka"}
	locker := &fakeLocker{held: map[string]bool{}}
	exp, _ := newExporter(t, []domrepo.DatasetSink{a, b}, locker)

	m, err := exp.Export(context.Background(), day0)
	require.NoError(t, err)
	require.Len(t, a.features, 1)
	require.Len(t, b.features, 1)
	assert.Same(t, m, a.features[0])
	assert.Equal(t, []string{featuresLockKey}, locker.unlocked)
	assert.Empty(t, locker.held)
}

func TestExport_LockHeld(t *testing.T) {
	sink := &fakeSink{name: "csv"}
	locker := &fakeLocker{held: map[string]bool{featuresLockKey: true}}
	exp, _ := newExporter(t, []domrepo.DatasetSink{sink}, locker)

	_, err := exp.Export(context.Background(), day0)
	assert.ErrorIs(t, err, ErrBuildInProgress)
	assert.Empty(t, sink.features)
	assert.Empty(t, locker.unlocked)
}

func TestExport_SinkErrorStopsAndReleases(t *testing.T) {
	boom := errors.New("disk full")
	first, second := &fakeSink{name: "csv", err: boom}, &fakeSink{name: "clickhouse"}
	locker := &fakeLocker{held: map[string]bool{}}
	exp, _ := newExporter(t, []domrepo.DatasetSink{first, second}, locker)

	_, err := exp.Export(context.Background(), day0)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "csv")
	assert.Empty(t, second.features)
	assert.Empty(t, locker.held)
}

func TestExportBitcoin(t *testing.T) {
	sink := &fakeSink{name: "csv"}
	exp, _ := newExporter(t, []domrepo.DatasetSink{sink}, nil)

	s, err := exp.ExportBitcoin(context.Background(), day0, 60)
	require.NoError(t, err)
	require.Len(t, sink.prices, 1)
	assert.Equal(t, 42000.0, s.Points[0].Price)
}

func TestExportBitcoin_NoRetry(t *testing.T) {
	sink := &fakeSink{name: "csv"}
	exp, crypto := newExporter(t, []domrepo.DatasetSink{sink}, nil)
	crypto.err = errors.New("429 Too Many Requests")

	_, err := exp.ExportBitcoin(context.Background(), day0, 60)
	assert.ErrorIs(t, err, crypto.err)
	assert.Empty(t, sink.prices)
}

func TestBitcoinHistory_InvalidDays(t *testing.T) {
	_, err := NewBitcoinHistory(&fakeCrypto{}, metrics.Nop{}, nil).History(context.Background(), 0)
	assert.Error(t, err)
}

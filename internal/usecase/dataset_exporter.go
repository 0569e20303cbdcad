package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	"FeatPull/internal/services/features"
	applogger "FeatPull/pkg/logger"
)

// ErrBuildInProgress is returned when another process holds the build lock.
var ErrBuildInProgress = errors.New("build already in progress")

const (
	featuresLockKey = "build:features"
	bitcoinLockKey  = "build:bitcoin"
)

// DatasetExporter builds datasets and hands them to every configured sink.
type DatasetExporter struct {
	assembler *FeatureAssembler
	bitcoin   *BitcoinHistory
	sinks     []domrepo.DatasetSink
	locker    domrepo.Locker
	lockTTL   time.Duration
	metrics   domrepo.Metrics
	logger    *applogger.Logger
}

// NewDatasetExporter wires the exporter. locker may be nil to disable locking.
func NewDatasetExporter(assembler *FeatureAssembler, bitcoin *BitcoinHistory, sinks []domrepo.DatasetSink, locker domrepo.Locker, lockTTL time.Duration, metrics domrepo.Metrics, logger *applogger.Logger) *DatasetExporter {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &DatasetExporter{
		assembler: assembler,
		bitcoin:   bitcoin,
		sinks:     sinks,
		locker:    locker,
		lockTTL:   lockTTL,
		metrics:   metrics,
		logger:    logger,
	}
}

// Export builds the feature matrix for today and stores it in every sink.
func (e *DatasetExporter) Export(ctx context.Context, today time.Time) (*models.FeatureMatrix, error) {
	release, err := e.acquire(ctx, featuresLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := e.assembler.Build(ctx, today)
	if err != nil {
		return nil, err
	}
	log := e.logger.With(applogger.Date("as_of", m.AsOf))
	for _, st := range features.Describe(m) {
		log.Debug("feature summary",
			applogger.String("column", st.Name),
			applogger.Float("mean", st.Mean),
			applogger.Float("std", st.StdDev),
			applogger.Float("min", st.Min),
			applogger.Float("max", st.Max),
		)
	}
	for _, s := range e.sinks {
		if err := s.StoreFeatures(ctx, m); err != nil {
			e.metrics.RecordError("sink_" + s.Name())
			return nil, fmt.Errorf("store features in %s: %w", s.Name(), err)
		}
		log.Info("features stored", applogger.String("sink", s.Name()), applogger.Int("rows", m.NumRows()))
	}
	return m, nil
}

// ExportBitcoin fetches the trailing BTC history and stores it in every sink.
func (e *DatasetExporter) ExportBitcoin(ctx context.Context, today time.Time, days int) (*models.PriceSeries, error) {
	release, err := e.acquire(ctx, bitcoinLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := e.bitcoin.History(ctx, days)
	if err != nil {
		return nil, err
	}
	asOf := models.Day(today)
	for _, sink := range e.sinks {
		if err := sink.StorePrices(ctx, asOf, s); err != nil {
			e.metrics.RecordError("sink_" + sink.Name())
			return nil, fmt.Errorf("store prices in %s: %w", sink.Name(), err)
		}
		e.logger.Info("prices stored", applogger.String("sink", sink.Name()), applogger.Int("points", s.Len()))
	}
	return s, nil
}

func (e *DatasetExporter) acquire(ctx context.Context, key string) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	ok, err := e.locker.TryLock(ctx, key, e.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBuildInProgress, key)
	}
	return func() {
		// a cancelled build must still release its lease
		if err := e.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			e.logger.Warn("release lock", applogger.String("key", key), applogger.Error(err))
		}
	}, nil
}

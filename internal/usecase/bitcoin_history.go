package usecase

import (
	"context"
	"fmt"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	applogger "FeatPull/pkg/logger"
)

// BitcoinHistory reads the trailing daily BTC price series. It is not retried.
type BitcoinHistory struct {
	source  domrepo.CryptoSource
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewBitcoinHistory(source domrepo.CryptoSource, metrics domrepo.Metrics, logger *applogger.Logger) *BitcoinHistory {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &BitcoinHistory{source: source, metrics: metrics, logger: logger}
}

// History returns the last days of daily prices.
func (b *BitcoinHistory) History(ctx context.Context, days int) (*models.PriceSeries, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be >= 1, got %d", days)
	}
	began := time.Now()
	s, err := b.source.History(ctx, days)
	if err != nil {
		b.metrics.RecordError("crypto_fetch")
		return nil, fmt.Errorf("bitcoin history: %w", err)
	}
	b.metrics.RecordRows("bitcoin", s.Len())
	b.metrics.RecordLatency("bitcoin_history", time.Since(began).Seconds())
	b.logger.Info("bitcoin history fetched",
		applogger.Int("days", days),
		applogger.Int("points", s.Len()),
	)
	return s, nil
}

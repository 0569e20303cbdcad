package repository

import (
	"context"
	"time"

	"FeatPull/internal/domain/models"
)

// EquityRequest describes one batch download of daily equity bars.
type EquityRequest struct {
	Tickers []string
	Start   time.Time
	End     time.Time
}

// EquitySource downloads a field/ticker panel of daily bars.
// Implementations must request tickers sequentially.
type EquitySource interface {
	Download(ctx context.Context, req EquityRequest) (*models.Panel, error)
}

// MacroSource fetches auxiliary series (FX, indexes) in a single request.
type MacroSource interface {
	Fetch(ctx context.Context, ids []string, start, end time.Time) (*models.Frame, error)
}

// CryptoSource fetches a trailing daily price history.
type CryptoSource interface {
	History(ctx context.Context, days int) (*models.PriceSeries, error)
}

type Metrics interface {
	RecordFetchAttempt(source, outcome string)
	RecordBackoff(seconds float64)
	RecordRows(dataset string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

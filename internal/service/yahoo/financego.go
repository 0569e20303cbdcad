package yahoo

import (
	"context"
	"fmt"
	"time"

	"FeatPull/internal/domain/models"
	drepo "FeatPull/internal/domain/repository"
	applogger "FeatPull/pkg/logger"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// chartIter is the subset of the finance-go chart iterator the backend reads.
type chartIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// ChartClient is an EquitySource backed by the finance-go chart API.
type ChartClient struct {
	get    func(*chart.Params) chartIter
	logger *applogger.Logger
}

// NewChartClient creates the finance-go backend.
func NewChartClient(logger *applogger.Logger) *ChartClient {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &ChartClient{
		get:    func(p *chart.Params) chartIter { return chart.Get(p) },
		logger: logger,
	}
}

// Download implements EquitySource. The library has no context support, so
// cancellation is checked between tickers.
func (c *ChartClient) Download(ctx context.Context, req drepo.EquityRequest) (*models.Panel, error) {
	start, end := req.Start, req.End
	bars := make(map[string][]bar, len(req.Tickers))
	for _, ticker := range req.Tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter := c.get(&chart.Params{
			Symbol:   ticker,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		})
		var out []bar
		for iter.Next() {
			b := iter.Bar()
			out = appendBar(out, bar{
				Date:     models.Day(time.Unix(int64(b.Timestamp), 0)),
				Open:     b.Open.InexactFloat64(),
				High:     b.High.InexactFloat64(),
				Low:      b.Low.InexactFloat64(),
				Close:    b.Close.InexactFloat64(),
				AdjClose: b.AdjClose.InexactFloat64(),
				Volume:   float64(b.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("chart %s: %w", ticker, err)
		}
		c.logger.Debug("downloaded chart",
			applogger.String("ticker", ticker),
			applogger.Int("bars", len(out)),
		)
		bars[ticker] = out
	}
	return buildPanel(req.Tickers, bars)
}

func appendBar(out []bar, b bar) []bar {
	if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
		out[n-1] = b
		return out
	}
	return append(out, b)
}

var _ drepo.EquitySource = (*ChartClient)(nil)

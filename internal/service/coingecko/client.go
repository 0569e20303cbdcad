package coingecko

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"FeatPull/internal/domain/models"
	drepo "FeatPull/internal/domain/repository"
	xhttp "FeatPull/pkg/http"
	applogger "FeatPull/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	// PriceColumn names the single output column.
	PriceColumn = "Close Price (USD)"
)

// Prices entries are [epoch ms, price]; either element may be null upstream.
type marketChart struct {
	Prices [][]*float64 `json:"prices"`
}

// Client reads daily bitcoin prices from the CoinGecko market chart.
// Failures are returned as-is; this source is not retried.
type Client struct {
	baseURL string
	coin    string
	http    *xhttp.Client
	logger  *applogger.Logger
}

// New creates a CoinGecko client for bitcoin.
func New(baseURL string, h *xhttp.Client, logger *applogger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if h == nil {
		h = xhttp.NewClient()
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Client{baseURL: baseURL, coin: "bitcoin", http: h, logger: logger}
}

// History implements CryptoSource.
func (c *Client) History(ctx context.Context, days int) (*models.PriceSeries, error) {
	if days < 1 {
		return nil, fmt.Errorf("coingecko: days must be >= 1, got %d", days)
	}
	var resp marketChart
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/coins/" + c.coin + "/market_chart",
		QueryParams: map[string][]string{
			"vs_currency": {"usd"},
			"days":        {strconv.Itoa(days)},
			"interval":    {"daily"},
		},
	}, &resp)
	if errors.Is(err, xhttp.ErrDecode) {
		return nil, fmt.Errorf("coingecko market chart: %w: %v", models.ErrMalformedResponse, err)
	}
	if err != nil {
		return nil, fmt.Errorf("coingecko market chart: %w", err)
	}
	if resp.Prices == nil {
		return nil, fmt.Errorf("coingecko: %w: prices field absent", models.ErrMalformedResponse)
	}

	series, err := toSeries(resp.Prices)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	c.logger.Debug("downloaded price history",
		applogger.String("coin", c.coin),
		applogger.Int("days", days),
		applogger.Int("points", series.Len()),
	)
	return series, nil
}

type tick struct {
	ms    int64
	price float64
}

// toSeries maps [ms, price] pairs to UTC calendar dates in increasing order.
// A repeated date keeps the point with the latest timestamp, which is the intraday latest price.
func toSeries(pairs [][]*float64) (*models.PriceSeries, error) {
	ticks := make([]tick, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: price entry %d has %d elements", models.ErrMalformedResponse, i, len(p))
		}
		if p[0] == nil || p[1] == nil {
			return nil, fmt.Errorf("%w: price entry %d has a null element", models.ErrMalformedResponse, i)
		}
		ms, price := *p[0], *p[1]
		if math.IsNaN(ms) || math.IsInf(ms, 0) {
			return nil, fmt.Errorf("%w: price entry %d has timestamp %v", models.ErrMalformedResponse, i, ms)
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, fmt.Errorf("%w: price entry %d has price %v", models.ErrMalformedResponse, i, price)
		}
		ticks = append(ticks, tick{ms: int64(ms), price: price})
	}
	sort.SliceStable(ticks, func(a, b int) bool { return ticks[a].ms < ticks[b].ms })

	s := &models.PriceSeries{Name: PriceColumn, Points: make([]models.PricePoint, 0, len(ticks))}
	for _, t := range ticks {
		d := models.Day(time.UnixMilli(t.ms))
		if n := len(s.Points); n > 0 && s.Points[n-1].Date.Equal(d) {
			s.Points[n-1].Price = t.price
			continue
		}
		s.Points = append(s.Points, models.PricePoint{Date: d, Price: t.price})
	}
	return s, nil
}

var _ drepo.CryptoSource = (*Client)(nil)

package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"FeatPull/internal/domain/models"
	drepo "FeatPull/internal/domain/repository"
	"FeatPull/internal/service/ratelimit"
	xhttp "FeatPull/pkg/http"
	applogger "FeatPull/pkg/logger"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Client downloads daily bars from the Yahoo chart endpoint.
// Tickers are requested one at a time, paced per host.
type Client struct {
	baseURL     string
	http        *xhttp.Client
	limiter     *ratelimit.Limiter
	minInterval time.Duration
	logger      *applogger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithMinInterval spaces consecutive ticker requests. Zero disables pacing.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.minInterval = d }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Yahoo chart client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    xhttp.NewClient(),
		limiter: ratelimit.New(),
		logger:  applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Download implements EquitySource.
func (c *Client) Download(ctx context.Context, req drepo.EquityRequest) (*models.Panel, error) {
	bars := make(map[string][]bar, len(req.Tickers))
	for _, ticker := range req.Tickers {
		if err := c.pace(ctx); err != nil {
			return nil, err
		}
		b, err := c.chart(ctx, ticker, req.Start, req.End)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", ticker, err)
		}
		c.logger.Debug("downloaded chart",
			applogger.String("ticker", ticker),
			applogger.Int("bars", len(b)),
		)
		bars[ticker] = b
	}
	return buildPanel(req.Tickers, bars)
}

func (c *Client) pace(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}
	return c.limiter.Wait(ctx, c.baseURL, 1, 1/c.minInterval.Seconds())
}

func (c *Client) chart(ctx context.Context, ticker string, start, end time.Time) ([]bar, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker),
		QueryParams: map[string][]string{
			"period1":              {strconv.FormatInt(start.Unix(), 10)},
			"period2":              {strconv.FormatInt(end.Unix(), 10)},
			"interval":             {"1d"},
			"events":               {"div,split"},
			"includeAdjustedClose": {"true"},
		},
	}, &resp)
	if errors.Is(err, xhttp.ErrDecode) {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	if err != nil {
		return nil, err
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("%s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no chart result", models.ErrMalformedResponse)
	}
	return decodeBars(resp.Chart.Result[0])
}

func decodeBars(r chartResult) ([]bar, error) {
	n := len(r.Timestamp)
	if n == 0 {
		return nil, nil
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: missing quote indicators", models.ErrMalformedResponse)
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	for _, col := range [][]*float64{q.Open, q.High, q.Low, q.Close, q.Volume, adj} {
		if len(col) != n {
			return nil, fmt.Errorf("%w: %d timestamps but %d values", models.ErrMalformedResponse, n, len(col))
		}
	}

	out := make([]bar, 0, n)
	for i, ts := range r.Timestamp {
		b := bar{
			Date:     models.Day(time.Unix(ts, 0)),
			Open:     at(q.Open, i),
			High:     at(q.High, i),
			Low:      at(q.Low, i),
			Close:    at(q.Close, i),
			AdjClose: at(adj, i),
			Volume:   at(q.Volume, i),
		}
		// the live session can repeat as a trailing row on the same day
		out = appendBar(out, b)
	}
	return out, nil
}

func at(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}

var _ drepo.EquitySource = (*Client)(nil)

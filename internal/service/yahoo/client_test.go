package yahoo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FeatPull/internal/domain/models"
	drepo "FeatPull/internal/domain/repository"
	xhttp "FeatPull/pkg/http"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jan2 = 1704196800 // 2024-01-02 12:00 UTC
	jan3 = 1704283200
	jan4 = 1704369600
)

var chartBodies = map[string]string{
	"NVDA": `{"chart":{"result":[{"timestamp":[1704196800,1704283200,1704369600],
		"indicators":{"quote":[{"open":[1,2,3],"high":[2,3,4],"low":[0.5,1.5,2.5],"close":[1.5,2.5,3.5],"volume":[100,200,300]}],
		"adjclose":[{"adjclose":[1.4,2.4,3.4]}]}}],"error":null}}`,
	"AMD": `{"chart":{"result":[{"timestamp":[1704283200,1704369600],
		"indicators":{"quote":[{"open":[10,11],"high":[12,13],"low":[9,10],"close":[11,null],"volume":[5,6]}],
		"adjclose":[{"adjclose":[10.5,null]}]}}],"error":null}}`,
}

func chartServer(t *testing.T, hits *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		*hits = append(*hits, ticker)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "true", r.URL.Query().Get("includeAdjustedClose"))
		body, ok := chartBodies[ticker]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_DownloadBuildsAlignedPanel(t *testing.T) {
	var hits []string
	srv := chartServer(t, &hits)
	c := New(WithBaseURL(srv.URL))

	panel, err := c.Download(context.Background(), drepo.EquityRequest{
		Tickers: []string{"NVDA", "AMD"},
		Start:   time.Unix(jan2, 0),
		End:     time.Unix(jan4, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AMD"}, hits)
	require.Len(t, panel.Index, 3)
	assert.True(t, panel.Index[0].Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

	adj, err := panel.Field(models.FieldAdjClose)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AMD"}, adj.Names)

	nvda, _ := adj.Column("NVDA")
	assert.Equal(t, []float64{1.4, 2.4, 3.4}, nvda)
	amd, _ := adj.Column("AMD")
	assert.True(t, math.IsNaN(amd[0]))
	assert.Equal(t, 10.5, amd[1])
	assert.True(t, math.IsNaN(amd[2]))

	vol, _ := panel.Field(models.FieldVolume)
	v, _ := vol.Column("NVDA")
	assert.Equal(t, []float64{100, 200, 300}, v)
}

func TestClient_RateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).Download(context.Background(), drepo.EquityRequest{Tickers: []string{"NVDA"}})
	require.Error(t, err)
	assert.True(t, xhttp.IsStatus(err, http.StatusTooManyRequests))
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestClient_UnknownTickerFails(t *testing.T) {
	var hits []string
	srv := chartServer(t, &hits)

	_, err := New(WithBaseURL(srv.URL)).Download(context.Background(), drepo.EquityRequest{Tickers: []string{"NVDA", "ZZZZ"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chart ZZZZ")
}

func TestDecodeBars_EmptyResult(t *testing.T) {
	out, err := decodeBars(chartResult{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

type fakeIter struct {
	bars []*finance.ChartBar
	pos  int
	err  error
}

func (f *fakeIter) Next() bool {
	if f.pos >= len(f.bars) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeIter) Bar() *finance.ChartBar { return f.bars[f.pos-1] }
func (f *fakeIter) Err() error             { return f.err }

func TestChartClient_Download(t *testing.T) {
	c := NewChartClient(nil)
	var symbols []string
	c.get = func(p *chart.Params) chartIter {
		symbols = append(symbols, p.Symbol)
		return &fakeIter{bars: []*finance.ChartBar{
			{AdjClose: decimal.NewFromFloat(10.25), Close: decimal.NewFromInt(11), Volume: 7, Timestamp: jan2},
			{AdjClose: decimal.NewFromFloat(10.5), Close: decimal.NewFromInt(12), Volume: 8, Timestamp: jan3},
		}}
	}

	panel, err := c.Download(context.Background(), drepo.EquityRequest{Tickers: []string{"TSM", "ORCL"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"TSM", "ORCL"}, symbols)

	adj, _ := panel.Field(models.FieldAdjClose)
	col, _ := adj.Column("ORCL")
	assert.Equal(t, []float64{10.25, 10.5}, col)
}

func TestChartClient_IteratorError(t *testing.T) {
	c := NewChartClient(nil)
	c.get = func(*chart.Params) chartIter {
		return &fakeIter{err: errors.New("remote-error: Too Many Requests")}
	}
	_, err := c.Download(context.Background(), drepo.EquityRequest{Tickers: []string{"TSM"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestDecodeBars_LengthMismatch(t *testing.T) {
	one := 1.0
	var r chartResult
	r.Timestamp = []int64{jan2, jan3}
	r.Indicators.Quote = append(r.Indicators.Quote, struct {
		Open   []*float64 `json:"open"`
		High   []*float64 `json:"high"`
		Low    []*float64 `json:"low"`
		Close  []*float64 `json:"close"`
		Volume []*float64 `json:"volume"`
	}{Close: []*float64{&one}})

	_, err := decodeBars(r)
	assert.True(t, errors.Is(err, models.ErrMalformedResponse))
}

func TestClient_TruncatedBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[`))
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).Download(context.Background(), drepo.EquityRequest{Tickers: []string{"NVDA"}})
	assert.True(t, errors.Is(err, models.ErrMalformedResponse))
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	"FeatPull/internal/middleware"
	"FeatPull/internal/usecase"
	xhttp "FeatPull/pkg/http"
	xlogger "FeatPull/pkg/logger"
	"FeatPull/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type stubEquity struct {
	err   error
	index []time.Time
	cols  map[string][]float64
}

func (s *stubEquity) Download(_ context.Context, req domrepo.EquityRequest) (*models.Panel, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := models.NewPanel(s.index, models.FieldAdjClose)
	for _, t := range req.Tickers {
		if err := p.Fields[models.FieldAdjClose].AddColumn(t, s.cols[t]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type stubMacro struct{}

func (stubMacro) Fetch(_ context.Context, ids []string, _, _ time.Time) (*models.Frame, error) {
	return models.NewFrame(nil), nil
}

type stubCrypto struct {
	days  int
	calls int
	err   error
}

func (s *stubCrypto) History(_ context.Context, days int) (*models.PriceSeries, error) {
	s.days = days
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.PriceSeries{Points: []models.PricePoint{{Date: day0, Price: 42000.5}}}, nil
}

type stubExporter struct {
	asOf time.Time
	err  error
}

func (s *stubExporter) Export(_ context.Context, today time.Time) (*models.FeatureMatrix, error) {
	s.asOf = today
	if s.err != nil {
		return nil, s.err
	}
	return &models.FeatureMatrix{AsOf: today, Columns: []string{"NVDA_Future", "AMD"}, Rows: [][]float64{{0.1, 0.2}}}, nil
}

func newTestHandler(t *testing.T, eq *stubEquity, crypto *stubCrypto) *echo.Echo {
	return newExportingHandler(t, eq, crypto, nil)
}

func newExportingHandler(t *testing.T, eq *stubEquity, crypto *stubCrypto, exp Exporter) *echo.Echo {
	t.Helper()
	if eq.index == nil {
		eq.index = make([]time.Time, 20)
		nvda := make([]float64, 20)
		amd := make([]float64, 20)
		for i := range eq.index {
			eq.index[i] = day0.AddDate(0, 0, i)
			nvda[i] = 100 * math.Exp(0.01*float64(i*i))
			amd[i] = 50 + float64(i)
		}
		eq.cols = map[string][]float64{"NVDA": nvda, "AMD": amd}
	}
	a, err := usecase.NewFeatureAssembler(usecase.AssemblerConfig{
		Primary:      "NVDA",
		Auxiliary:    []string{"AMD"},
		ReturnPeriod: 5,
		WindowDays:   365,
	}, eq, stubMacro{}, metrics.Nop{}, nil)
	require.NoError(t, err)

	h := NewDatasetsEchoHandler(xlogger.Nop(), a, usecase.NewBitcoinHistory(crypto, metrics.Nop{}, nil))
	h.now = func() time.Time { return day0.AddDate(0, 0, 19) }
	if exp != nil {
		h.WithExporter(exp)
	}
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	return do(e, http.MethodGet, target)
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestFeatures_OK(t *testing.T) {
	e := newTestHandler(t, &stubEquity{}, &stubCrypto{})

	rec := get(e, "/api/features")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data FeaturesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-01-20", body.Data.AsOf)
	assert.Equal(t, "NVDA_Future", body.Data.Target)
	assert.Equal(t, []string{"NVDA_Future", "AMD"}, body.Data.Columns)
	assert.Equal(t, []string{"2024-01-06", "2024-01-11"}, body.Data.Dates)
	assert.Len(t, body.Data.Rows, 2)
}

func TestFeatures_Validation(t *testing.T) {
	for _, target := range []string{
		"/api/features?return_period=61",
		"/api/features?as_of=2024/01/01",
	} {
		e := newTestHandler(t, &stubEquity{}, &stubCrypto{})
		assert.Equal(t, http.StatusBadRequest, get(e, target).Code, target)
	}
}

func TestFeatures_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		eq     *stubEquity
		target string
		want   int
	}{
		{"empty dataset", &stubEquity{}, "/api/features?return_period=10", http.StatusUnprocessableEntity},
		{"retries exhausted", &stubEquity{err: &middleware.RetriesExhaustedError{Attempts: 6, Last: errors.New("Too Many Requests")}}, "/api/features", http.StatusServiceUnavailable},
		{"upstream status", &stubEquity{err: &xhttp.StatusError{StatusCode: 500, Status: "Internal Server Error"}}, "/api/features", http.StatusBadGateway},
		{"other", &stubEquity{err: errors.New("boom")}, "/api/features", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestHandler(t, tc.eq, &stubCrypto{})
			assert.Equal(t, tc.want, get(e, tc.target).Code)
		})
	}
}

func TestFeatures_RateLimitedPerClient(t *testing.T) {
	e := newTestHandler(t, &stubEquity{err: errors.New("boom")}, &stubCrypto{})
	for i := 0; i < buildBurst; i++ {
		get(e, "/api/features")
	}
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/api/features").Code)
}

func TestBitcoin(t *testing.T) {
	crypto := &stubCrypto{}
	e := newTestHandler(t, &stubEquity{}, crypto)

	rec := get(e, "/api/bitcoin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, crypto.days)

	var body struct {
		Data []PricePoint `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []PricePoint{{Date: "2024-01-01", Price: 42000.5}}, body.Data)

	assert.Equal(t, http.StatusBadRequest, get(e, "/api/bitcoin?days=400").Code)
}

func TestBitcoin_UpstreamStatus(t *testing.T) {
	crypto := &stubCrypto{err: &xhttp.StatusError{StatusCode: 429, Status: "Too Many Requests"}}
	e := newTestHandler(t, &stubEquity{}, crypto)
	assert.Equal(t, http.StatusBadGateway, get(e, "/api/bitcoin?days=7").Code)
}

func TestBitcoin_ServedFromCacheWithinTTL(t *testing.T) {
	crypto := &stubCrypto{}
	e := newTestHandler(t, &stubEquity{}, crypto)

	require.Equal(t, http.StatusOK, get(e, "/api/bitcoin?days=30").Code)
	require.Equal(t, http.StatusOK, get(e, "/api/bitcoin?days=30").Code)
	assert.Equal(t, 1, crypto.calls)

	require.Equal(t, http.StatusOK, get(e, "/api/bitcoin?days=31").Code)
	assert.Equal(t, 2, crypto.calls)
}

func TestExport_WritesThroughExporter(t *testing.T) {
	exp := &stubExporter{}
	e := newExportingHandler(t, &stubEquity{}, &stubCrypto{}, exp)

	rec := do(e, http.MethodPost, "/api/features/export?as_of=2024-01-15")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, exp.asOf.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))

	var body struct {
		Data ExportResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ExportResponse{AsOf: "2024-01-15", Rows: 1, Columns: []string{"NVDA_Future", "AMD"}}, body.Data)
}

func TestExport_BuildInProgressIsConflict(t *testing.T) {
	exp := &stubExporter{err: fmt.Errorf("%w: build:features", usecase.ErrBuildInProgress)}
	e := newExportingHandler(t, &stubEquity{}, &stubCrypto{}, exp)

	assert.Equal(t, http.StatusConflict, do(e, http.MethodPost, "/api/features/export").Code)
}

func TestExport_RouteAbsentWithoutExporter(t *testing.T) {
	e := newTestHandler(t, &stubEquity{}, &stubCrypto{})
	assert.NotEqual(t, http.StatusOK, do(e, http.MethodPost, "/api/features/export").Code)
}

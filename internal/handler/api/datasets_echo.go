package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"FeatPull/internal/domain/models"
	"FeatPull/internal/middleware"
	"FeatPull/internal/service/cache"
	"FeatPull/internal/service/ratelimit"
	"FeatPull/internal/usecase"
	xhttp "FeatPull/pkg/http"
	xlogger "FeatPull/pkg/logger"
	"FeatPull/pkg/util"

	"github.com/labstack/echo/v4"
)

// Per-client budget for dataset builds, which fan out to several upstreams.
const (
	buildBurst     = 3
	buildPerSecond = 0.2
)

// bitcoinTTL matches the Cache-Control max-age of /api/bitcoin.
const bitcoinTTL = 5 * time.Minute

// FeaturesResponse is the JSON body of GET /api/features.
type FeaturesResponse struct {
	AsOf    string      `json:"as_of"`
	Target  string      `json:"target"`
	Columns []string    `json:"columns"`
	Dates   []string    `json:"dates"`
	Rows    [][]float64 `json:"rows"`
}

// PricePoint is one element of GET /api/bitcoin.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// ExportResponse is the JSON body of POST /api/features/export.
type ExportResponse struct {
	AsOf    string   `json:"as_of"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Exporter builds the feature matrix under the build lock and writes it to the sinks.
type Exporter interface {
	Export(ctx context.Context, today time.Time) (*models.FeatureMatrix, error)
}

// DatasetsEchoHandler serves freshly built datasets.
type DatasetsEchoHandler struct {
	logger    *xlogger.Logger
	assembler *usecase.FeatureAssembler
	bitcoin   *usecase.BitcoinHistory
	exporter  Exporter
	rl        *ratelimit.Limiter
	prices    *cache.TTL[[]PricePoint]
	now       func() time.Time
}

func NewDatasetsEchoHandler(logger *xlogger.Logger, assembler *usecase.FeatureAssembler, bitcoin *usecase.BitcoinHistory) *DatasetsEchoHandler {
	return &DatasetsEchoHandler{
		logger:    logger,
		assembler: assembler,
		bitcoin:   bitcoin,
		rl:        ratelimit.New(),
		prices:    cache.NewTTL[[]PricePoint](bitcoinTTL),
		now:       time.Now,
	}
}

// WithExporter enables POST /api/features/export.
func (h *DatasetsEchoHandler) WithExporter(exp Exporter) *DatasetsEchoHandler {
	h.exporter = exp
	return h
}

func (h *DatasetsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/features", h.Features)
	g.GET("/bitcoin", h.Bitcoin)
	if h.exporter != nil {
		g.POST("/features/export", h.Export)
	}
}

func (h *DatasetsEchoHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":features", buildBurst, buildPerSecond) {
		h.logger.Warn("features rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}
	asOf, err := util.DayOrToday(req.AsOf, h.now)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_DATETIME", Field: "as_of", Message: err.Error()}})
	}

	assembler := h.assembler
	if req.ReturnPeriod != assembler.Config().ReturnPeriod {
		if assembler, err = assembler.WithReturnPeriod(req.ReturnPeriod); err != nil {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_GTE", Field: "return_period", Message: err.Error()}})
		}
	}

	m, err := assembler.Build(c.Request().Context(), asOf)
	if err != nil {
		h.logger.Error("features usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	dates := make([]string, len(m.Dates))
	for i, d := range m.Dates {
		dates[i] = d.Format(util.DayLayout)
	}
	return xhttp.SuccessResponse(c, FeaturesResponse{
		AsOf:    m.AsOf.Format(util.DayLayout),
		Target:  m.Target,
		Columns: m.Columns,
		Dates:   dates,
		Rows:    m.Rows,
	})
}

func (h *DatasetsEchoHandler) Export(c echo.Context) error {
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":features", buildBurst, buildPerSecond) {
		h.logger.Warn("export rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}
	asOf, err := util.DayOrToday(req.AsOf, h.now)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_DATETIME", Field: "as_of", Message: err.Error()}})
	}

	m, err := h.exporter.Export(c.Request().Context(), asOf)
	if err != nil {
		h.logger.Error("export usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, ExportResponse{
		AsOf:    m.AsOf.Format(util.DayLayout),
		Rows:    m.NumRows(),
		Columns: m.Columns,
	})
}

func (h *DatasetsEchoHandler) Bitcoin(c echo.Context) error {
	req := &models.BitcoinRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := strconv.Itoa(req.Days)
	out, ok := h.prices.Get(key)
	if !ok {
		s, err := h.bitcoin.History(c.Request().Context(), req.Days)
		if err != nil {
			h.logger.Error("bitcoin usecase error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		out = make([]PricePoint, len(s.Points))
		for i, p := range s.Points {
			out[i] = PricePoint{Date: p.Date.Format(util.DayLayout), Price: p.Price}
		}
		h.prices.Set(key, out)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, out)
}

// toAppError maps domain and upstream failures onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var status *xhttp.StatusError
	switch {
	case errors.Is(err, usecase.ErrBuildInProgress):
		return xhttp.ConflictError("a build is already running").WithError(err)
	case errors.Is(err, models.ErrEmptyDataset):
		return xhttp.UnprocessableError("no complete rows in the requested window").WithError(err)
	case errors.Is(err, middleware.ErrRetriesExhausted):
		return xhttp.UnavailableError("upstream is rate limiting, try again later").WithError(err)
	case errors.As(err, &status), errors.Is(err, models.ErrMalformedResponse):
		return xhttp.BadGatewayError("upstream data source failed").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

var _ xhttp.Handler = (*DatasetsEchoHandler)(nil)

package fred

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"FeatPull/internal/domain/models"
	drepo "FeatPull/internal/domain/repository"
	xhttp "FeatPull/pkg/http"
	applogger "FeatPull/pkg/logger"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	DefaultBaseURL = "https://fred.stlouisfed.org"
	dateLayout     = "2006-01-02"
	// missing marks a holiday or unpublished observation in the CSV export.
	missing = "."
)

// Client fetches several FRED series in a single CSV download.
type Client struct {
	baseURL string
	http    *xhttp.Client
	logger  *applogger.Logger
}

// New creates a FRED client. An empty baseURL selects the public endpoint.
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
	return &Client{baseURL: baseURL, http: h, logger: logger}
}

// Fetch implements MacroSource. Columns follow ids order; missing values are NaN.
func (c *Client) Fetch(ctx context.Context, ids []string, start, end time.Time) (*models.Frame, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("fred: no series requested")
	}
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/graph/fredgraph.csv",
		QueryParams: map[string][]string{
			"id":   {strings.Join(ids, ",")},
			"cosd": {start.Format(dateLayout)},
			"coed": {end.Format(dateLayout)},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fred %s: %w", strings.Join(ids, ","), err)
	}

	frame, err := parseCSV(body, ids, models.Day(start), models.Day(end))
	if err != nil {
		return nil, fmt.Errorf("fred: %w", err)
	}
	c.logger.Debug("downloaded macro series",
		applogger.Strings("ids", ids),
		applogger.Int("rows", frame.Len()),
	)
	return frame, nil
}

func parseCSV(body []byte, ids []string, start, end time.Time) (*models.Frame, error) {
	if header, ok := headerOnly(body); ok {
		return emptyFrame(header, ids)
	}
	df := dataframe.ReadCSV(bytes.NewReader(body),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, df.Err)
	}
	names := df.Names()
	if len(names) < 2 {
		return nil, fmt.Errorf("%w: expected a date column and series columns", models.ErrMalformedResponse)
	}

	// the date header has been both DATE and observation_date
	rawDates := df.Col(names[0]).Records()
	dates := make([]time.Time, 0, len(rawDates))
	rows := make([]int, 0, len(rawDates))
	for i, s := range rawDates {
		d, err := time.Parse(dateLayout, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", models.ErrMalformedResponse, s)
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		dates = append(dates, d)
		rows = append(rows, i)
	}
	index := models.UnionIndex(dates)
	frame := models.NewFrame(index)

	for _, id := range ids {
		if !contains(names, id) {
			return nil, fmt.Errorf("%w: series %s missing from response", models.ErrMalformedResponse, id)
		}
		records := df.Col(id).Records()
		obs := make([]models.Observation, len(rows))
		for j, r := range rows {
			v, err := parseValue(records[r])
			if err != nil {
				return nil, fmt.Errorf("%w: series %s on %s: %v", models.ErrMalformedResponse, id, dates[j].Format(dateLayout), err)
			}
			obs[j] = models.Observation{Date: dates[j], Value: v}
		}
		if err := frame.AddColumn(id, models.Reindex(index, obs)); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// parseValue reads one cell. Only the FRED missing markers become NaN.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == missing || s == "NaN" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cell %q is not a number", s)
	}
	return v, nil
}

// headerOnly reports whether body has a header line and no observations.
// gota refuses such input, but it is a valid answer for a window with no data.
func headerOnly(body []byte) ([]string, bool) {
	var lines []string
	for _, l := range strings.Split(string(body), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) != 1 {
		return nil, false
	}
	header := strings.Split(lines[0], ",")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, true
}

func emptyFrame(header, ids []string) (*models.Frame, error) {
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: expected a date column and series columns", models.ErrMalformedResponse)
	}
	frame := models.NewFrame(nil)
	for _, id := range ids {
		if !contains(header[1:], id) {
			return nil, fmt.Errorf("%w: series %s missing from response", models.ErrMalformedResponse, id)
		}
		if err := frame.AddColumn(id, []float64{}); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

var _ drepo.MacroSource = (*Client)(nil)

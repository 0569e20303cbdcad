package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	applogger "FeatPull/pkg/logger"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const dateLayout = "2006-01-02"

// CSVSink writes datasets as CSV files named after their as-of date.
type CSVSink struct {
	dir string
	l   *applogger.Logger
}

func NewCSVSink(dir string, l *applogger.Logger) *CSVSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVSink{dir: dir, l: l}
}

func (s *CSVSink) Name() string { return "csv" }

// FeaturesPath returns the file a matrix built as of asOf is written to.
func (s *CSVSink) FeaturesPath(asOf time.Time) string {
	return filepath.Join(s.dir, "features_"+asOf.Format(dateLayout)+".csv")
}

// PricesPath returns the file a price series fetched on asOf is written to.
func (s *CSVSink) PricesPath(asOf time.Time) string {
	return filepath.Join(s.dir, "bitcoin_"+asOf.Format(dateLayout)+".csv")
}

func (s *CSVSink) StoreFeatures(_ context.Context, m *models.FeatureMatrix) error {
	cols := make([]series.Series, 0, len(m.Columns)+1)
	cols = append(cols, dateSeries(m.Dates))
	for _, name := range m.Columns {
		values, _ := m.Column(name)
		cols = append(cols, floatSeries(name, values))
	}
	return s.write(s.FeaturesPath(m.AsOf), dataframe.New(cols...))
}

func (s *CSVSink) StorePrices(_ context.Context, asOf time.Time, p *models.PriceSeries) error {
	dates := make([]time.Time, p.Len())
	prices := make([]float64, p.Len())
	for i, pt := range p.Points {
		dates[i] = pt.Date
		prices[i] = pt.Price
	}
	return s.write(s.PricesPath(asOf), dataframe.New(dateSeries(dates), floatSeries(p.Name, prices)))
}

func (s *CSVSink) write(path string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("csv frame: %w", df.Err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv create: %w", err)
	}
	if err := df.WriteCSV(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv close %s: %w", path, err)
	}
	s.l.Info("csv written", applogger.String("path", path), applogger.Int("rows", df.Nrow()))
	return nil
}

func dateSeries(dates []time.Time) series.Series {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(dateLayout)
	}
	return series.New(out, series.String, "Date")
}

// floatSeries keeps full precision; gota's float formatting rounds to six places.
func floatSeries(name string, values []float64) series.Series {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return series.New(out, series.String, name)
}

var _ domrepo.DatasetSink = (*CSVSink)(nil)

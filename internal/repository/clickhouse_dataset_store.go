package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	applogger "FeatPull/pkg/logger"
)

// insertChunk bounds the rows of one multi-row VALUES insert.
const insertChunk = 2000

// Execer is satisfied by *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CHDatasetStore persists feature matrices in long format and BTC prices.
type CHDatasetStore struct {
	db       Execer
	database string
	l        *applogger.Logger
}

func NewCHDatasetStore(db Execer, database string) *CHDatasetStore {
	if database == "" {
		database = "default"
	}
	return &CHDatasetStore{db: db, database: database, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHDatasetStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHDatasetStore) Name() string { return "clickhouse" }

// Schema returns the idempotent DDL for the dataset tables.
func (s *CHDatasetStore) Schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.feature_rows (
			as_of Date,
			row UInt32,
			date Date,
			feature String,
			value Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (as_of, feature, row)`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.btc_prices (
			date Date,
			price Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY date`, s.database),
	}
}

func (s *CHDatasetStore) StoreFeatures(ctx context.Context, m *models.FeatureMatrix) error {
	start := time.Now()
	args := make([]any, 0, m.NumRows()*len(m.Columns)*5)
	for r, row := range m.Rows {
		for c, name := range m.Columns {
			args = append(args, m.AsOf, uint32(r), m.Dates[r], name, row[c])
		}
	}
	table := s.database + ".feature_rows"
	n, err := s.insert(ctx, table, "(as_of, row, date, feature, value)", 5, args)
	if err != nil {
		s.l.Error("clickhouse store_features error", applogger.String("table", table), applogger.Error(err))
		return fmt.Errorf("store features: %w", err)
	}
	s.l.Info("clickhouse store_features ok",
		applogger.String("table", table),
		applogger.Date("as_of", m.AsOf),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHDatasetStore) StorePrices(ctx context.Context, _ time.Time, p *models.PriceSeries) error {
	start := time.Now()
	args := make([]any, 0, p.Len()*2)
	for _, pt := range p.Points {
		args = append(args, pt.Date, pt.Price)
	}
	table := s.database + ".btc_prices"
	n, err := s.insert(ctx, table, "(date, price)", 2, args)
	if err != nil {
		s.l.Error("clickhouse store_prices error", applogger.String("table", table), applogger.Error(err))
		return fmt.Errorf("store prices: %w", err)
	}
	s.l.Info("clickhouse store_prices ok",
		applogger.String("table", table),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// insert writes args as rows of width columns, insertChunk rows per statement.
func (s *CHDatasetStore) insert(ctx context.Context, table, columns string, width int, args []any) (int, error) {
	rows := len(args) / width
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	for lo := 0; lo < rows; lo += insertChunk {
		hi := min(lo+insertChunk, rows)
		values := make([]string, hi-lo)
		for i := range values {
			values[i] = placeholder
		}
		q := fmt.Sprintf("INSERT INTO %s %s VALUES %s", table, columns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args[lo*width:hi*width]...); err != nil {
			return lo, err
		}
	}
	return rows, nil
}

var _ domrepo.DatasetSink = (*CHDatasetStore)(nil)

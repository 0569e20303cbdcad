package models

import (
	"errors"
	"time"
)

var (
	ErrMissingSeries     = errors.New("missing series")
	ErrEmptyDataset      = errors.New("empty dataset after alignment")
	ErrMalformedResponse = errors.New("malformed response")
)

// FeatureMatrix is the assembled supervised-learning table.
// Rows are positional; Dates[i] is the observation date of Rows[i].
type FeatureMatrix struct {
	AsOf    time.Time
	Dates   []time.Time
	Columns []string
	Target  string
	Rows    [][]float64
}

// NumRows returns the number of rows.
func (m *FeatureMatrix) NumRows() int { return len(m.Rows) }

// Column returns a copy of a named column.
func (m *FeatureMatrix) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range m.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// FeatureNames returns all columns except the target.
func (m *FeatureMatrix) FeatureNames() []string {
	out := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		if c != m.Target {
			out = append(out, c)
		}
	}
	return out
}

// PricePoint is a single daily close.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// PriceSeries is a date-indexed single-column price table.
type PriceSeries struct {
	Name   string
	Points []PricePoint
}

// Len returns the number of points.
func (s *PriceSeries) Len() int { return len(s.Points) }

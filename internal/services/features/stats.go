package features

import (
	"FeatPull/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats summarises one feature matrix column.
type ColumnStats struct {
	Name   string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Describe computes per-column summary statistics.
// Returns nil for an empty matrix.
func Describe(m *models.FeatureMatrix) []ColumnStats {
	if m == nil || m.NumRows() == 0 {
		return nil
	}
	out := make([]ColumnStats, 0, len(m.Columns))
	for _, name := range m.Columns {
		col, _ := m.Column(name)
		mean, std := stat.MeanStdDev(col, nil)
		out = append(out, ColumnStats{
			Name:   name,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(col),
			Max:    floats.Max(col),
		})
	}
	return out
}

package features

import (
	"fmt"
	"math"
	"time"

	"FeatPull/internal/domain/models"
)

// Log returns the natural log of each value. Non-positive and missing
// values map to NaN so they are removed by DropIncomplete.
func Log(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) || x <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(x)
	}
	return out
}

// Diff returns out[i] = xs[i] - xs[i-k]. The first k values are NaN.
func Diff(xs []float64, k int) []float64 {
	out := models.NaNs(len(xs))
	for i := k; i < len(xs); i++ {
		out[i] = xs[i] - xs[i-k]
	}
	return out
}

// Shift moves values by k positions: out[i] = xs[i-k].
// A negative k pulls future values back onto earlier rows.
func Shift(xs []float64, k int) []float64 {
	out := models.NaNs(len(xs))
	for i := range xs {
		j := i - k
		if j >= 0 && j < len(xs) {
			out[i] = xs[j]
		}
	}
	return out
}

// LogDiff is the k-row log return: log(x[i]) - log(x[i-k]).
func LogDiff(xs []float64, k int) []float64 {
	return Diff(Log(xs), k)
}

// FutureLogReturn is the k-row log return realised after row i:
// log(x[i+k]) - log(x[i]). The last k values are NaN.
func FutureLogReturn(xs []float64, k int) []float64 {
	return Shift(LogDiff(xs, k), -k)
}

// LogDiffFrame applies LogDiff to every column of f, on f's own rows.
func LogDiffFrame(f *models.Frame, k int) *models.Frame {
	out := models.NewFrame(f.Index)
	for i, name := range f.Names {
		out.Names = append(out.Names, name)
		out.Cols = append(out.Cols, LogDiff(f.Cols[i], k))
	}
	return out
}

// Join outer-joins frames on their date index. Columns keep argument order.
func Join(frames ...*models.Frame) (*models.Frame, error) {
	indexes := make([][]time.Time, 0, len(frames))
	for _, f := range frames {
		indexes = append(indexes, f.Index)
	}
	index := models.UnionIndex(indexes...)
	out := models.NewFrame(index)

	for _, f := range frames {
		for ci, name := range f.Names {
			obs := make([]models.Observation, len(f.Index))
			for ri, d := range f.Index {
				obs[ri] = models.Observation{Date: d, Value: f.Cols[ci][ri]}
			}
			if err := out.AddColumn(name, models.Reindex(index, obs)); err != nil {
				return nil, fmt.Errorf("join: %w", err)
			}
		}
	}
	return out, nil
}

// DropIncomplete removes every row holding a NaN in any column.
func DropIncomplete(f *models.Frame) *models.Frame {
	keep := make([]int, 0, f.Len())
	for r := range f.Index {
		complete := true
		for _, col := range f.Cols {
			if math.IsNaN(col[r]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}
	return takeRows(f, keep)
}

// EveryNth keeps rows 0, k, 2k, ... of f.
func EveryNth(f *models.Frame, k int) *models.Frame {
	if k <= 1 {
		return f
	}
	keep := make([]int, 0, f.Len()/k+1)
	for r := 0; r < f.Len(); r += k {
		keep = append(keep, r)
	}
	return takeRows(f, keep)
}

func takeRows(f *models.Frame, rows []int) *models.Frame {
	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = f.Index[r]
	}
	out := models.NewFrame(index)
	for ci, name := range f.Names {
		col := make([]float64, len(rows))
		for i, r := range rows {
			col[i] = f.Cols[ci][r]
		}
		out.Names = append(out.Names, name)
		out.Cols = append(out.Cols, col)
	}
	return out
}

// ToMatrix converts a frame into a row-major feature matrix.
// The date index moves to Dates and is not a column.
func ToMatrix(f *models.Frame, target string, asOf time.Time) *models.FeatureMatrix {
	m := &models.FeatureMatrix{
		AsOf:    asOf,
		Dates:   append([]time.Time(nil), f.Index...),
		Columns: append([]string(nil), f.Names...),
		Target:  target,
		Rows:    make([][]float64, f.Len()),
	}
	for r := range f.Index {
		row := make([]float64, len(f.Cols))
		for c, col := range f.Cols {
			row[c] = col[r]
		}
		m.Rows[r] = row
	}
	return m
}

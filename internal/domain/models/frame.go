package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Field names produced by equity providers.
const (
	FieldOpen     = "Open"
	FieldHigh     = "High"
	FieldLow      = "Low"
	FieldClose    = "Close"
	FieldAdjClose = "Adj Close"
	FieldVolume   = "Volume"
)

// EquityFields lists panel fields in provider order.
var EquityFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldAdjClose, FieldVolume}

// Frame is a date-indexed table of float64 columns.
// Missing values are NaN. Index is strictly increasing.
type Frame struct {
	Index []time.Time
	Names []string
	Cols  [][]float64
}

// NewFrame creates an empty frame over index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{Index: index}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Index) }

// AddColumn appends a named column. The column length must match the index.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != len(f.Index) {
		return fmt.Errorf("column %s: length %d != index length %d", name, len(values), len(f.Index))
	}
	if _, ok := f.Column(name); ok {
		return fmt.Errorf("column %s: duplicate name", name)
	}
	f.Names = append(f.Names, name)
	f.Cols = append(f.Cols, values)
	return nil
}

// Column returns the values of a named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Cols[i], true
		}
	}
	return nil, false
}

// Select returns a frame with only the named columns, in the given order.
// Column slices are shared with f.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := NewFrame(f.Index)
	for _, n := range names {
		col, ok := f.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: column %s", ErrMissingSeries, n)
		}
		out.Names = append(out.Names, n)
		out.Cols = append(out.Cols, col)
	}
	return out, nil
}

// Panel is a two-level table: field -> frame of one column per ticker.
// All frames share the same index.
type Panel struct {
	Index  []time.Time
	Fields map[string]*Frame
}

// NewPanel creates a panel with an empty frame for each field.
func NewPanel(index []time.Time, fields ...string) *Panel {
	p := &Panel{Index: index, Fields: make(map[string]*Frame, len(fields))}
	for _, name := range fields {
		p.Fields[name] = NewFrame(index)
	}
	return p
}

// Field returns the frame for a field.
func (p *Panel) Field(name string) (*Frame, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: field %s on empty panel", ErrMissingSeries, name)
	}
	f, ok := p.Fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: field %s", ErrMissingSeries, name)
	}
	return f, nil
}

// Observation is one dated value from a single upstream series.
type Observation struct {
	Date  time.Time
	Value float64
}

// UnionIndex returns the sorted, de-duplicated union of dates.
func UnionIndex(sets ...[]time.Time) []time.Time {
	seen := make(map[int64]struct{})
	out := make([]time.Time, 0)
	for _, set := range sets {
		for _, d := range set {
			k := d.Unix()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Reindex places observations on index, filling gaps with NaN.
// Later observations for the same date overwrite earlier ones.
func Reindex(index []time.Time, obs []Observation) []float64 {
	pos := make(map[int64]int, len(index))
	for i, d := range index {
		pos[d.Unix()] = i
	}
	out := NaNs(len(index))
	for _, o := range obs {
		if i, ok := pos[o.Date.Unix()]; ok {
			out[i] = o.Value
		}
	}
	return out
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

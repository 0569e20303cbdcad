package yahoo

import (
	"time"

	"FeatPull/internal/domain/models"
)

// bar is one daily OHLCV row for a single ticker.
type bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

func (b bar) field(name string) float64 {
	switch name {
	case models.FieldOpen:
		return b.Open
	case models.FieldHigh:
		return b.High
	case models.FieldLow:
		return b.Low
	case models.FieldClose:
		return b.Close
	case models.FieldAdjClose:
		return b.AdjClose
	default:
		return b.Volume
	}
}

// buildPanel aligns per-ticker bars on the union of their dates.
// Tickers keep request order inside every field frame.
func buildPanel(tickers []string, bars map[string][]bar) (*models.Panel, error) {
	dates := make([][]time.Time, 0, len(tickers))
	for _, t := range tickers {
		ds := make([]time.Time, len(bars[t]))
		for i, b := range bars[t] {
			ds[i] = b.Date
		}
		dates = append(dates, ds)
	}
	index := models.UnionIndex(dates...)
	panel := models.NewPanel(index, models.EquityFields...)

	for _, field := range models.EquityFields {
		frame := panel.Fields[field]
		for _, t := range tickers {
			obs := make([]models.Observation, len(bars[t]))
			for i, b := range bars[t] {
				obs[i] = models.Observation{Date: b.Date, Value: b.field(field)}
			}
			if err := frame.AddColumn(t, models.Reindex(index, obs)); err != nil {
				return nil, err
			}
		}
	}
	return panel, nil
}

package usecase

import (
	"context"
	"errors"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day0.AddDate(0, 0, i)
	}
	return out
}

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

type fakeEquity struct {
	adj   map[string][]float64
	index []time.Time
	err   error
	reqs  []domrepo.EquityRequest
}

func (f *fakeEquity) Download(_ context.Context, req domrepo.EquityRequest) (*models.Panel, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	p := models.NewPanel(f.index, models.FieldAdjClose)
	for _, t := range req.Tickers {
		col, ok := f.adj[t]
		if !ok {
			continue
		}
		if err := p.Fields[models.FieldAdjClose].AddColumn(t, col); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type fakeMacro struct {
	cols  map[string][]float64
	index []time.Time
	err   error
	calls [][]string
}

func (f *fakeMacro) Fetch(_ context.Context, ids []string, _, _ time.Time) (*models.Frame, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	fr := models.NewFrame(f.index)
	for _, id := range ids {
		col, ok := f.cols[id]
		if !ok {
			return nil, errors.New("unknown series " + id)
		}
		if err := fr.AddColumn(id, col); err != nil {
			return nil, err
		}
	}
	return fr, nil
}

type fakeCrypto struct {
	series *models.PriceSeries
	err    error
}

func (f *fakeCrypto) History(_ context.Context, _ int) (*models.PriceSeries, error) {
	return f.series, f.err
}

type fakeSink struct {
	name     string
	features []*models.FeatureMatrix
	prices   []*models.PriceSeries
	err      error
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) StoreFeatures(_ context.Context, m *models.FeatureMatrix) error {
	if s.err != nil {
		return s.err
	}
	s.features = append(s.features, m)
	return nil
}

func (s *fakeSink) StorePrices(_ context.Context, _ time.Time, p *models.PriceSeries) error {
	if s.err != nil {
		return s.err
	}
	s.prices = append(s.prices, p)
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	unlocked []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	delete(l.held, key)
	l.unlocked = append(l.unlocked, key)
	return nil
}

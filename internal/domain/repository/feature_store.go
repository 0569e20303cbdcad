package repository

import (
	"context"
	"time"

	"FeatPull/internal/domain/models"
)

// DatasetSink receives finished datasets for persistence or publication.
type DatasetSink interface {
	Name() string
	StoreFeatures(ctx context.Context, m *models.FeatureMatrix) error
	StorePrices(ctx context.Context, asOf time.Time, s *models.PriceSeries) error
}

// Locker guards a build against concurrent runs sharing an upstream quota.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

package repository

import (
	"context"
	"fmt"
	"time"

	"FeatPull/internal/domain/models"
	domrepo "FeatPull/internal/domain/repository"
	pkgkafka "FeatPull/pkg/kafka"
	applogger "FeatPull/pkg/logger"
)

// BatchPublisher is satisfied by *pkgkafka.Producer.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// FeatureRowMessage is the payload of one feature matrix row.
type FeatureRowMessage struct {
	AsOf     string             `json:"as_of"`
	Date     string             `json:"date"`
	Target   float64            `json:"target"`
	Features map[string]float64 `json:"features"`
}

// PriceMessage is the payload of one daily price.
type PriceMessage struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// KafkaDatasetPublisher publishes datasets one message per row, keyed by date.
type KafkaDatasetPublisher struct {
	pub           BatchPublisher
	featuresTopic string
	pricesTopic   string
	l             *applogger.Logger
}

func NewKafkaDatasetPublisher(pub BatchPublisher, featuresTopic, pricesTopic string, l *applogger.Logger) *KafkaDatasetPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaDatasetPublisher{pub: pub, featuresTopic: featuresTopic, pricesTopic: pricesTopic, l: l}
}

func (p *KafkaDatasetPublisher) Name() string { return "kafka" }

func (p *KafkaDatasetPublisher) StoreFeatures(ctx context.Context, m *models.FeatureMatrix) error {
	targetIdx := -1
	for i, c := range m.Columns {
		if c == m.Target {
			targetIdx = i
		}
	}
	if targetIdx < 0 {
		return fmt.Errorf("%w: target column %s", models.ErrMissingSeries, m.Target)
	}

	asOf := m.AsOf.Format(dateLayout)
	msgs := make([]pkgkafka.Message, 0, m.NumRows())
	for r, row := range m.Rows {
		date := m.Dates[r].Format(dateLayout)
		feats := make(map[string]float64, len(row)-1)
		for c, name := range m.Columns {
			if c != targetIdx {
				feats[name] = row[c]
			}
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(date),
			Value: FeatureRowMessage{AsOf: asOf, Date: date, Target: row[targetIdx], Features: feats},
		})
	}
	if err := p.pub.PublishBatch(ctx, p.featuresTopic, msgs); err != nil {
		return fmt.Errorf("publish features: %w", err)
	}
	p.l.Info("kafka features published", applogger.String("topic", p.featuresTopic), applogger.Int("messages", len(msgs)))
	return nil
}

func (p *KafkaDatasetPublisher) StorePrices(ctx context.Context, _ time.Time, s *models.PriceSeries) error {
	msgs := make([]pkgkafka.Message, 0, s.Len())
	for _, pt := range s.Points {
		date := pt.Date.Format(dateLayout)
		msgs = append(msgs, pkgkafka.Message{Key: []byte(date), Value: PriceMessage{Date: date, Price: pt.Price}})
	}
	if err := p.pub.PublishBatch(ctx, p.pricesTopic, msgs); err != nil {
		return fmt.Errorf("publish prices: %w", err)
	}
	p.l.Info("kafka prices published", applogger.String("topic", p.pricesTopic), applogger.Int("messages", len(msgs)))
	return nil
}

var _ domrepo.DatasetSink = (*KafkaDatasetPublisher)(nil)

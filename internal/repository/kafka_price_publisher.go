package repository

import (
	"context"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgkafka "CoinPull/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher mirrors stored points to a Kafka topic, keyed by asset id.
type KafkaPublisher struct {
	producer batchProducer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(points))
	for i, pt := range points {
		msgs[i] = pkgkafka.Message{Key: []byte(pt.AssetID), Value: pt}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops everything. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBatch(context.Context, []models.PricePoint) error { return nil }
func (NoopPublisher) Close() error                                            { return nil }

var (
	_ domrepo.Publisher = (*KafkaPublisher)(nil)
	_ domrepo.Publisher = NoopPublisher{}
)

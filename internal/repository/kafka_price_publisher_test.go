package repository

import (
	"context"
	"testing"

	"CoinPull/internal/domain/models"
	pkgkafka "CoinPull/pkg/kafka"
)

type recordingProducer struct {
	topic string
	msgs  []pkgkafka.Message
}

func (r *recordingProducer) PublishBatch(_ context.Context, topic string, messages []pkgkafka.Message) error {
	r.topic = topic
	r.msgs = append(r.msgs, messages...)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func TestKafkaPublisherKeysByAsset(t *testing.T) {
	rec := &recordingProducer{}
	p := &KafkaPublisher{producer: rec, topic: "coinpull.prices"}

	err := p.PublishBatch(context.Background(), []models.PricePoint{pt("bitcoin", 0, 1), pt("ethereum", 0, 2)})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.topic != "coinpull.prices" || len(rec.msgs) != 2 {
		t.Fatalf("topic=%q msgs=%d", rec.topic, len(rec.msgs))
	}
	if string(rec.msgs[1].Key) != "ethereum" {
		t.Fatalf("unexpected key %q", rec.msgs[1].Key)
	}
	if _, ok := rec.msgs[0].Value.(models.PricePoint); !ok {
		t.Fatalf("value should be the point, got %T", rec.msgs[0].Value)
	}

	if err := p.PublishBatch(context.Background(), nil); err != nil || len(rec.msgs) != 2 {
		t.Fatalf("empty batch must be a no-op")
	}
}

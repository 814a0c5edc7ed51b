package repository

import (
	"context"
	"fmt"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	pkgkafka "pairspread/pkg/kafka"
)

// producer is the part of pkg/kafka.Producer the publisher uses.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSignalPublisher implements SignalPublisher for Kafka. Messages are keyed by pair
// so that every pair's signals stay ordered within one partition.
type KafkaSignalPublisher struct {
	producer producer
	topic    string
}

// NewKafkaSignalPublisher creates Kafka publisher.
func NewKafkaSignalPublisher(p producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: p, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Pair), ev); err != nil {
		return fmt.Errorf("publish signal %s: %w", ev.ID, err)
	}
	return nil
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, evs []*models.SignalEvent) error {
	msgs := make([]pkgkafka.Message, 0, len(evs))
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(ev.Pair), Value: ev})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish signals batch: %w", err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

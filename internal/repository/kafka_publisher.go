package repository

import (
	"context"
	"fmt"

	"github.com/finbridge/finbridge/internal/domain/models"
	pkgkafka "github.com/finbridge/finbridge/pkg/kafka"
)

// KafkaPublisher fans fetched financial data out on a Kafka topic,
// keyed by CIK so one company's updates stay ordered.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a publisher over an existing producer.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = "financial-data"
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishFinancialData publishes one fetch result as a JSON message.
func (p *KafkaPublisher) PublishFinancialData(ctx context.Context, data *models.FinancialData) error {
	if data == nil {
		return nil
	}
	key := []byte(data.Company.IdentityKey())
	if err := p.producer.Publish(ctx, p.topic, key, data); err != nil {
		return fmt.Errorf("publish financial data: %w", err)
	}
	return nil
}

// Close closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

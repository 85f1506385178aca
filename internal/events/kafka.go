package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "govdociq/pkg/domain-errors"
)

// KafkaBus publishes envelopes to a Kafka (or Redpanda) topic, keyed by
// document ID so each document's events stay ordered within a partition.
type KafkaBus struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaBus connects to the seed brokers. The caller owns Close.
func NewKafkaBus(brokers []string, topic string, logger *slog.Logger) (*KafkaBus, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "connect kafka", err)
	}
	return &KafkaBus{client: client, topic: topic, logger: logger}, nil
}

// Publish validates, serializes and produces the envelope synchronously.
func (b *KafkaBus) Publish(ctx context.Context, envelope Envelope) error {
	if err := ValidatePayload(envelope.EventType, envelope.Payload); err != nil {
		return err
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "marshal event envelope", err)
	}

	record := &kgo.Record{
		Topic: b.topic,
		Key:   []byte(envelope.DocumentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(envelope.EventType)},
			{Key: "tenant_id", Value: []byte(envelope.TenantID)},
		},
	}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "produce event", err)
	}

	if b.logger != nil {
		b.logger.DebugContext(ctx, "event produced",
			"event_type", envelope.EventType,
			"topic", b.topic,
			"document_id", envelope.DocumentID,
		)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (b *KafkaBus) Close() {
	b.client.Close()
}

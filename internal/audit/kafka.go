package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	relayInterval  = 2 * time.Second
	relayBatchSize = 100
)

// KafkaRelay drains the audit outbox into a Kafka topic. The topic is the
// durable audit trail; the outbox row is marked published only after the
// broker acknowledges the record, so delivery is at-least-once.
type KafkaRelay struct {
	client *kgo.Client
	store  Store
	logger *slog.Logger
}

func NewKafkaRelay(brokers []string, topic string, store Store, logger *slog.Logger) (*KafkaRelay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaRelay{client: client, store: store, logger: logger}, nil
}

// Run relays batches until the context is cancelled.
func (r *KafkaRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "audit relay batch failed", "error", err)
			}
		}
	}
}

func (r *KafkaRelay) relayBatch(ctx context.Context) error {
	events, err := r.store.ClaimUnpublished(ctx, relayBatchSize)
	if err != nil {
		return fmt.Errorf("claim unpublished: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", ev.ID, err)
		}
		records = append(records, &kgo.Record{
			Key:   ev.ApplicationID[:],
			Value: payload,
		})
	}

	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if err := r.store.MarkPublished(ctx, ids); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	r.logger.DebugContext(ctx, "audit relay published batch", "count", len(ids))
	return nil
}

// Close flushes buffered records and releases the client.
func (r *KafkaRelay) Close() {
	r.client.Close()
}

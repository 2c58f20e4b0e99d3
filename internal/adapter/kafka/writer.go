package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// maxBatch bounds the messages handed to one WriteMessages call.
const maxBatch = 500

// Writer publishes scored records to a Kafka topic for the presentation
// layer. It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes records and writes them keyed by external ID, so every
// version of one event lands on the same partition.
func (w *Writer) Publish(ctx context.Context, records []domain.ScoredRecord) (int, error) {
	published := 0
	for start := 0; start < len(records); start += maxBatch {
		end := min(start+maxBatch, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(records[i])
			if err != nil {
				return published, err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return published, fmt.Errorf("write messages: %w", err)
		}
		published += len(msgs)
	}
	w.logger.Debug("records published", "topic", w.writer.Topic, "count", published)
	return published, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(rec domain.ScoredRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize scored record %s: %w", rec.ExternalID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ExternalID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(rec.Source)},
			{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/config"
	"github.com/couchcryptid/geocoder-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes geocode replies to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes replies in a single WriteMessages call.
// Replies are keyed by request ID so all answers for one ID land on the same
// partition.
func (w *Writer) LoadBatch(ctx context.Context, replies []domain.GeocodeReply) error {
	if len(replies) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(replies))
	for i := range replies {
		msg, err := serializeToMessage(replies[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write replies: %w", err)
	}
	w.logger.Debug("batch loaded", "size", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(reply domain.GeocodeReply) (kafkago.Message, error) {
	data, err := json.Marshal(reply)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize geocode reply: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "kind", Value: []byte(reply.Kind)},
		{Key: "status", Value: []byte(reply.Status)},
		{Key: "processed_at", Value: []byte(reply.ProcessedAt.Format(time.RFC3339))},
	}
	if reply.ErrorKind != "" {
		headers = append(headers, kafkago.Header{Key: "error_kind", Value: []byte(reply.ErrorKind)})
	}
	return kafkago.Message{
		Key:     []byte(reply.ID),
		Value:   data,
		Headers: headers,
	}, nil
}

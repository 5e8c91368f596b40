package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/config"
	"github.com/couchcryptid/shake-monitor/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces readings to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Readings
// are keyed by device id so a device's readings stay ordered on one partition.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes multiple readings to the sink topic in a
// single WriteMessages call. A reading that cannot be serialized is logged and
// dropped so it does not hold back the rest of the batch.
func (w *Writer) LoadBatch(ctx context.Context, readings []domain.Reading) error {
	msgs := w.buildMessages(readings)
	if len(msgs) == 0 {
		return nil
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) buildMessages(readings []domain.Reading) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(readings))
	for i := range readings {
		msg, err := serializeToMessage(readings[i])
		if err != nil {
			w.logger.Warn("dropping unserializable reading",
				"error", err,
				"device_id", readings[i].DeviceID,
				"session_id", readings[i].SessionID,
				"sequence", readings[i].Sequence,
			)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Reading into a Kafka message.
func serializeToMessage(r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.DeviceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(r.Level.String())},
			{Key: "processed_at", Value: []byte(r.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

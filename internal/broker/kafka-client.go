package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
)

// Producer mirrors measurement records to KAFKA_TOPIC and rejected
// envelopes to KAFKA_DLQ_TOPIC.
type Producer struct {
	main  *kafka.Writer
	dlq   *kafka.Writer
	newID func() string
}

func NewProducer(cfg *config.Config, logger *log.Logger) *Producer {
	return &Producer{
		main:  newWriter(cfg, cfg.KafkaTopic, logger),
		dlq:   newWriter(cfg, cfg.KafkaDLQTopic, logger),
		newID: uuid.NewString,
	}
}

func newWriter(cfg *config.Config, topic string, logger *log.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,

		RequiredAcks: parseAcks(cfg.KafkaRequiredAcks),
		MaxAttempts:  cfg.KafkaMaxAttempts,
		Async:        true,
		Compression:  parseCompression(cfg.KafkaCompression),
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Printf("[kafka] write to %s failed (%d messages): %v", topic, len(messages), err)
			}
		},
	}
}

func (p *Producer) Close() {
	_ = p.main.Close()
	_ = p.dlq.Close()
}

func (p *Producer) Write(ctx context.Context, m model.Measurement) error {
	msg, err := recordMessage(m, p.newID())
	if err != nil {
		return err
	}
	return p.main.WriteMessages(ctx, msg)
}

func (p *Producer) Reject(ctx context.Context, r model.Rejection) error {
	msg, err := rejectMessage(r, p.newID())
	if err != nil {
		return err
	}
	return p.dlq.WriteMessages(ctx, msg)
}

func recordMessage(m model.Measurement, eventID string) (kafka.Message, error) {
	value, err := json.Marshal(m)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal measurement: %w", err)
	}
	key := m.Tags["mac"]
	if key == "" {
		key = "unknown-device"
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventId", Value: []byte(eventID)},
			{Key: "receivedAt", Value: []byte(m.Time.UTC().Format(time.RFC3339Nano))},
		},
	}, nil
}

func rejectMessage(r model.Rejection, eventID string) (kafka.Message, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal rejection: %w", err)
	}
	key := r.SourceMAC
	if key == "" {
		key = "invalid"
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventId", Value: []byte(eventID)},
			{Key: "stage", Value: []byte(r.Stage)},
		},
	}, nil
}

func parseCompression(s string) kafka.Compression {
	switch strings.ToLower(s) {
	case "", "none", "no", "off", "0":
		return kafka.Compression(0)
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

func parseAcks(s string) kafka.RequiredAcks {
	switch strings.ToLower(s) {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

package broker

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
)

func dialAnyBroker(ctx context.Context, brokers []string, perAttempt time.Duration, logger *log.Logger) (*kafka.Conn, string, error) {
	var lastErr error
	for _, b := range brokers {
		dctx, cancel := context.WithTimeout(ctx, perAttempt)
		conn, err := kafka.DialContext(dctx, "tcp", b)
		cancel()
		if err == nil {
			return conn, b, nil
		}
		lastErr = err
		logger.Printf("[warn] kafka cannot connect to %s: %v (trying next)", b, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no brokers provided")
	}
	return nil, "", lastErr
}

// EnsureKafkaTopics creates the mirror and DLQ topics when absent.
func EnsureKafkaTopics(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	const perAttempt = 5 * time.Second

	conn, bootstrap, err := dialAnyBroker(ctx, cfg.KafkaBrokers, perAttempt, logger)
	if err != nil {
		return fmt.Errorf("bootstrap connect failed (tried %v): %w", cfg.KafkaBrokers, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("read controller from %s failed: %w", bootstrap, err)
	}
	dctx, cancel := context.WithTimeout(ctx, perAttempt)
	defer cancel()
	ctrlConn, err := kafka.DialContext(dctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("controller connect failed: %w", err)
	}
	defer ctrlConn.Close()

	var missing []kafka.TopicConfig
	for _, tc := range topicConfigs(cfg) {
		if parts, err := conn.ReadPartitions(tc.Topic); err == nil && len(parts) > 0 {
			logger.Printf("[kafka] topic %s already exists, skipping", tc.Topic)
			continue
		}
		logger.Printf("[kafka] creating topic %s (partitions=%d rf=%d)", tc.Topic, tc.NumPartitions, tc.ReplicationFactor)
		missing = append(missing, tc)
	}
	if len(missing) == 0 {
		return nil
	}
	return ctrlConn.CreateTopics(missing...)
}

func topicConfigs(cfg *config.Config) []kafka.TopicConfig {
	entries := []kafka.ConfigEntry{{ConfigName: "compression.type", ConfigValue: compressionType(cfg.KafkaCompression)}}
	return []kafka.TopicConfig{
		{
			Topic:             cfg.KafkaTopic,
			NumPartitions:     cfg.KafkaTopicPartitions,
			ReplicationFactor: cfg.KafkaReplicationFactor,
			ConfigEntries:     entries,
		},
		{
			Topic:             cfg.KafkaDLQTopic,
			NumPartitions:     cfg.KafkaDLQPartitions,
			ReplicationFactor: cfg.KafkaReplicationFactor,
			ConfigEntries:     entries,
		},
	}
}

// compressionType maps the writer codec to the broker's topic-level name.
func compressionType(s string) string {
	if c := parseCompression(s); c != 0 {
		return c.String()
	}
	return "producer"
}

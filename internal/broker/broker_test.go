package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
)

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestRecordMessage(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	msg, err := recordMessage(model.Measurement{
		Name:   "ruuvitag",
		Tags:   map[string]string{"mac": "AA:BB", "name": "sauna"},
		Fields: map[string]any{"temperature": 80.5},
		Time:   at,
	}, "id-1")
	require.NoError(t, err)

	assert.Equal(t, "AA:BB", string(msg.Key))
	assert.Equal(t, "id-1", header(msg, "eventId"))
	assert.Equal(t, "2024-05-06T07:08:09Z", header(msg, "receivedAt"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "ruuvitag", body["measurement"])
	assert.Equal(t, 80.5, body["fields"].(map[string]any)["temperature"])
}

func TestRecordMessage_NoMAC(t *testing.T) {
	msg, err := recordMessage(model.Measurement{Name: "ruuvitag"}, "id")
	require.NoError(t, err)
	assert.Equal(t, "unknown-device", string(msg.Key))
}

func TestRejectMessage(t *testing.T) {
	msg, err := rejectMessage(model.Rejection{Error: "too_short", Stage: "frame_validation", SourceMAC: "AA"}, "id-2")
	require.NoError(t, err)

	assert.Equal(t, "AA", string(msg.Key))
	assert.Equal(t, "id-2", header(msg, "eventId"))
	assert.Equal(t, "frame_validation", header(msg, "stage"))

	msg, err = rejectMessage(model.Rejection{Stage: "decode_envelope"}, "id-3")
	require.NoError(t, err)
	assert.Equal(t, "invalid", string(msg.Key))
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Compression(0), parseCompression("none"))
	assert.Equal(t, kafka.Compression(0), parseCompression(""))
	assert.Equal(t, kafka.Gzip, parseCompression("GZIP"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Snappy, parseCompression("whatever"))
}

func TestParseAcks(t *testing.T) {
	assert.Equal(t, kafka.RequireNone, parseAcks("none"))
	assert.Equal(t, kafka.RequireAll, parseAcks("ALL"))
	assert.Equal(t, kafka.RequireOne, parseAcks("one"))
}

func TestTopicConfigs(t *testing.T) {
	cfg := &config.Config{
		KafkaTopic:             "ruuvi-measurements",
		KafkaDLQTopic:          "ruuvi-rejects",
		KafkaTopicPartitions:   3,
		KafkaDLQPartitions:     1,
		KafkaReplicationFactor: 1,
		KafkaCompression:       "none",
	}

	tcs := topicConfigs(cfg)
	require.Len(t, tcs, 2)
	assert.Equal(t, "ruuvi-measurements", tcs[0].Topic)
	assert.Equal(t, 3, tcs[0].NumPartitions)
	assert.Equal(t, "ruuvi-rejects", tcs[1].Topic)
	assert.Equal(t, 1, tcs[1].NumPartitions)
	assert.Equal(t, "producer", tcs[0].ConfigEntries[0].ConfigValue)

	cfg.KafkaCompression = "lz4"
	assert.Equal(t, "lz4", topicConfigs(cfg)[1].ConfigEntries[0].ConfigValue)
}

func TestProducer_UsesEventIDs(t *testing.T) {
	p := NewProducer(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "a", KafkaDLQTopic: "b"}, nil)
	defer p.Close()

	assert.Equal(t, "a", p.main.Topic)
	assert.Equal(t, "b", p.dlq.Topic)
	assert.Len(t, p.newID(), 36)
}

package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// MQTT
	MQTTBrokerURL        string
	MQTTClientID         string
	MQTTUsername         string // opcional
	MQTTPassword         string // opcional
	MQTTTopic            string
	MQTTQoS              byte
	MQTTChannelDepth     uint
	MQTTConnectTimeoutMs int

	// InfluxDB
	InfluxURL      string
	InfluxToken    string
	InfluxOrg      string
	InfluxDatabase string
	InfluxTimeoutS int

	// Kafka (opcional: vazio desliga o espelho e a DLQ)
	KafkaBrokers           []string
	KafkaTopic             string
	KafkaDLQTopic          string
	KafkaTopicPartitions   int
	KafkaDLQPartitions     int
	KafkaReplicationFactor int
	KafkaCompression       string
	KafkaRequiredAcks      string
	KafkaMaxAttempts       int

	// Redis (opcional: tabela de nomes)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisNamesKey string

	MetricsAddr string

	// Flags de linha de comando
	TestMode    bool
	QuietMode   bool
	MappingFile string
}

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

func (c *Config) String() string {
	return fmt.Sprintf(`
MQTT:
  BrokerURL:      %s
  ClientID:       %s
  Username:       %s
  Topic:          %s
  QoS:            %d
  ChannelDepth:   %d
  ConnectTimeout: %dms

InfluxDB:
  URL:            %s
  Org:            %s
  Database:       %s
  TimeoutS:       %d

Kafka:
  Brokers:           %v
  Topic:             %s
  DLQTopic:          %s
  Partitions:        %d
  DLQPartitions:     %d
  ReplicationFactor: %d
  Compression:       %s
  RequiredAcks:      %s
  MaxAttempts:       %d

Redis:
  Addr:           %s
  DB:             %d
  NamesKey:       %s

Metrics:          %s
Test:             %t
Quiet:            %t
MappingFile:      %s
`, c.MQTTBrokerURL, c.MQTTClientID, c.MQTTUsername, c.MQTTTopic, c.MQTTQoS, c.MQTTChannelDepth, c.MQTTConnectTimeoutMs,
		c.InfluxURL, c.InfluxOrg, c.InfluxDatabase, c.InfluxTimeoutS,
		c.KafkaBrokers, c.KafkaTopic, c.KafkaDLQTopic, c.KafkaTopicPartitions, c.KafkaDLQPartitions, c.KafkaReplicationFactor,
		c.KafkaCompression, c.KafkaRequiredAcks, c.KafkaMaxAttempts,
		c.RedisAddr, c.RedisDB, c.RedisNamesKey,
		c.MetricsAddr, c.TestMode, c.QuietMode, c.MappingFile)
}

type errList []string

func (e *errList) addf(format string, a ...any) { *e = append(*e, fmt.Sprintf(format, a...)) }
func (e *errList) add(msg string)               { *e = append(*e, msg) }
func (e *errList) has() bool                    { return len(*e) > 0 }

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int, errs *errList) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		errs.addf("%s invalid (expected int): %q", key, v)
		return fallback
	}
	return n
}

func getenvUInt(key string, fallback uint, errs *errList) uint {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		errs.addf("%s invalid (expected uint): %q", key, v)
		return fallback
	}
	return uint(n)
}

func getenvQoS(key string, fallback byte, errs *errList) byte {
	n := getenvInt(key, int(fallback), errs)
	if n < 0 || n > 2 {
		errs.addf("%s invalid (0..2): %d", key, n)
		return fallback
	}
	return byte(n)
}

func ensureOneOf(key, val string, allowed []string, errs *errList) {
	for _, a := range allowed {
		if val == a {
			return
		}
	}
	errs.addf("%s invalid (allowed: %s): %q", key, strings.Join(allowed, ", "), val)
}

func parseBrokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// influxURL prefers INFLUXDB_URL and otherwise builds one from INFLUXDB_HOST/INFLUXDB_PORT.
func influxURL(errs *errList) string {
	if v := getenv("INFLUXDB_URL", ""); v != "" {
		return v
	}
	host := getenv("INFLUXDB_HOST", "localhost")
	port := getenvInt("INFLUXDB_PORT", 8086, errs)
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func validateSanity(c *Config, errs *errList) {
	if c.MQTTTopic == "" {
		errs.add("MQTT_TOPIC must not be empty")
	}
	if c.MQTTChannelDepth == 0 {
		errs.add("MQTT_CHANNEL_DEPTH must be > 0")
	}
	if c.MQTTConnectTimeoutMs <= 0 {
		errs.add("MQTT_CONNECT_TIMEOUT_MS must be > 0")
	}
	if c.InfluxDatabase == "" {
		errs.add("INFLUXDB_DATABASE must not be empty")
	}
	if c.InfluxTimeoutS <= 0 {
		errs.add("INFLUXDB_TIMEOUT_S must be > 0")
	}
	if c.RedisDB < 0 {
		errs.add("REDIS_DB must be >= 0")
	}
	if !c.KafkaEnabled() {
		return
	}
	ensureOneOf("KAFKA_COMPRESSION", c.KafkaCompression, []string{"none", "gzip", "snappy", "lz4", "zstd"}, errs)
	ensureOneOf("KAFKA_REQUIRED_ACKS", c.KafkaRequiredAcks, []string{"none", "one", "all"}, errs)
	if c.KafkaTopicPartitions <= 0 {
		errs.add("KAFKA_TOPIC_PARTITIONS must be > 0")
	}
	if c.KafkaDLQPartitions <= 0 {
		errs.add("KAFKA_DLQ_PARTITIONS must be > 0")
	}
	if c.KafkaReplicationFactor <= 0 {
		errs.add("KAFKA_REPLICATION_FACTOR must be > 0")
	}
	if c.KafkaReplicationFactor > len(c.KafkaBrokers) {
		errs.add("KAFKA_REPLICATION_FACTOR cannot exceed the number of brokers in KAFKA_BROKERS")
	}
	if c.KafkaMaxAttempts <= 0 {
		errs.add("KAFKA_MAX_ATTEMPTS must be > 0")
	}
}

// LoadConfig reads the environment. Every problem is logged before a single error is returned.
func LoadConfig() (*Config, error) {
	var errs errList

	cfg := &Config{
		MQTTBrokerURL:        getenv("MQTT_URL", "mqtt://localhost/"),
		MQTTClientID:         getenv("MQTT_CLIENT_ID", "ruuvi-loader"),
		MQTTUsername:         os.Getenv("MQTT_USERNAME"),
		MQTTPassword:         os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:            getenv("MQTT_TOPIC", "/home/ble-deduped"),
		MQTTQoS:              getenvQoS("MQTT_QOS", 0, &errs),
		MQTTChannelDepth:     getenvUInt("MQTT_CHANNEL_DEPTH", 256, &errs),
		MQTTConnectTimeoutMs: getenvInt("MQTT_CONNECT_TIMEOUT_MS", 10_000, &errs),

		InfluxURL:      influxURL(&errs),
		InfluxToken:    os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:      os.Getenv("INFLUXDB_ORG"),
		InfluxDatabase: getenv("INFLUXDB_DATABASE", "tag_data"),
		InfluxTimeoutS: getenvInt("INFLUXDB_TIMEOUT_S", 10, &errs),

		KafkaBrokers:           parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:             getenv("KAFKA_TOPIC", "ruuvi-measurements"),
		KafkaDLQTopic:          getenv("KAFKA_DLQ_TOPIC", "ruuvi-rejects"),
		KafkaTopicPartitions:   getenvInt("KAFKA_TOPIC_PARTITIONS", 3, &errs),
		KafkaDLQPartitions:     getenvInt("KAFKA_DLQ_PARTITIONS", 1, &errs),
		KafkaReplicationFactor: getenvInt("KAFKA_REPLICATION_FACTOR", 1, &errs),
		KafkaCompression:       getenv("KAFKA_COMPRESSION", "snappy"),
		KafkaRequiredAcks:      getenv("KAFKA_REQUIRED_ACKS", "one"),
		KafkaMaxAttempts:       getenvInt("KAFKA_MAX_ATTEMPTS", 10, &errs),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0, &errs),
		RedisNamesKey: getenv("REDIS_NAMES_KEY", "ruuvi:names"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),

		MappingFile: "-",
	}

	validateSanity(cfg, &errs)

	if errs.has() {
		for _, e := range errs {
			log.Printf("[config] %s", e)
		}
		return nil, errors.New("missing/invalid environment variables, see log above")
	}

	return cfg, nil
}

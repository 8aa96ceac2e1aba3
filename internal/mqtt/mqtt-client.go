package mqtt

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
)

// Transport is a paho subscription feeding a bounded delivery channel.
type Transport struct {
	client     mqtt.Client
	broker     string
	topic      string
	qos        byte
	timeout    time.Duration
	logger     *log.Logger
	deliveries chan []byte
	done       chan struct{}

	mu         sync.Mutex
	subscribed bool
	closeOnce  sync.Once
}

func NewTransport(cfg *config.Config, logger *log.Logger) (*Transport, error) {
	broker, err := brokerURL(cfg.MQTTBrokerURL)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		broker:     broker,
		topic:      cfg.MQTTTopic,
		qos:        cfg.MQTTQoS,
		timeout:    time.Duration(cfg.MQTTConnectTimeoutMs) * time.Millisecond,
		logger:     logger,
		deliveries: make(chan []byte, cfg.MQTTChannelDepth),
		done:       make(chan struct{}),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.MQTTClientID).
		SetOrderMatters(true).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(t.timeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.OnConnect = t.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Printf("[mqtt] connection lost: %v", err)
	}
	opts.OnReconnecting = func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Printf("[mqtt] reconnecting to %s", broker)
	}

	t.client = mqtt.NewClient(opts)
	return t, nil
}

func (t *Transport) Connect(ctx context.Context) error {
	t.logger.Printf("[mqtt] connecting to %s", t.broker)
	if err := t.wait(ctx, t.client.Connect()); err != nil {
		return fmt.Errorf("connect %s: %w", t.broker, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context) (<-chan []byte, error) {
	if err := t.wait(ctx, t.client.Subscribe(t.topic, t.qos, t.deliver)); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", t.topic, err)
	}
	t.mu.Lock()
	t.subscribed = true
	t.mu.Unlock()

	t.logger.Printf("[mqtt] subscribed to topic: %s (QoS %d)", t.topic, t.qos)
	return t.deliveries, nil
}

// Disconnect unblocks a pending delivery and closes the session. Safe to call twice.
func (t *Transport) Disconnect() {
	t.closeOnce.Do(func() {
		close(t.done)
		if t.client.IsConnected() {
			t.client.Disconnect(250)
		}
		t.logger.Printf("[mqtt] disconnected")
	})
}

// deliver blocks paho's router while the channel is full, so a slow sink
// pushes back on the broker instead of growing memory.
func (t *Transport) deliver(_ mqtt.Client, msg mqtt.Message) {
	select {
	case t.deliveries <- msg.Payload():
	case <-t.done:
	}
}

func (t *Transport) onConnect(c mqtt.Client) {
	t.logger.Printf("[mqtt] connected to %s", t.broker)

	t.mu.Lock()
	resubscribe := t.subscribed
	t.mu.Unlock()
	if !resubscribe {
		return
	}

	t.logResubscribe(c.Subscribe(t.topic, t.qos, t.deliver))
}

func (t *Transport) logResubscribe(token mqtt.Token) {
	switch {
	case !token.WaitTimeout(t.timeout):
		t.logger.Printf("[mqtt] resubscribe to %s timed out after %s", t.topic, t.timeout)
	case token.Error() != nil:
		t.logger.Printf("[mqtt] resubscribe error: %v", token.Error())
	default:
		t.logger.Printf("[mqtt] resubscribed to topic: %s (QoS %d)", t.topic, t.qos)
	}
}

func (t *Transport) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", t.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// brokerURL fills in the default port for TCP and TLS schemes.
func brokerURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid MQTT_URL %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid MQTT_URL %q: missing host", raw)
	}

	var port string
	switch u.Scheme {
	case "mqtt", "tcp":
		port = "1883"
	case "mqtts", "ssl", "tls", "tcps":
		port = "8883"
	case "ws", "wss":
		return u.String(), nil
	default:
		return "", fmt.Errorf("invalid MQTT_URL %q: unsupported scheme %q", raw, u.Scheme)
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	u.Path = ""
	u.RawPath = ""
	return u.String(), nil
}

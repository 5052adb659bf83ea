// Package heartbeat publishes the device status to an MQTT broker.
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type Config struct {
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Interval time.Duration `yaml:"interval"`
	ClientID string        `yaml:"client_id"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Publisher keeps a reconnecting MQTT session open and publishes status
// payloads to a single topic.
type Publisher struct {
	cfg    Config
	source func() Payload
	Client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewPublisher creates a publisher. source is called once per heartbeat.
func NewPublisher(cfg Config, source func() Payload) *Publisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "diary-cam-" + uuid.NewString()[:8]
	}
	return &Publisher{cfg: cfg, source: source}
}

// Connect establishes the broker session. Auto-reconnect keeps it alive
// afterwards.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		slog.Info("mqtt connection established", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", p.cfg.Broker)
	}

	p.Client = mqtt.NewClient(opts)
	slog.Info("connecting to mqtt broker", "broker", p.cfg.Broker)

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	token := p.Client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Publish sends one status payload.
func (p *Publisher) Publish(payload Payload) error {
	if !p.isConnected() {
		p.countError()
		return fmt.Errorf("mqtt not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	token := p.Client.Publish(p.cfg.Topic, p.cfg.QoS, false, data)
	if !token.WaitTimeout(2 * time.Second) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	slog.Debug("heartbeat published", "topic", p.cfg.Topic, "size", len(data))
	return nil
}

// Beat publishes the current status. It is the scheduled job.
func (p *Publisher) Beat() {
	if err := p.Publish(p.source()); err != nil {
		slog.Warn("Heartbeat not published", "error", err)
	}
}

// Disconnect closes the session.
func (p *Publisher) Disconnect() {
	if p.Client != nil && p.Client.IsConnected() {
		p.Client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	p.setConnected(false)
}

// Stats returns the published and failed heartbeat counts.
func (p *Publisher) Stats() (published, errors uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published, p.errors
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

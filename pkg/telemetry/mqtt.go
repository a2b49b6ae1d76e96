package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/touchamp/pkg/config"
	"github.com/itohio/touchamp/pkg/control"
)

const mqttTimeout = 2 * time.Second

// PublishFunc sends one MQTT message.
type PublishFunc func(topic string, qos byte, retained bool, payload []byte) error

// MQTTPublisher publishes cycles to <topic>/cycle and the output level,
// retained, to <topic>/level whenever it changes. Publishing happens on the
// goroutine running Run; Publish only enqueues.
type MQTTPublisher struct {
	topic   string
	publish PublishFunc
	logger  *slog.Logger

	queue     chan control.Cycle
	lastLevel int
	haveLevel bool
	close     func()
}

// NewMQTTPublisher creates a publisher on top of publish.
func NewMQTTPublisher(topic string, publish PublishFunc, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		topic:   topic,
		publish: publish,
		logger:  logger,
		queue:   make(chan control.Cycle, 64),
	}
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg config.TelemetryConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: timeout", cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.MQTTBroker, err)
	}

	p := NewMQTTPublisher(cfg.MQTTTopic, func(topic string, qos byte, retained bool, payload []byte) error {
		t := client.Publish(topic, qos, retained, payload)
		if !t.WaitTimeout(mqttTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return t.Error()
	}, logger)
	p.close = func() { client.Disconnect(250) }

	logger.Info("mqtt telemetry connected", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	return p, nil
}

// Publish enqueues a cycle. When the queue is full the cycle is dropped.
func (p *MQTTPublisher) Publish(c control.Cycle) {
	select {
	case p.queue <- c:
	default:
		p.logger.Debug("mqtt queue full, dropping cycle")
	}
}

// Run publishes queued cycles until ctx is cancelled, then disconnects.
func (p *MQTTPublisher) Run(ctx context.Context) {
	defer func() {
		if p.close != nil {
			p.close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.queue:
			p.send(c)
		}
	}
}

func (p *MQTTPublisher) send(c control.Cycle) {
	payload, err := json.Marshal(c)
	if err != nil {
		p.logger.Warn("mqtt cycle marshal failed", "error", err)
		return
	}
	if err := p.publish(p.topic+"/cycle", 0, false, payload); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", p.topic+"/cycle", "error", err)
	}

	if p.haveLevel && c.Level == p.lastLevel {
		return
	}
	if err := p.publish(p.topic+"/level", 1, true, []byte(strconv.Itoa(c.Level))); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", p.topic+"/level", "error", err)
		return
	}
	p.lastLevel = c.Level
	p.haveLevel = true
}

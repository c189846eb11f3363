package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
)

const publishTimeout = 2 * time.Second

// Publisher pushes acquisition results to the broker as retained messages,
// so late subscribers (display, console) get the last result immediately.
// A nil *Publisher is valid and publishes nothing.
type Publisher struct {
	client       mqtt.Client
	topicSamples string
	topicReport  string
	logger       *zap.Logger
}

// connectMQTT connects a paho client, waiting for the handshake.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// NewPublisher connects to MQTT_BROKER. An empty broker disables publishing
// and returns a nil Publisher.
func NewPublisher(cfg *config.Config, clientID string, logger *zap.Logger) (*Publisher, error) {
	if cfg.MQTTBroker == "" {
		logger.Info("mqtt disabled, MQTT_BROKER is empty")
		return nil, nil
	}

	client, err := connectMQTT(cfg.MQTTBroker, clientID)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker), zap.String("client_id", clientID))

	return &Publisher{
		client:       client,
		topicSamples: cfg.TopicSamples,
		topicReport:  cfg.TopicReport,
		logger:       logger,
	}, nil
}

// Publish sends the window and its summary. Failures are logged; the
// acquisition result stays valid without the broker.
func (p *Publisher) Publish(w flow.Window, summary report.Summary) {
	if p == nil {
		return
	}
	p.publishJSON(p.topicSamples, w)

	// samples already went out on their own topic
	summary.Samples = nil
	p.publishJSON(p.topicReport, summary)
}

func (p *Publisher) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("mqtt payload marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}

	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("mqtt publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	p.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}

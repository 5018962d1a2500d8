package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/voltify/voltify/pkg/types"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "voltify"

const publishTimeout = 5 * time.Second

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
}

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTT publishes readings to <prefix>/<userID>/power and alerts to
// <prefix>/<userID>/alerts as JSON.
type MQTT struct {
	client      mqttClient
	topicPrefix string
}

var _ Publisher = (*MQTT)(nil)

// NewMQTT connects to the broker.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "voltify"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return newMQTT(client, cfg.TopicPrefix), nil
}

func newMQTT(client mqttClient, topicPrefix string) *MQTT {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &MQTT{client: client, topicPrefix: topicPrefix}
}

func (p *MQTT) topic(userID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, userID, kind)
}

func (p *MQTT) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	token := p.client.Publish(topic, 1, false, payload)
	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// PublishReading publishes a live reading.
func (p *MQTT) PublishReading(ctx context.Context, userID string, reading types.PowerReading) error {
	return p.publish(ctx, p.topic(userID, "power"), reading)
}

// PublishAlert publishes a peak or auto-cutoff alert.
func (p *MQTT) PublishAlert(ctx context.Context, userID string, alert types.Alert) error {
	return p.publish(ctx, p.topic(userID, "alerts"), alert)
}

// Close disconnects from the MQTT broker.
func (p *MQTT) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

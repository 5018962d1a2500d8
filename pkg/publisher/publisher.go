package publisher

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/types"
)

// Publisher mirrors live feed output to an external system.
type Publisher interface {
	PublishReading(ctx context.Context, userID string, reading types.PowerReading) error
	PublishAlert(ctx context.Context, userID string, alert types.Alert) error
	Close()
}

// Configured returns an MQTT publisher when --mqtt-broker is set and a no-op
// publisher otherwise.
func Configured() Publisher {
	broker := lflag.String("mqtt-broker", "", "MQTT broker (host:port) to mirror live readings and alerts to")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	topicPrefix := lflag.String("mqtt-topic-prefix", DefaultTopicPrefix, "Prefix for MQTT topics")
	clientID := lflag.String("mqtt-client-id", "voltify", "MQTT client ID")

	var p struct{ Publisher }
	p.Publisher = Noop{}

	lflag.Do(func() {
		if *broker == "" {
			return
		}
		m, err := NewMQTT(MQTTConfig{
			Broker:      *broker,
			Username:    *username,
			Password:    *password,
			TopicPrefix: *topicPrefix,
			ClientID:    *clientID,
		})
		if err != nil {
			panic(fmt.Sprintf("mqtt init failed: %v", err))
		}
		p.Publisher = m
	})

	return &p
}

// Noop discards everything.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) PublishReading(context.Context, string, types.PowerReading) error { return nil }
func (Noop) PublishAlert(context.Context, string, types.Alert) error { return nil }
func (Noop) Close() {}

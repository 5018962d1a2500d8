package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltify/voltify/pkg/types"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []published
	token        *fakeToken
	connected    bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, payload: payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestMQTTPublishReading(t *testing.T) {
	client := &fakeClient{}
	p := newMQTT(client, "home")

	ts := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishReading(context.Background(), "user-1", types.PowerReading{Timestamp: ts, KWH: 2.75}))

	require.Len(t, client.messages, 1)
	assert.Equal(t, "home/user-1/power", client.messages[0].topic)

	var got types.PowerReading
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &got))
	assert.Equal(t, 2.75, got.KWH)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestMQTTPublishAlert(t *testing.T) {
	client := &fakeClient{}
	p := newMQTT(client, "")

	require.NoError(t, p.PublishAlert(context.Background(), "user-1", types.Alert{Kind: types.AlertKindAutoCutoff, KWH: 3.1}))

	require.Len(t, client.messages, 1)
	assert.Equal(t, "voltify/user-1/alerts", client.messages[0].topic)
	assert.Contains(t, string(client.messages[0].payload), `"kind":"autoCutoff"`)
}

func TestMQTTPublishErrors(t *testing.T) {
	t.Run("TokenError", func(t *testing.T) {
		client := &fakeClient{token: &fakeToken{err: errors.New("not connected")}}
		p := newMQTT(client, "home")
		err := p.PublishReading(context.Background(), "user-1", types.PowerReading{})
		assert.ErrorContains(t, err, "not connected")
	})

	t.Run("Timeout", func(t *testing.T) {
		client := &fakeClient{token: &fakeToken{pending: true}}
		p := newMQTT(client, "home")
		err := p.PublishReading(context.Background(), "user-1", types.PowerReading{})
		assert.ErrorContains(t, err, "timed out")
	})
}

func TestMQTTClose(t *testing.T) {
	client := &fakeClient{connected: true}
	newMQTT(client, "home").Close()
	assert.True(t, client.disconnected)

	idle := &fakeClient{}
	newMQTT(idle, "home").Close()
	assert.False(t, idle.disconnected)
}

func TestNewMQTTRequiresBroker(t *testing.T) {
	_, err := NewMQTT(MQTTConfig{})
	assert.ErrorContains(t, err, "broker address is required")
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.PublishReading(context.Background(), "u", types.PowerReading{}))
	assert.NoError(t, p.PublishAlert(context.Background(), "u", types.Alert{}))
	p.Close()
}

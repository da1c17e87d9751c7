package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 2 * time.Second

// mqttPublisher is the part of mqtt.Client the sink needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes events at QoS 0 to <prefix>/<entity>/<action>.
type MQTTSink struct {
	client  mqttPublisher
	prefix  string
	timeout time.Duration
}

// DialMQTT connects to the broker and returns a ready client.
func DialMQTT(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return client, nil
}

func NewMQTTSink(client mqttPublisher, prefix string) *MQTTSink {
	return &MQTTSink{client: client, prefix: strings.TrimSuffix(prefix, "/"), timeout: mqttPublishTimeout}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Topic maps an event name such as "prescription.refilled" to its topic.
func (s *MQTTSink) Topic(name string) string {
	return s.prefix + "/" + strings.ReplaceAll(name, ".", "/")
}

func (s *MQTTSink) Handle(_ context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := s.Topic(ev.Name)
	token := s.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

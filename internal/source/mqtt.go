package source

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type mqttSource struct {
	broker   string
	topic    string
	clientID string
	username string
	password string
}

var _ Source = (*mqttSource)(nil)
var _ Session = (*mqttSession)(nil)

// NewMQTT subscribes to vendor payloads republished by a bridge on an
// MQTT topic. Auto-reconnect stays off: the ingest loop owns retry.
func NewMQTT(broker, topic, clientID, username, password string) Source {
	return &mqttSource{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		username: username,
		password: password,
	}
}

func (s *mqttSource) Open(ctx context.Context) (Session, error) {
	session := &mqttSession{
		events: make(chan Advertisement, 16),
		failed: make(chan error, 1),
	}

	options := mqtt.NewClientOptions()
	options.AddBroker(s.broker)
	options.SetClientID(s.clientID)
	options.SetAutoReconnect(false)
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case session.failed <- fmt.Errorf("mqtt connection lost: %w", err):
		default:
		}
	})
	if s.username != "" {
		options.SetUsername(s.username)
		options.SetPassword(s.password)
	}

	client := mqtt.NewClient(options)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", s.broker, token.Error())
	}

	token := client.Subscribe(s.topic, 0, func(_ mqtt.Client, message mqtt.Message) {
		payload := append([]byte(nil), message.Payload()...)
		select {
		case session.events <- Advertisement{Device: message.Topic(), Payload: payload}:
		default:
		}
	})
	if token.Wait() && token.Error() != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}

	session.client = client
	return session, nil
}

type mqttSession struct {
	client mqtt.Client
	events chan Advertisement
	failed chan error
}

func (session *mqttSession) Next(ctx context.Context) (Advertisement, error) {
	select {
	case advertisement := <-session.events:
		return advertisement, nil
	case err := <-session.failed:
		return Advertisement{}, err
	case <-ctx.Done():
		return Advertisement{}, ctx.Err()
	}
}

func (session *mqttSession) Close() error {
	session.client.Disconnect(250)
	return nil
}

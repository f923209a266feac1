package main

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type mqttPublisher struct {
	client mqtt.Client
	topic  string
}

var _ Publisher = (*mqttPublisher)(nil)

func newMQTTPublisher(broker, topic string) (Publisher, error) {
	options := mqtt.NewClientOptions()
	options.AddBroker(broker)
	options.SetClientID("xg27-simulator")

	client := mqtt.NewClient(options)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", broker, token.Error())
	}

	return &mqttPublisher{client: client, topic: topic}, nil
}

func (publisher *mqttPublisher) Publish(payload []byte) error {
	token := publisher.client.Publish(publisher.topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", publisher.topic, token.Error())
	}
	return nil
}

func (publisher *mqttPublisher) Close() error {
	publisher.client.Disconnect(250)
	return nil
}

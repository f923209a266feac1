package main

import (
	"context"
	"fmt"
)

// Publisher sends raw advertisement payloads to wherever the server's
// matching source backend is listening.
type Publisher interface {
	Publish(payload []byte) error
	Close() error
}

func newPublisher(ctx context.Context, backend, addr, topic string) (Publisher, error) {
	switch backend {
	case "mqtt":
		if addr == "" {
			addr = "tcp://127.0.0.1:1883"
		}
		if topic == "" {
			topic = "xg27/advertisements"
		}
		return newMQTTPublisher(addr, topic)
	case "nats":
		if addr == "" {
			addr = "nats://127.0.0.1:4222"
		}
		if topic == "" {
			topic = "xg27.advertisements"
		}
		return newNATSPublisher(addr, topic)
	case "zmq":
		if addr == "" {
			addr = "tcp://127.0.0.1:5556"
		}
		return newZMQPublisher(ctx, addr)
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
}

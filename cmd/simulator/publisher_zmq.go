package main

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

type zmqPublisher struct {
	socket zmq4.Socket
}

var _ Publisher = (*zmqPublisher)(nil)

func newZMQPublisher(ctx context.Context, endpoint string) (Publisher, error) {
	socket := zmq4.NewPub(ctx)
	if err := socket.Listen(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("listen zmq %s: %w", endpoint, err)
	}
	return &zmqPublisher{socket: socket}, nil
}

func (publisher *zmqPublisher) Publish(payload []byte) error {
	return publisher.socket.Send(zmq4.NewMsg(payload))
}

func (publisher *zmqPublisher) Close() error {
	return publisher.socket.Close()
}

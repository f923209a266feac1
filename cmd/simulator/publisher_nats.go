package main

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

type natsPublisher struct {
	conn    *nats.Conn
	subject string
}

var _ Publisher = (*natsPublisher)(nil)

func newNATSPublisher(url, subject string) (Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &natsPublisher{conn: conn, subject: subject}, nil
}

func (publisher *natsPublisher) Publish(payload []byte) error {
	return publisher.conn.Publish(publisher.subject, payload)
}

func (publisher *natsPublisher) Close() error {
	if err := publisher.conn.Flush(); err != nil {
		publisher.conn.Close()
		return err
	}
	publisher.conn.Close()
	return nil
}

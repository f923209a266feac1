package source

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

type natsSource struct {
	url     string
	subject string
}

var _ Source = (*natsSource)(nil)
var _ Session = (*natsSession)(nil)

// NewNATS subscribes to vendor payloads republished by a bridge on a
// NATS subject. Client-side reconnect stays off: the ingest loop owns
// retry.
func NewNATS(url, subject string) Source {
	return &natsSource{url: url, subject: subject}
}

func (s *natsSource) Open(ctx context.Context) (Session, error) {
	session := &natsSession{
		events: make(chan Advertisement, 16),
		failed: make(chan error, 1),
	}

	conn, err := nats.Connect(s.url,
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err == nil {
				err = ErrSessionClosed
			}
			select {
			case session.failed <- fmt.Errorf("nats connection lost: %w", err):
			default:
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", s.url, err)
	}

	subscription, err := conn.Subscribe(s.subject, func(message *nats.Msg) {
		payload := append([]byte(nil), message.Data...)
		select {
		case session.events <- Advertisement{Device: message.Subject, Payload: payload}:
		default:
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	session.conn = conn
	session.subscription = subscription
	return session, nil
}

type natsSession struct {
	conn         *nats.Conn
	subscription *nats.Subscription
	events       chan Advertisement
	failed       chan error
}

func (session *natsSession) Next(ctx context.Context) (Advertisement, error) {
	select {
	case advertisement := <-session.events:
		return advertisement, nil
	case err := <-session.failed:
		return Advertisement{}, err
	case <-ctx.Done():
		return Advertisement{}, ctx.Err()
	}
}

func (session *natsSession) Close() error {
	if session.subscription != nil {
		_ = session.subscription.Unsubscribe()
	}
	session.conn.Close()
	return nil
}

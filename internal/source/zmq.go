package source

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

type zmqSource struct {
	endpoint string
}

var _ Source = (*zmqSource)(nil)
var _ Session = (*zmqSession)(nil)

// NewZMQ subscribes to vendor payloads published on a ZeroMQ PUB
// socket, either a bridge or the simulator binding the endpoint.
func NewZMQ(endpoint string) Source {
	return &zmqSource{endpoint: endpoint}
}

func (s *zmqSource) Open(ctx context.Context) (Session, error) {
	socket := zmq4.NewSub(ctx)
	if err := socket.Dial(s.endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("dial zmq %s: %w", s.endpoint, err)
	}
	if err := socket.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		socket.Close()
		return nil, fmt.Errorf("subscribe zmq: %w", err)
	}
	return &zmqSession{socket: socket, endpoint: s.endpoint}, nil
}

type zmqSession struct {
	socket   zmq4.Socket
	endpoint string
}

// Next relies on the socket being bound to the session context: Recv
// unblocks with an error once that context is cancelled.
func (session *zmqSession) Next(ctx context.Context) (Advertisement, error) {
	for {
		message, err := session.socket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return Advertisement{}, ctx.Err()
			}
			return Advertisement{}, fmt.Errorf("zmq recv: %w", err)
		}
		if len(message.Frames) == 0 {
			continue
		}
		payload := append([]byte(nil), message.Frames[len(message.Frames)-1]...)
		return Advertisement{Device: session.endpoint, Payload: payload}, nil
	}
}

func (session *zmqSession) Close() error {
	return session.socket.Close()
}

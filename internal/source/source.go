package source

import (
	"context"
	"errors"
	"fmt"

	"xg27station/internal/config"
)

// Advertisement is one broadcast received from the transport. Payload
// holds the vendor bytes with any transport envelope already stripped.
type Advertisement struct {
	Device  string
	Payload []byte
	RSSI    int16
}

// Session is one open stream of advertisements. Next blocks until a
// broadcast arrives, the context is cancelled, or the session dies.
// A session that returns an error is finished; callers reconnect by
// opening a fresh one.
type Session interface {
	Next(ctx context.Context) (Advertisement, error)
	Close() error
}

type Source interface {
	Open(ctx context.Context) (Session, error)
}

var ErrSessionClosed = errors.New("source: session closed")

func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Backend {
	case "ble":
		return NewBLE(cfg.Device, cfg.CompanyID), nil
	case "mqtt":
		return NewMQTT(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password), nil
	case "nats":
		return NewNATS(cfg.NATS.URL, cfg.NATS.Subject), nil
	case "zmq":
		return NewZMQ(cfg.ZMQ.Endpoint), nil
	case "sim":
		return NewSim(cfg.Sim.Interval.Std(), cfg.Sim.Seed), nil
	default:
		return nil, fmt.Errorf("unknown source backend: %s", cfg.Backend)
	}
}

package source

import (
	"context"
	"math/rand"
	"time"

	"xg27station/internal/sensor"
)

// simSource synthesizes broadcasts so the server can run without a
// radio or a broker nearby.
type simSource struct {
	interval time.Duration
	seed     int64
}

var _ Source = (*simSource)(nil)
var _ Session = (*simSession)(nil)

func NewSim(interval time.Duration, seed int64) Source {
	if interval <= 0 {
		interval = time.Second
	}
	return &simSource{interval: interval, seed: seed}
}

func (s *simSource) Open(ctx context.Context) (Session, error) {
	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &simSession{
		ticker: time.NewTicker(s.interval),
		rng:    rand.New(rand.NewSource(seed)),
		model: simModel{
			temperature: 22.5,
			humidity:    48,
			light:       420,
			magnetic:    25,
		},
	}, nil
}

type simSession struct {
	ticker *time.Ticker
	rng    *rand.Rand
	model  simModel
}

func (session *simSession) Next(ctx context.Context) (Advertisement, error) {
	select {
	case <-ctx.Done():
		return Advertisement{}, ctx.Err()
	case <-session.ticker.C:
		reading := session.model.next(session.rng)
		return Advertisement{
			Device:  "sim",
			Payload: sensor.Encode(reading),
			RSSI:    -40,
		}, nil
	}
}

func (session *simSession) Close() error {
	session.ticker.Stop()
	return nil
}

type simModel struct {
	temperature float64
	humidity    float64
	light       float64
	magnetic    float64
}

func (model *simModel) next(rng *rand.Rand) sensor.Reading {
	model.temperature = clamp(model.temperature+rng.Float64()*0.4-0.2, 15, 32)
	model.humidity = clamp(model.humidity+rng.Float64()*2-1, 20, 90)
	model.light = clamp(model.light+rng.Float64()*60-30, 0, 2000)
	model.magnetic = clamp(model.magnetic+rng.Float64()*6-3, -200, 200)

	flags := uint8(sensor.FlagTempHumidity | sensor.FlagLight | sensor.FlagMagnetic)
	if rng.Intn(50) == 0 {
		flags &^= uint8(1 << rng.Intn(3))
	}

	return sensor.Reading{
		Temperature: float64(int(model.temperature*100)) / 100,
		Humidity:    uint8(model.humidity),
		Light:       uint16(model.light),
		Magnetic:    float64(int(model.magnetic)),
		Flags:       flags,
	}
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

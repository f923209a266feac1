package main

import (
	"context"
	"flag"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"xg27station/internal/sensor"
)

func main() {
	var (
		backend  string
		addr     string
		topic    string
		interval time.Duration
		jitter   time.Duration
		count    int
		seed     int64
	)

	flag.StringVar(&backend, "backend", "mqtt", "publish backend (mqtt, nats, zmq)")
	flag.StringVar(&addr, "addr", "", "broker address or endpoint (defaults per backend)")
	flag.StringVar(&topic, "topic", "", "topic or subject (defaults per backend)")
	flag.DurationVar(&interval, "interval", time.Second, "base delay between advertisements")
	flag.DurationVar(&jitter, "jitter", 0, "max random delay added to each interval")
	flag.IntVar(&count, "count", 0, "number of advertisements to emit (0 = infinite)")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 = use current time)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	if interval <= 0 {
		logger.Fatal().Msg("interval must be > 0")
	}
	if jitter < 0 {
		logger.Fatal().Msg("jitter must be >= 0")
	}
	if count < 0 {
		logger.Fatal().Msg("count must be >= 0")
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	publisher, err := newPublisher(ctx, backend, addr, topic)
	if err != nil {
		logger.Fatal().Err(err).Msg("build publisher")
	}
	defer publisher.Close()

	logger.Info().Str("backend", backend).Int64("seed", seed).Dur("interval", interval).Msg("simulator started")

	model := advertiser{
		temperature: 21.0,
		humidity:    46.0,
		light:       480.0,
		magnetic:    25.0,
	}

	emitted := 0
	for {
		if count > 0 && emitted >= count {
			logger.Info().Int("sent", emitted).Msg("simulation complete")
			return
		}

		reading := model.next(rng)
		if err := publisher.Publish(sensor.Encode(reading)); err != nil {
			logger.Error().Err(err).Msg("publish failed")
		} else {
			emitted++
			logger.Info().
				Int("n", emitted).
				Float64("t", reading.Temperature).
				Uint8("h", reading.Humidity).
				Uint16("l", reading.Light).
				Float64("m", reading.Magnetic).
				Uint8("f", reading.Flags).
				Msg("sent")
		}

		delay := interval
		if jitter > 0 {
			delay += time.Duration(rng.Int63n(int64(jitter) + 1))
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("simulation stopped")
			return
		case <-time.After(delay):
		}
	}
}

type advertiser struct {
	temperature float64
	humidity    float64
	light       float64
	magnetic    float64
}

func (sim *advertiser) next(rng *rand.Rand) sensor.Reading {
	sim.temperature = clamp(sim.temperature+rng.NormFloat64()*0.15, 16.0, 32.0)
	sim.humidity = clamp(sim.humidity+rng.NormFloat64()*0.7, 25.0, 80.0)
	sim.light = clamp(sim.light+rng.NormFloat64()*25.0, 0.0, 2000.0)
	sim.magnetic = clamp(sim.magnetic+rng.NormFloat64()*2.0, -200.0, 200.0)

	magnetic := sim.magnetic
	// Occasional spikes mimic a magnet passing the board.
	if rng.Float64() < 0.03 {
		magnetic = clamp(magnetic+rng.Float64()*120.0+30.0, -200.0, 200.0)
	}

	flags := uint8(sensor.FlagTempHumidity | sensor.FlagLight | sensor.FlagMagnetic)
	if rng.Float64() < 0.02 {
		flags &^= uint8(1 << rng.Intn(3))
	}

	return sensor.Reading{
		Temperature: round2(sim.temperature),
		Humidity:    uint8(sim.humidity),
		Light:       uint16(sim.light),
		Magnetic:    math.Round(magnetic),
		Flags:       flags,
	}
}

func clamp(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"xg27station/internal/sensor"
	"xg27station/internal/source"
)

// IngestLoop owns the link to the advertisement transport. It opens a
// session, streams until the session dies, waits out the retry delay
// and reconnects, forever, until the context is cancelled. Readings
// flow into the cache and out through the hub; subscribers attached
// between sessions simply see no frames until the link is back.
type IngestLoop struct {
	source     source.Source
	cache      *Cache
	hub        *StreamHub
	retryDelay time.Duration
	log        zerolog.Logger
}

func NewIngestLoop(src source.Source, cache *Cache, hub *StreamHub, retryDelay time.Duration, log zerolog.Logger) *IngestLoop {
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &IngestLoop{
		source:     src,
		cache:      cache,
		hub:        hub,
		retryDelay: retryDelay,
		log:        log,
	}
}

func (loop *IngestLoop) Run(ctx context.Context) {
	for {
		session, err := loop.source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sessionFailures.Inc()
			loop.log.Error().Err(err).Dur("retry", loop.retryDelay).Msg("source open failed")
			if !loop.wait(ctx) {
				return
			}
			continue
		}

		loop.log.Info().Msg("source session open")
		err = loop.stream(ctx, session)
		_ = session.Close()

		if ctx.Err() != nil {
			return
		}

		sessionFailures.Inc()
		loop.log.Error().Err(err).Dur("retry", loop.retryDelay).Msg("source session died")
		if !loop.wait(ctx) {
			return
		}
	}
}

func (loop *IngestLoop) stream(ctx context.Context, session source.Session) error {
	for {
		advertisement, err := session.Next(ctx)
		if err != nil {
			return err
		}

		reading, ok := sensor.Decode(advertisement.Payload)
		if !ok {
			// Expected on truncated broadcasts; the counter is enough.
			rejectedCounter.Inc()
			continue
		}

		loop.cache.Set(reading)

		frame, _ := json.Marshal(reading)
		loop.hub.Broadcast(frame)
		decodedCounter.Inc()

		loop.log.Debug().
			Float64("t", reading.Temperature).
			Uint8("h", reading.Humidity).
			Uint16("l", reading.Light).
			Float64("m", reading.Magnetic).
			Uint8("f", reading.Flags).
			Msg("reading")
	}
}

func (loop *IngestLoop) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(loop.retryDelay):
		return true
	}
}

package source

import (
	"context"
	"testing"
	"time"

	"xg27station/internal/config"
	"xg27station/internal/sensor"
)

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(config.SourceConfig{Backend: "smoke-signals"})
	if err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewBuildsConfiguredBackend(t *testing.T) {
	cfg := config.Default().Source
	cfg.Backend = "sim"

	built, err := New(cfg)
	if err != nil {
		t.Fatalf("build sim source: %v", err)
	}
	if _, ok := built.(*simSource); !ok {
		t.Fatalf("expected *simSource, got %T", built)
	}
}

func TestSimSessionDeliversDecodablePayloads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := NewSim(2*time.Millisecond, 1).Open(ctx)
	if err != nil {
		t.Fatalf("open sim session: %v", err)
	}
	defer session.Close()

	for i := 0; i < 5; i++ {
		advertisement, err := session.Next(ctx)
		if err != nil {
			t.Fatalf("next advertisement: %v", err)
		}
		if advertisement.Device != "sim" {
			t.Fatalf("expected device sim, got %s", advertisement.Device)
		}

		reading, ok := sensor.Decode(advertisement.Payload)
		if !ok {
			t.Fatalf("expected decodable payload, got %d bytes", len(advertisement.Payload))
		}
		if reading.Temperature < 15 || reading.Temperature > 32 {
			t.Fatalf("temperature %v outside model range", reading.Temperature)
		}
		if reading.Humidity < 20 || reading.Humidity > 90 {
			t.Fatalf("humidity %d outside model range", reading.Humidity)
		}
		if reading.Light > 2000 {
			t.Fatalf("light %d outside model range", reading.Light)
		}
	}
}

func TestSimSessionsRepeatWithSameSeed(t *testing.T) {
	ctx := context.Background()

	first := readSimPayload(t, ctx, 42)
	second := readSimPayload(t, ctx, 42)

	if string(first) != string(second) {
		t.Fatalf("expected identical payloads for seed 42, got %v and %v", first, second)
	}
}

func readSimPayload(t *testing.T, ctx context.Context, seed int64) []byte {
	t.Helper()

	session, err := NewSim(time.Millisecond, seed).Open(ctx)
	if err != nil {
		t.Fatalf("open sim session: %v", err)
	}
	defer session.Close()

	advertisement, err := session.Next(ctx)
	if err != nil {
		t.Fatalf("next advertisement: %v", err)
	}
	return advertisement.Payload
}

func TestSimNextHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	session, err := NewSim(time.Hour, 1).Open(ctx)
	if err != nil {
		t.Fatalf("open sim session: %v", err)
	}
	defer session.Close()

	done := make(chan error, 1)
	go func() {
		_, err := session.Next(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Next did not return after cancellation")
	}
}

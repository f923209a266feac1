package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type API struct {
	cache     *Cache
	hub       *StreamHub
	assetPath string
	heartbeat time.Duration
	log       zerolog.Logger
}

type APIOption func(*API)

func WithAsset(path string) APIOption {
	return func(api *API) {
		api.assetPath = path
	}
}

func WithHeartbeat(interval time.Duration) APIOption {
	return func(api *API) {
		if interval > 0 {
			api.heartbeat = interval
		}
	}
}

func WithLogger(log zerolog.Logger) APIOption {
	return func(api *API) {
		api.log = log
	}
}

func NewAPI(cache *Cache, hub *StreamHub, options ...APIOption) *API {
	api := &API{
		cache:     cache,
		hub:       hub,
		assetPath: "web/sensor.html",
		heartbeat: 15 * time.Second,
		log:       zerolog.Nop(),
	}
	for _, option := range options {
		option(api)
	}
	return api
}

func (api *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", api.handleDashboard)
	mux.HandleFunc("/events", api.handleEvents)
	mux.HandleFunc("/api/latest", api.handleLatest)
	mux.HandleFunc("/healthz", api.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (api *API) handleDashboard(response http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(response, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if request.URL.Path != "/" && request.URL.Path != "/sensor.html" {
		http.NotFound(response, request)
		return
	}

	body, err := os.ReadFile(api.assetPath)
	if err != nil {
		api.log.Warn().Err(err).Str("asset", api.assetPath).Msg("dashboard asset unavailable")
		http.NotFound(response, request)
		return
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = response.Write(body)
}

func (api *API) handleEvents(response http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(response, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := response.(http.Flusher)
	if !ok {
		http.Error(response, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	header := response.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("Access-Control-Allow-Origin", "*")
	response.WriteHeader(http.StatusOK)
	flusher.Flush()

	subscriber := api.hub.Register()
	defer api.hub.Unregister(subscriber)

	api.log.Debug().Str("subscriber", subscriber.ID()).Str("remote", request.RemoteAddr).Msg("stream opened")
	defer func() {
		api.log.Debug().Str("subscriber", subscriber.ID()).Uint64("dropped", subscriber.Dropped()).Msg("stream closed")
	}()

	// Replay the cached reading so the dashboard renders without
	// waiting for the next broadcast.
	if reading, ok := api.cache.Get(); ok {
		frame, _ := json.Marshal(reading)
		if err := writeFrame(response, flusher, frame); err != nil {
			return
		}
	}

	ctx := request.Context()
	timer := time.NewTimer(api.heartbeat)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-subscriber.Queue():
			if err := writeFrame(response, flusher, frame); err != nil {
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(api.heartbeat)
		case <-timer.C:
			if err := writeHeartbeat(response, flusher); err != nil {
				return
			}
			heartbeatCounter.Inc()
			timer.Reset(api.heartbeat)
		}
	}
}

func (api *API) handleLatest(response http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writeError(response, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reading, ok := api.cache.Get()
	if !ok {
		writeError(response, http.StatusNotFound, "no reading received yet")
		return
	}

	writeJSON(response, http.StatusOK, reading)
}

func (api *API) handleHealth(response http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writeError(response, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, hasReading := api.cache.Get()
	writeJSON(response, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": api.hub.Count(),
		"hasReading":  hasReading,
	})
}

func writeFrame(response http.ResponseWriter, flusher http.Flusher, frame []byte) error {
	if _, err := fmt.Fprintf(response, "data: %s\n\n", frame); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeHeartbeat(response http.ResponseWriter, flusher http.Flusher) error {
	if _, err := io.WriteString(response, ": heartbeat\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(response http.ResponseWriter, statusCode int, payload any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	_ = json.NewEncoder(response).Encode(payload)
}

func writeError(response http.ResponseWriter, statusCode int, message string) {
	writeJSON(response, statusCode, map[string]string{"error": message})
}

package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xg27station/internal/sensor"
)

func testAsset(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sensor.html")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	return path
}

func TestDashboardServesAsset(t *testing.T) {
	asset := testAsset(t, "<html><body>station</body></html>")
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest), WithAsset(asset))
	handler := api.Handler()

	for _, path := range []string{"/", "/sensor.html"} {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		response := httptest.NewRecorder()

		handler.ServeHTTP(response, request)

		if response.Code != http.StatusOK {
			t.Fatalf("expected status %d for %s, got %d", http.StatusOK, path, response.Code)
		}
		if contentType := response.Header().Get("Content-Type"); contentType != "text/html; charset=utf-8" {
			t.Fatalf("expected html content type, got %s", contentType)
		}
		if response.Body.String() != "<html><body>station</body></html>" {
			t.Fatalf("unexpected body %s", response.Body.String())
		}
	}
}

func TestDashboardMissingAsset(t *testing.T) {
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest), WithAsset(filepath.Join(t.TempDir(), "absent.html")))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, response.Code)
	}
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	asset := testAsset(t, "<html></html>")
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest), WithAsset(asset))

	request := httptest.NewRequest(http.MethodGet, "/nope", nil)
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, response.Code)
	}
}

func TestLatestBeforeFirstReading(t *testing.T) {
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest))

	request := httptest.NewRequest(http.MethodGet, "/api/latest", nil)
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, response.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload["error"] == "" {
		t.Fatal("expected error message in body")
	}
}

func TestLatestReturnsCachedReading(t *testing.T) {
	cache := NewCache()
	cache.Set(sensor.Reading{Temperature: 1.00, Humidity: 45, Light: 100, Magnetic: 10, Flags: 7})
	api := NewAPI(cache, NewStreamHub(8, DropOldest))

	request := httptest.NewRequest(http.MethodGet, "/api/latest", nil)
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}

	var reading sensor.Reading
	if err := json.Unmarshal(response.Body.Bytes(), &reading); err != nil {
		t.Fatalf("unmarshal reading: %v", err)
	}
	if reading.Temperature != 1.00 || reading.Humidity != 45 || reading.Flags != 7 {
		t.Fatalf("unexpected reading %+v", reading)
	}
}

func TestLatestRejectsNonGet(t *testing.T) {
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest))

	request := httptest.NewRequest(http.MethodPost, "/api/latest", strings.NewReader("{}"))
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, response.Code)
	}
}

func TestHealthReportsSubscribersAndReading(t *testing.T) {
	cache := NewCache()
	hub := NewStreamHub(8, DropOldest)
	hub.Register()
	hub.Register()
	api := NewAPI(cache, hub)

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}

	var payload struct {
		Status      string `json:"status"`
		Subscribers int    `json:"subscribers"`
		HasReading  bool   `json:"hasReading"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal health body: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("expected status ok, got %s", payload.Status)
	}
	if payload.Subscribers != 2 {
		t.Fatalf("expected 2 subscribers, got %d", payload.Subscribers)
	}
	if payload.HasReading {
		t.Fatal("expected hasReading false")
	}

	cache.Set(sensor.Reading{Temperature: 20})
	response = httptest.NewRecorder()
	api.Handler().ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal health body: %v", err)
	}
	if !payload.HasReading {
		t.Fatal("expected hasReading true")
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest))

	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	response := httptest.NewRecorder()

	api.Handler().ServeHTTP(response, request)

	if response.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.Code)
	}
	if !strings.Contains(response.Body.String(), "xg27_broadcasts_total") {
		t.Fatal("expected xg27 metrics in exposition")
	}
}

func streamLines(body io.Reader) <-chan string {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}
	}()
	return lines
}

func nextLine(t *testing.T, lines <-chan string) string {
	t.Helper()

	select {
	case line, open := <-lines:
		if !open {
			t.Fatal("stream ended early")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("no stream line within deadline")
	}
	return ""
}

func TestEventsStreamHeaders(t *testing.T) {
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest), WithHeartbeat(20*time.Millisecond))
	testServer := httptest.NewServer(api.Handler())
	defer testServer.Close()

	response, err := http.Get(testServer.URL + "/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, response.StatusCode)
	}
	if contentType := response.Header.Get("Content-Type"); contentType != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", contentType)
	}
	if cacheControl := response.Header.Get("Cache-Control"); cacheControl != "no-cache" {
		t.Fatalf("expected no-cache, got %s", cacheControl)
	}
	if origin := response.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected wildcard origin, got %s", origin)
	}
}

func TestEventsReplaysCachedReadingThenBroadcasts(t *testing.T) {
	cache := NewCache()
	hub := NewStreamHub(8, DropOldest)
	cached := sensor.Reading{Temperature: 22.5, Humidity: 48, Light: 400, Magnetic: 25, Flags: 7}
	cache.Set(cached)

	api := NewAPI(cache, hub, WithHeartbeat(time.Minute))
	testServer := httptest.NewServer(api.Handler())
	defer testServer.Close()

	response, err := http.Get(testServer.URL + "/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer response.Body.Close()

	lines := streamLines(response.Body)

	cachedFrame, _ := json.Marshal(cached)
	if line := nextLine(t, lines); line != "data: "+string(cachedFrame) {
		t.Fatalf("expected cached frame, got %s", line)
	}

	waitForSubscribers(t, hub, 1)

	next := sensor.Reading{Temperature: 23.0, Humidity: 47, Light: 390, Magnetic: 26, Flags: 7}
	nextFrame, _ := json.Marshal(next)
	hub.Broadcast(nextFrame)

	if line := nextLine(t, lines); line != "data: "+string(nextFrame) {
		t.Fatalf("expected broadcast frame, got %s", line)
	}
}

func TestEventsSendsHeartbeatWhenIdle(t *testing.T) {
	api := NewAPI(NewCache(), NewStreamHub(8, DropOldest), WithHeartbeat(20*time.Millisecond))
	testServer := httptest.NewServer(api.Handler())
	defer testServer.Close()

	response, err := http.Get(testServer.URL + "/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer response.Body.Close()

	lines := streamLines(response.Body)

	for i := 0; i < 2; i++ {
		if line := nextLine(t, lines); line != ": heartbeat" {
			t.Fatalf("expected heartbeat comment, got %s", line)
		}
	}
}

func TestEventsUnregistersOnDisconnect(t *testing.T) {
	hub := NewStreamHub(8, DropOldest)
	api := NewAPI(NewCache(), hub, WithHeartbeat(20*time.Millisecond))
	testServer := httptest.NewServer(api.Handler())
	defer testServer.Close()

	response, err := http.Get(testServer.URL + "/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	waitForSubscribers(t, hub, 1)

	response.Body.Close()

	waitForSubscribers(t, hub, 0)
}

func waitForSubscribers(t *testing.T, hub *StreamHub, expected int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == expected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, got %d", expected, hub.Count())
}

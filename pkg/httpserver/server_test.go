package httpserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/healthprobe"
	"github.com/mselser95/prediction-arb/pkg/types"
)

type fakeState struct {
	snap types.StateSnapshot
}

func (f *fakeState) Snapshot() types.StateSnapshot { return f.snap }

type fakeStats struct {
	byWindow map[time.Duration]types.PeriodStats
	err      error
}

func (f *fakeStats) PeriodStats(ctx context.Context, window time.Duration) (types.PeriodStats, error) {
	if f.err != nil {
		return types.PeriodStats{}, f.err
	}
	return f.byWindow[window], nil
}

func testSnapshot() types.StateSnapshot {
	return types.StateSnapshot{
		Status:     "running",
		LastScan:   "14:30:00",
		ScanCount:  3,
		SpotPrices: map[string]float64{"BTC": 101000},
		PolyCount:  150,
		Opportunities: []types.OpportunityRecord{
			{ArbType: "cross_exchange", Market: "Fed cut in March?", ProfitCents: 5},
		},
		Errors: []string{},
		Uptime: "2025-08-25T12:00:00Z",
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hc := healthprobe.New()
	hc.SetReady(true)

	return New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		State:         &fakeState{snap: testSnapshot()},
		Stats: &fakeStats{byWindow: map[time.Duration]types.PeriodStats{
			time.Hour:      {Count: 2, ProfitCents: 11.5},
			4 * time.Hour:  {Count: 9, ProfitCents: 40},
			24 * time.Hour: {Count: 31, ProfitCents: 170.25},
		}},
		StreamInterval: 10 * time.Millisecond,
	})
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	healthChecker := healthprobe.New()

	server := New(&Config{
		Port:          "8080",
		Logger:        logger,
		HealthChecker: healthChecker,
	})
	if server == nil {
		t.Fatal("New() returned nil server")
	}
	if server.server == nil {
		t.Error("New() server.server is nil")
	}
	if server.logger != logger {
		t.Error("New() logger not set correctly")
	}
	if server.healthChecker != healthChecker {
		t.Error("New() healthChecker not set correctly")
	}
	if server.streamInterval != 2*time.Second {
		t.Errorf("streamInterval = %v, want default 2s", server.streamInterval)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Dashboard status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	page := string(body)
	for _, want := range []string{"OPPORTUNITY FEED", "/stream", "spot-prices"} {
		if !strings.Contains(page, want) {
			t.Errorf("dashboard page missing %q", want)
		}
	}
}

func TestStateEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("State status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var snap types.StateSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.Status != "running" {
		t.Errorf("Status = %q, want running", snap.Status)
	}
	if snap.ScanCount != 3 {
		t.Errorf("ScanCount = %d, want 3", snap.ScanCount)
	}
	if len(snap.Opportunities) != 1 || snap.Opportunities[0].ArbType != "cross_exchange" {
		t.Errorf("Opportunities = %+v, want the seeded record", snap.Opportunities)
	}
	if snap.SpotPrices["BTC"] != 101000 {
		t.Errorf("SpotPrices[BTC] = %f, want 101000", snap.SpotPrices["BTC"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Stats status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var stats map[string]types.PeriodStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	for _, label := range []string{"1h", "4h", "24h"} {
		if _, ok := stats[label]; !ok {
			t.Errorf("stats missing window %q", label)
		}
	}
	if stats["1h"].Count != 2 || stats["1h"].ProfitCents != 11.5 {
		t.Errorf("stats[1h] = %+v, want {2 11.5}", stats["1h"])
	}
	if stats["24h"].Count != 31 {
		t.Errorf("stats[24h].Count = %d, want 31", stats["24h"].Count)
	}
}

func TestStatsEndpoint_StorageError(t *testing.T) {
	hc := healthprobe.New()
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		State:         &fakeState{snap: testSnapshot()},
		Stats:         &fakeStats{err: errors.New("connection refused")},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Stats status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error == "" {
		t.Error("Error response missing error message")
	}
}

func TestStreamEndpoint(t *testing.T) {
	server := newTestServer(t)

	ts := httptest.NewServer(server.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	frames := 0
	for frames < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		frames++

		var snap types.StateSnapshot
		payload := strings.TrimPrefix(strings.TrimRight(line, "\n"), "data: ")
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			t.Fatalf("frame %d is not valid state JSON: %v", frames, err)
		}
		if snap.Status != "running" {
			t.Errorf("frame %d status = %q, want running", frames, snap.Status)
		}
	}
}

func TestWebsocketRoute_OnlyWithHub(t *testing.T) {
	hc := healthprobe.New()

	t.Run("mounted_with_hub", func(t *testing.T) {
		hub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		server := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc, Hub: hub})

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		w := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(w, req)

		if w.Code != http.StatusTeapot {
			t.Errorf("ws status = %d, want hub's %d", w.Code, http.StatusTeapot)
		}
	})

	t.Run("absent_without_hub", func(t *testing.T) {
		server := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc})

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		w := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("ws status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name           string
		setReady       bool
		expectedStatus int
	}{
		{
			name:           "ready_when_set",
			setReady:       true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not_ready_initially",
			setReady:       false,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := healthprobe.New()
			if tt.setReady {
				hc.SetReady(true)
			}

			server := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			server.server.Handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Ready endpoint status = %d, want %d", w.Code, tt.expectedStatus)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Metrics endpoint status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if resp.Header.Get("Content-Type") == "" {
		t.Error("Metrics endpoint missing Content-Type header")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics response body: %v", err)
	}
	if len(body) == 0 {
		t.Error("Metrics endpoint returned empty body")
	}
}

func TestStateEndpoint_OnlyWithSource(t *testing.T) {
	hc := healthprobe.New()
	server := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc})

	for _, path := range []string{"/api/state", "/api/stats", "/stream"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want %d when no source wired", path, w.Code, http.StatusNotFound)
		}
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := newTestServer(t)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after shutdown")
	}
}

func TestServer_Timeouts(t *testing.T) {
	server := newTestServer(t)

	if server.server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want %v", server.server.ReadTimeout, 15*time.Second)
	}
	if server.server.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("ReadHeaderTimeout = %v, want %v", server.server.ReadHeaderTimeout, 10*time.Second)
	}
	if server.server.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v, want 0 for streaming endpoints", server.server.WriteTimeout)
	}
	if server.server.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want %v", server.server.IdleTimeout, 60*time.Second)
	}
}

func TestServer_RouteNotFound(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Non-existent route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

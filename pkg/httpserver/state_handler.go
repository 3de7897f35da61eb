package httpserver

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/types"
)

// statsWindows are the trailing windows reported by /api/stats, keyed the
// way the response labels them.
var statsWindows = []struct {
	label  string
	window time.Duration
}{
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"24h", 24 * time.Hour},
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleState handles GET /api/state: the same snapshot the dashboard
// renders, as one JSON document.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(s.state.Snapshot())
	if err != nil {
		s.logger.Error("failed-to-encode-state", zap.Error(err))
	}
}

// handleStats handles GET /api/stats: opportunity counts and summed profit
// over the trailing 1h, 4h and 24h windows.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := make(map[string]types.PeriodStats, len(statsWindows))
	for _, sw := range statsWindows {
		stats, err := s.stats.PeriodStats(r.Context(), sw.window)
		if err != nil {
			s.logger.Error("period-stats-failed", zap.String("window", sw.label), zap.Error(err))
			s.writeError(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		resp[sw.label] = stats
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		s.logger.Error("failed-to-encode-stats", zap.Error(err))
	}
}

// handleStream handles GET /stream: the state snapshot as server-sent
// events, one frame per interval, until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		payload, err := json.Marshal(s.state.Snapshot())
		if err != nil {
			s.logger.Error("failed-to-encode-stream-frame", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
		streamFramesTotal.Inc()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(ErrorResponse{Error: message})
	if err != nil {
		s.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}

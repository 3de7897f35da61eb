package spot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/circuitbreaker"
	"github.com/mselser95/prediction-arb/internal/ratelimit"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	logger := zap.NewNop()

	limiter, err := ratelimit.New(&ratelimit.Config{
		Logger:  logger,
		Budgets: map[string]float64{venueKey: 1000},
	})
	require.NoError(t, err)

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Venue:  venueKey,
		Logger: logger,
	})
	require.NoError(t, err)

	client, err := New(&Config{
		BaseURL: baseURL,
		Limiter: limiter,
		Breaker: breaker,
		Logger:  logger,
	})
	require.NoError(t, err)

	client.initialBackoff = time.Millisecond
	return client
}

func TestClient_GetSpot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/BTC-USD/spot", r.URL.Path)
		fmt.Fprint(w, `{"data": {"amount": "101234.56", "base": "BTC", "currency": "USD"}}`)
	}))
	defer server.Close()

	price, err := newTestClient(t, server.URL).GetSpot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.InDelta(t, 101234.56, price, 1e-9)
}

func TestClient_GetSpot_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	price, err := newTestClient(t, server.URL).GetSpot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Zero(t, price)
}

func TestClient_GetAllSpots_SkipsFailedSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/BTC-USD/spot":
			fmt.Fprint(w, `{"data": {"amount": "101000", "base": "BTC", "currency": "USD"}}`)
		case "/ETH-USD/spot":
			w.WriteHeader(http.StatusInternalServerError)
		case "/SOL-USD/spot":
			fmt.Fprint(w, `{"data": {"amount": "not-a-number"}}`)
		}
	}))
	defer server.Close()

	spots, err := newTestClient(t, server.URL).GetAllSpots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTC": 101000}, spots)
}

func TestClient_GetSpot_RetryOn429(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data": {"amount": "3500.25"}}`)
	}))
	defer server.Close()

	price, err := newTestClient(t, server.URL).GetSpot(context.Background(), "ETH-USD")
	require.NoError(t, err)
	assert.InDelta(t, 3500.25, price, 1e-9)
	assert.Equal(t, int32(2), attempts.Load())
}

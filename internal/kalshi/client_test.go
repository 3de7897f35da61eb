package kalshi

import (
	"context"
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
	"github.com/mselser95/prediction-arb/pkg/types"
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
		BaseURL:    baseURL,
		APIKey:     "test-key-id",
		PrivateKey: pkcs1PEM(generateTestKey(t)),
		Limiter:    limiter,
		Breaker:    breaker,
		Logger:     logger,
	})
	require.NoError(t, err)

	client.initialBackoff = time.Millisecond
	return client
}

func TestNew_Validation(t *testing.T) {
	logger := zap.NewNop()
	limiter, err := ratelimit.New(&ratelimit.Config{Logger: logger, Budgets: map[string]float64{venueKey: 1}})
	require.NoError(t, err)
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{Venue: venueKey, Logger: logger})
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "missing base URL", cfg: &Config{APIKey: "id", Limiter: limiter, Breaker: breaker, Logger: logger}},
		{name: "missing limiter", cfg: &Config{BaseURL: "http://x", APIKey: "id", Breaker: breaker, Logger: logger}},
		{name: "missing breaker", cfg: &Config{BaseURL: "http://x", APIKey: "id", Limiter: limiter, Logger: logger}},
		{name: "missing logger", cfg: &Config{BaseURL: "http://x", APIKey: "id", Limiter: limiter, Breaker: breaker}},
		{name: "missing credentials", cfg: &Config{BaseURL: "http://x", Limiter: limiter, Breaker: breaker, Logger: logger}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestClient_ListMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("KALSHI-ACCESS-TIMESTAMP"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets": [
			{"ticker": "KXBTC-25DEC31-B100000", "event_ticker": "KXBTC-25DEC31", "title": "Bitcoin price today at 5pm EDT?", "subtitle": "$100,000 or above", "category": "Crypto", "status": "open", "yes_ask": 45, "no_ask": 57, "yes_bid": 43, "no_bid": 55},
			{"ticker": "KXNFL-GAME1", "event_ticker": "KXNFL", "title": "Chiefs to win?", "yes_sub_title": "Chiefs", "category": "Sports", "status": "open", "yes_ask": 60, "no_ask": 42, "yes_bid": 58, "no_bid": 40}
		], "cursor": ""}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	markets, err := client.ListMarkets(context.Background(), types.MarketFilter{
		Limit:           200,
		ExcludeCategory: "Sports",
	})
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, types.VenueKalshi, m.Venue)
	assert.Equal(t, "KXBTC-25DEC31-B100000", m.ID)
	assert.Equal(t, "KXBTC-25DEC31", m.EventID)
	assert.Equal(t, "$100,000 or above", m.Subtitle)
	assert.Equal(t, 45, m.YesAskCents)
	assert.Equal(t, 57, m.NoAskCents)
	assert.True(t, m.Active)
}

func TestClient_ListMarkets_SubtitleFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets": [{"ticker": "T1", "title": "X", "yes_sub_title": "$50 to $60", "status": "open"}]}`))
	}))
	defer server.Close()

	markets, err := newTestClient(t, server.URL).ListMarkets(context.Background(), types.MarketFilter{})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "$50 to $60", markets[0].Subtitle)
}

func TestClient_ListMarkets_SeriesTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KXBTC", r.URL.Query().Get("series_ticker"))
		w.Write([]byte(`{"markets": []}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ListMarkets(context.Background(), types.MarketFilter{SeriesTicker: "KXBTC"})
	require.NoError(t, err)
}

func TestClient_RetryOn429(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"markets": [{"ticker": "T1", "title": "X", "status": "open"}]}`))
	}))
	defer server.Close()

	markets, err := newTestClient(t, server.URL).ListMarkets(context.Background(), types.MarketFilter{})
	require.NoError(t, err)
	assert.Len(t, markets, 1)
	assert.Equal(t, int32(4), attempts.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	markets, err := newTestClient(t, server.URL).ListMarkets(context.Background(), types.MarketFilter{})
	require.NoError(t, err)
	assert.Nil(t, markets)
	assert.Equal(t, int32(4), attempts.Load())
}

func TestClient_ServerErrorIsAbsentNotFatal(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	markets, err := newTestClient(t, server.URL).ListMarkets(context.Background(), types.MarketFilter{})
	require.NoError(t, err)
	assert.Nil(t, markets)
	assert.Equal(t, int32(1), attempts.Load(), "5xx must not be retried")
}

func TestClient_GetOrderbook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/KXBTC-TEST/orderbook", r.URL.Path)
		w.Write([]byte(`{"orderbook": {"yes": [[40, 100], [42, 50]], "no": [[55, 200], [56, 10]]}}`))
	}))
	defer server.Close()

	book, err := newTestClient(t, server.URL).GetOrderbook(context.Background(), "KXBTC-TEST")
	require.NoError(t, err)
	require.NotNil(t, book)

	// Best bids are the last ladder entries: yes 42, no 56.
	assert.InDelta(t, 0.44, book.YesAsk, 1e-9)
	assert.InDelta(t, 0.58, book.NoAsk, 1e-9)
	assert.True(t, book.Complete())
}

func TestClient_GetOrderbook_EmptySide(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderbook": {"yes": [[40, 100]], "no": []}}`))
	}))
	defer server.Close()

	book, err := newTestClient(t, server.URL).GetOrderbook(context.Background(), "KXBTC-TEST")
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestClient_GetBestPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderbook": {"yes": [[43, 10]], "no": [[55, 10]]}}`))
	}))
	defer server.Close()

	quote, err := newTestClient(t, server.URL).GetBestPrices(context.Background(), "KXBTC-TEST")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.InDelta(t, 0.45, quote.Ask, 1e-9)
	assert.InDelta(t, 0.43, quote.Bid, 1e-9)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.initialBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ListMarkets(ctx, types.MarketFilter{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// GammaMarket is the wire shape MockGamma serves. Outcomes and ClobTokenIDs
// are JSON-encoded strings inside the document, as on the real API.
type GammaMarket struct {
	ID           string `json:"id"`
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	Category     string `json:"category"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
	Outcomes     string `json:"outcomes"`
	ClobTokenIDs string `json:"clobTokenIds"`
}

// MockGamma simulates the Polymarket Gamma discovery API.
type MockGamma struct {
	*httptest.Server
	mu      sync.RWMutex
	markets []GammaMarket
}

// NewMockGamma creates a mock Gamma server seeded with markets.
func NewMockGamma(markets ...GammaMarket) *MockGamma {
	mock := &MockGamma{markets: markets}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := []GammaMarket{}
		if offset < len(mock.markets) {
			page = mock.markets[offset:]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	return mock
}

// SetMarkets replaces the served market list.
func (m *MockGamma) SetMarkets(markets ...GammaMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = markets
}

// MockClob simulates the Polymarket CLOB price surface: per-token books at
// /book and per-token quotes at /price. Unknown tokens serve empty books
// and zero prices, which venue clients treat as absent.
type MockClob struct {
	*httptest.Server
	mu   sync.RWMutex
	asks map[string]float64
	bids map[string]float64
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// NewMockClob creates a mock CLOB server with no quotes.
func NewMockClob() *MockClob {
	mock := &MockClob{
		asks: make(map[string]float64),
		bids: make(map[string]float64),
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		token := r.URL.Query().Get("token_id")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/book":
			var book struct {
				Bids []clobLevel `json:"bids"`
				Asks []clobLevel `json:"asks"`
			}
			if bid, ok := mock.bids[token]; ok && bid > 0 {
				book.Bids = append(book.Bids, clobLevel{Price: formatPrice(bid), Size: "100"})
			}
			if ask, ok := mock.asks[token]; ok && ask > 0 {
				book.Asks = append(book.Asks, clobLevel{Price: formatPrice(ask), Size: "100"})
			}
			_ = json.NewEncoder(w).Encode(book)
		case "/price":
			price := mock.bids[token]
			if r.URL.Query().Get("side") == "buy" {
				price = mock.asks[token]
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"price": formatPrice(price)})
		default:
			http.NotFound(w, r)
		}
	}))
	return mock
}

// SetQuote sets the bid and ask served for one token.
func (m *MockClob) SetQuote(tokenID string, bid, ask float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids[tokenID] = bid
	m.asks[tokenID] = ask
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// KalshiMarket is the wire shape MockKalshi serves. Prices are integer
// cents.
type KalshiMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	YesSubTitle string `json:"yes_sub_title"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	YesAsk      int    `json:"yes_ask"`
	NoAsk       int    `json:"no_ask"`
	YesBid      int    `json:"yes_bid"`
	NoBid       int    `json:"no_bid"`
}

// KalshiBook is a pair of cent-price ladders, best bid last.
type KalshiBook struct {
	Yes [][]float64 `json:"yes"`
	No  [][]float64 `json:"no"`
}

// MockKalshi simulates the Kalshi trade API: the market list with
// series_ticker filtering plus per-ticker orderbooks. Request signature
// headers are accepted without verification.
type MockKalshi struct {
	*httptest.Server
	mu      sync.RWMutex
	markets []KalshiMarket
	series  map[string][]KalshiMarket
	books   map[string]KalshiBook
}

// NewMockKalshi creates a mock Kalshi server seeded with general-list
// markets.
func NewMockKalshi(markets ...KalshiMarket) *MockKalshi {
	mock := &MockKalshi{
		markets: markets,
		series:  make(map[string][]KalshiMarket),
		books:   make(map[string]KalshiBook),
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/markets" {
			list := mock.markets
			if st := r.URL.Query().Get("series_ticker"); st != "" {
				list = mock.series[st]
			}
			if list == nil {
				list = []KalshiMarket{}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"markets": list, "cursor": ""})
			return
		}

		if ticker, ok := strings.CutPrefix(r.URL.Path, "/markets/"); ok {
			ticker, ok = strings.CutSuffix(ticker, "/orderbook")
			if ok {
				_ = json.NewEncoder(w).Encode(map[string]any{"orderbook": mock.books[ticker]})
				return
			}
		}

		http.NotFound(w, r)
	}))
	return mock
}

// SetMarkets replaces the general market list.
func (m *MockKalshi) SetMarkets(markets ...KalshiMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = markets
}

// SetSeries sets the markets served for one series ticker.
func (m *MockKalshi) SetSeries(series string, markets ...KalshiMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[series] = markets
}

// SetBook sets the orderbook served for one ticker.
func (m *MockKalshi) SetBook(ticker string, book KalshiBook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[ticker] = book
}

// MockCoinbase simulates the Coinbase spot price API. Symbols without a
// configured price serve 404, which the spot client omits from its result.
type MockCoinbase struct {
	*httptest.Server
	mu    sync.RWMutex
	spots map[string]float64
}

// NewMockCoinbase creates a mock Coinbase server with no prices.
func NewMockCoinbase() *MockCoinbase {
	mock := &MockCoinbase{spots: make(map[string]float64)}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		pair, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/spot")
		if !ok {
			http.NotFound(w, r)
			return
		}
		symbol, _, _ := strings.Cut(pair, "-")
		price, ok := mock.spots[symbol]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"amount":   strconv.FormatFloat(price, 'f', 2, 64),
				"base":     symbol,
				"currency": "USD",
			},
		})
	}))
	return mock
}

// SetSpot sets the USD price served for one symbol.
func (m *MockCoinbase) SetSpot(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spots[symbol] = price
}

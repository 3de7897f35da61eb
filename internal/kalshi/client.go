package kalshi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/circuitbreaker"
	"github.com/mselser95/prediction-arb/internal/orderbook"
	"github.com/mselser95/prediction-arb/internal/ratelimit"
	"github.com/mselser95/prediction-arb/pkg/types"
)

const venueKey = "kalshi"

// Client is the signed Kalshi REST client. Every call is paced by the
// shared rate limiter and guarded by the venue circuit breaker. Rate-limit
// responses are retried with exponential backoff; any other failure
// downgrades to an absent result so a single venue hiccup never aborts a
// scan tick.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger

	maxRetries     int
	initialBackoff time.Duration
}

// Config holds Kalshi client configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	PrivateKey  string
	HTTPTimeout time.Duration
	Limiter     *ratelimit.Limiter
	Breaker     *circuitbreaker.Breaker
	Logger      *zap.Logger
}

// New creates a Kalshi client. Credential loading happens here, so a bad
// key path or malformed PEM fails fast at startup.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter cannot be nil")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("circuit breaker cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	signer, err := NewSigner(cfg.APIKey, cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("kalshi credentials: %w", err)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		signer:         signer,
		limiter:        cfg.Limiter,
		breaker:        cfg.Breaker,
		logger:         cfg.Logger,
		maxRetries:     3,
		initialBackoff: 1500 * time.Millisecond,
	}, nil
}

// kalshiMarket is the wire shape of a market in list responses. Prices are
// integer cents.
type kalshiMarket struct {
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

type marketsResponse struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

type orderbookResponse struct {
	Orderbook struct {
		Yes [][]float64 `json:"yes"`
		No  [][]float64 `json:"no"`
	} `json:"orderbook"`
}

// ListMarkets fetches open markets, optionally restricted to a series
// ticker. Markets in the filter's excluded category are dropped after the
// fetch because the API has no category exclusion parameter.
func (c *Client) ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error) {
	params := url.Values{}
	status := filter.Status
	if status == "" {
		status = "open"
	}
	params.Set("status", status)
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	params.Set("limit", strconv.Itoa(limit))
	if filter.SeriesTicker != "" {
		params.Set("series_ticker", filter.SeriesTicker)
	}

	path := "/markets?" + params.Encode()

	var resp marketsResponse
	found, err := c.getJSON(ctx, path, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	markets := make([]types.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		if filter.ExcludeCategory != "" && strings.EqualFold(m.Category, filter.ExcludeCategory) {
			continue
		}
		markets = append(markets, normalizeMarket(m))
	}

	c.logger.Debug("kalshi-markets-fetched",
		zap.Int("count", len(markets)),
		zap.String("series", filter.SeriesTicker),
	)

	return markets, nil
}

func normalizeMarket(m kalshiMarket) types.Market {
	subtitle := m.Subtitle
	if subtitle == "" {
		subtitle = m.YesSubTitle
	}
	return types.Market{
		Venue:       types.VenueKalshi,
		ID:          m.Ticker,
		Title:       m.Title,
		Subtitle:    subtitle,
		EventID:     m.EventTicker,
		Category:    m.Category,
		Active:      m.Status == "open" || m.Status == "active",
		YesAskCents: m.YesAsk,
		NoAskCents:  m.NoAsk,
	}
}

// GetOrderbook fetches a market's ladder and reduces it to effective YES
// and NO ask prices. A missing or empty book returns (nil, nil).
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (*orderbook.Book, error) {
	path := "/markets/" + url.PathEscape(ticker) + "/orderbook"

	var resp orderbookResponse
	found, err := c.getJSON(ctx, path, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	yesBid := orderbook.BestBidCents(resp.Orderbook.Yes)
	noBid := orderbook.BestBidCents(resp.Orderbook.No)
	if yesBid == 0 || noBid == 0 {
		orderbook.EmptyBooksTotal.WithLabelValues(venueKey).Inc()
		return nil, nil
	}

	yesAsk, noAsk := orderbook.AsksFromBidCents(yesBid, noBid)
	orderbook.ReductionsTotal.WithLabelValues(venueKey).Inc()

	return &orderbook.Book{
		MarketID: ticker,
		YesAsk:   yesAsk,
		NoAsk:    noAsk,
	}, nil
}

// GetBestPrices returns the YES-side quote for a market, derived from its
// reduced orderbook.
func (c *Client) GetBestPrices(ctx context.Context, ticker string) (*types.Quote, error) {
	book, err := c.GetOrderbook(ctx, ticker)
	if err != nil || book == nil {
		return nil, err
	}
	return &types.Quote{
		Bid: 1 - book.NoAsk,
		Ask: book.YesAsk,
	}, nil
}

// getJSON performs a signed GET with the 429 retry contract. It returns
// found=false when the datum is absent for this tick: non-2xx status,
// transport failure, open breaker, undecodable body, or exhausted
// rate-limit retries. Only context cancellation propagates as an error.
func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx, venueKey); err != nil {
			return false, err
		}

		status, body, err := c.doOnce(ctx, http.MethodGet, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			c.logger.Debug("kalshi-request-failed",
				zap.String("path", path),
				zap.Error(err),
			)
			requestsTotal.WithLabelValues("error").Inc()
			return false, nil
		}

		if status == http.StatusTooManyRequests {
			requestsTotal.WithLabelValues("429").Inc()
			if attempt == c.maxRetries {
				c.logger.Warn("kalshi-rate-limit-retries-exhausted", zap.String("path", path))
				return false, nil
			}
			delay := c.initialBackoff * (1 << attempt)
			retriesTotal.Inc()
			c.logger.Debug("kalshi-rate-limited-backing-off",
				zap.String("path", path),
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
			)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		if status != http.StatusOK {
			c.logger.Debug("kalshi-unexpected-status",
				zap.String("path", path),
				zap.Int("status", status),
			)
			return false, nil
		}

		if err := json.Unmarshal(body, out); err != nil {
			c.logger.Debug("kalshi-undecodable-response",
				zap.String("path", path),
				zap.Error(err),
			)
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

type httpResult struct {
	status int
	body   []byte
}

// doOnce executes one signed request attempt through the circuit breaker.
// Transport errors and 5xx responses count as breaker failures; 4xx
// responses, including 429, do not.
func (c *Client) doOnce(ctx context.Context, method, path string) (int, []byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		headers, err := c.signer.Headers(method, path, "")
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &types.VenueError{
				Venue:      venueKey,
				StatusCode: resp.StatusCode,
				Path:       path,
				Message:    strings.TrimSpace(string(body)),
			}
		}

		return &httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		var venueErr *types.VenueError
		if errors.As(err, &venueErr) {
			return venueErr.StatusCode, nil, err
		}
		return 0, nil, err
	}

	res := result.(*httpResult)
	return res.status, res.body, nil
}

package spot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/circuitbreaker"
	"github.com/mselser95/prediction-arb/internal/ratelimit"
	"github.com/mselser95/prediction-arb/pkg/types"
)

const venueKey = "spot"

// Symbols are the crypto assets tracked for spot-lag detection.
var Symbols = []string{"BTC", "ETH", "SOL"}

// Client fetches reference spot prices from Coinbase. Spot prices are a
// best-effort input: a symbol that fails to fetch is simply missing from
// the result and the detectors skip it for the tick.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger

	maxRetries     int
	initialBackoff time.Duration
}

// Config holds spot client configuration.
type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
	Limiter     *ratelimit.Limiter
	Breaker     *circuitbreaker.Breaker
	Logger      *zap.Logger
}

// New creates a Coinbase spot price client.
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

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        cfg.Limiter,
		breaker:        cfg.Breaker,
		logger:         cfg.Logger,
		maxRetries:     3,
		initialBackoff: 1500 * time.Millisecond,
	}, nil
}

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// GetSpot fetches the spot price for a trading pair like "BTC-USD".
// Returns (0, nil) when the price is unavailable this tick.
func (c *Client) GetSpot(ctx context.Context, pair string) (float64, error) {
	var resp spotResponse
	found, err := c.getJSON(ctx, "/"+pair+"/spot", &resp)
	if err != nil || !found {
		return 0, err
	}

	price, err := strconv.ParseFloat(resp.Data.Amount, 64)
	if err != nil || price <= 0 {
		c.logger.Debug("spot-amount-unparseable",
			zap.String("pair", pair),
			zap.String("amount", resp.Data.Amount),
		)
		return 0, nil
	}
	return price, nil
}

// GetAllSpots fetches USD spot prices for every tracked symbol. Symbols
// that fail are omitted from the map.
func (c *Client) GetAllSpots(ctx context.Context) (map[string]float64, error) {
	spots := make(map[string]float64, len(Symbols))
	for _, symbol := range Symbols {
		price, err := c.GetSpot(ctx, symbol+"-USD")
		if err != nil {
			return nil, err
		}
		if price > 0 {
			spots[symbol] = price
			spotPrice.WithLabelValues(symbol).Set(price)
		}
	}
	return spots, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx, venueKey); err != nil {
			return false, err
		}

		status, body, err := c.doOnce(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			c.logger.Debug("spot-request-failed", zap.String("path", path), zap.Error(err))
			requestsTotal.WithLabelValues("error").Inc()
			return false, nil
		}

		if status == http.StatusTooManyRequests {
			requestsTotal.WithLabelValues("429").Inc()
			if attempt == c.maxRetries {
				return false, nil
			}
			delay := c.initialBackoff * (1 << attempt)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		if status != http.StatusOK {
			return false, nil
		}

		if err := json.Unmarshal(body, out); err != nil {
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

func (c *Client) doOnce(ctx context.Context, path string) (int, []byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
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

package polymarket

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
	"github.com/mselser95/prediction-arb/pkg/cache"
	"github.com/mselser95/prediction-arb/pkg/types"
)

const (
	gammaBucket = "gamma"
	clobBucket  = "clob"

	pageSize      = 100
	tokenCacheTTL = 10 * time.Minute
)

// Client talks to both Polymarket APIs: Gamma for market discovery and the
// CLOB for orderbooks and prices. Outcome token ids learned during
// discovery are cached so price lookups never need a second Gamma hit.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	tokens     cache.Cache
	logger     *zap.Logger

	maxRetries     int
	initialBackoff time.Duration
}

// Config holds Polymarket client configuration.
type Config struct {
	GammaURL    string
	ClobURL     string
	HTTPTimeout time.Duration
	Limiter     *ratelimit.Limiter
	Breaker     *circuitbreaker.Breaker
	TokenCache  cache.Cache
	Logger      *zap.Logger
}

// New creates a Polymarket client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.GammaURL == "" {
		return nil, fmt.Errorf("gamma URL cannot be empty")
	}
	if cfg.ClobURL == "" {
		return nil, fmt.Errorf("clob URL cannot be empty")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter cannot be nil")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("circuit breaker cannot be nil")
	}
	if cfg.TokenCache == nil {
		return nil, fmt.Errorf("token cache cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		gammaURL:       strings.TrimRight(cfg.GammaURL, "/"),
		clobURL:        strings.TrimRight(cfg.ClobURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        cfg.Limiter,
		breaker:        cfg.Breaker,
		tokens:         cfg.TokenCache,
		logger:         cfg.Logger,
		maxRetries:     3,
		initialBackoff: 1500 * time.Millisecond,
	}, nil
}

// gammaMarket is the Gamma wire shape. Outcome labels and CLOB token ids
// arrive as JSON-encoded strings inside the JSON document.
type gammaMarket struct {
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

type bookResponse struct {
	Bids []orderbook.Level `json:"bids"`
	Asks []orderbook.Level `json:"asks"`
}

type priceResponse struct {
	Price string `json:"price"`
}

// ListMarkets pages through Gamma's active markets up to filter.Limit.
// Markets whose outcome tokens cannot be parsed are dropped: without token
// ids there is nothing to price.
func (c *Client) ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	var markets []types.Market
	for offset := 0; len(markets) < limit; offset += pageSize {
		params := url.Values{}
		params.Set("closed", "false")
		params.Set("active", "true")
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page []gammaMarket
		found, err := c.getJSON(ctx, gammaBucket, c.gammaURL+"/markets?"+params.Encode(), &page)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}

		for _, gm := range page {
			m, ok := c.normalizeMarket(gm)
			if !ok {
				continue
			}
			markets = append(markets, m)
			if len(markets) == limit {
				break
			}
		}

		if len(page) < pageSize {
			break
		}
	}

	c.logger.Debug("polymarket-markets-fetched", zap.Int("count", len(markets)))
	return markets, nil
}

// normalizeMarket converts a Gamma market and primes the token cache.
func (c *Client) normalizeMarket(gm gammaMarket) (types.Market, bool) {
	id := gm.ConditionID
	if id == "" {
		id = gm.ID
	}
	if id == "" || gm.Question == "" {
		return types.Market{}, false
	}

	outcomes, err := parseOutcomeTokens(gm.Outcomes, gm.ClobTokenIDs)
	if err != nil {
		c.logger.Debug("skipping-market-unparseable-tokens",
			zap.String("market-id", id),
			zap.Error(err),
		)
		return types.Market{}, false
	}

	c.tokens.Set("tokens:"+id, outcomes, tokenCacheTTL)

	return types.Market{
		Venue:    types.VenuePolymarket,
		ID:       id,
		Title:    gm.Question,
		Category: gm.Category,
		Slug:     gm.Slug,
		Active:   gm.Active && !gm.Closed,
		Outcomes: outcomes,
	}, true
}

// parseOutcomeTokens zips the doubly-encoded outcome labels and token ids.
func parseOutcomeTokens(outcomesJSON, tokenIDsJSON string) ([]types.OutcomeToken, error) {
	var labels []string
	if err := json.Unmarshal([]byte(outcomesJSON), &labels); err != nil {
		return nil, fmt.Errorf("parse outcomes: %w", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(tokenIDsJSON), &ids); err != nil {
		return nil, fmt.Errorf("parse token ids: %w", err)
	}
	if len(labels) == 0 || len(labels) != len(ids) {
		return nil, fmt.Errorf("outcome count %d does not match token count %d", len(labels), len(ids))
	}

	tokens := make([]types.OutcomeToken, len(labels))
	for i := range labels {
		tokens[i] = types.OutcomeToken{Label: labels[i], TokenID: ids[i]}
	}
	return tokens, nil
}

// GetOrderbook fetches both CLOB books for a binary market and reduces them
// to best asks. Returns (nil, nil) when tokens are unknown or either side
// has no liquidity.
func (c *Client) GetOrderbook(ctx context.Context, marketID string) (*orderbook.Book, error) {
	tokens := c.cachedTokens(marketID)
	if tokens == nil {
		return nil, nil
	}

	yesToken, noToken := binaryTokens(tokens)
	if yesToken == "" || noToken == "" {
		return nil, nil
	}

	yesAsk, err := c.bookBestAsk(ctx, yesToken)
	if err != nil {
		return nil, err
	}
	noAsk, err := c.bookBestAsk(ctx, noToken)
	if err != nil {
		return nil, err
	}

	if yesAsk == 0 || noAsk == 0 {
		orderbook.EmptyBooksTotal.WithLabelValues(string(types.VenuePolymarket)).Inc()
		return nil, nil
	}

	orderbook.ReductionsTotal.WithLabelValues(string(types.VenuePolymarket)).Inc()
	return &orderbook.Book{
		MarketID: marketID,
		YesAsk:   yesAsk,
		NoAsk:    noAsk,
	}, nil
}

func (c *Client) cachedTokens(marketID string) []types.OutcomeToken {
	value, found := c.tokens.Get("tokens:" + marketID)
	if !found {
		c.logger.Debug("no-cached-tokens-for-market", zap.String("market-id", marketID))
		return nil
	}
	tokens, ok := value.([]types.OutcomeToken)
	if !ok {
		return nil
	}
	return tokens
}

func binaryTokens(tokens []types.OutcomeToken) (yesToken, noToken string) {
	for _, tok := range tokens {
		switch {
		case strings.EqualFold(tok.Label, "Yes"):
			yesToken = tok.TokenID
		case strings.EqualFold(tok.Label, "No"):
			noToken = tok.TokenID
		}
	}
	return yesToken, noToken
}

func (c *Client) bookBestAsk(ctx context.Context, tokenID string) (float64, error) {
	var book bookResponse
	found, err := c.getJSON(ctx, clobBucket, c.clobURL+"/book?token_id="+url.QueryEscape(tokenID), &book)
	if err != nil || !found {
		return 0, err
	}
	return orderbook.BestAsk(book.Asks), nil
}

// GetBestPrices returns the buy and sell prices for one outcome token.
func (c *Client) GetBestPrices(ctx context.Context, tokenID string) (*types.Quote, error) {
	ask, err := c.tokenPrice(ctx, tokenID, "buy")
	if err != nil {
		return nil, err
	}
	bid, err := c.tokenPrice(ctx, tokenID, "sell")
	if err != nil {
		return nil, err
	}
	if ask == 0 && bid == 0 {
		return nil, nil
	}
	return &types.Quote{Bid: bid, Ask: ask}, nil
}

// MultiOutcomePrices returns the buy price of every outcome of a
// categorical market. Outcomes that fail to price are skipped rather than
// failing the whole market.
func (c *Client) MultiOutcomePrices(ctx context.Context, market *types.Market) ([]orderbook.OutcomePrice, error) {
	prices := make([]orderbook.OutcomePrice, 0, len(market.Outcomes))
	for _, tok := range market.Outcomes {
		ask, err := c.tokenPrice(ctx, tok.TokenID, "buy")
		if err != nil {
			return nil, err
		}
		if ask <= 0 {
			continue
		}
		prices = append(prices, orderbook.OutcomePrice{
			Label:   tok.Label,
			TokenID: tok.TokenID,
			Ask:     ask,
		})
	}
	return prices, nil
}

func (c *Client) tokenPrice(ctx context.Context, tokenID, side string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", side)

	var resp priceResponse
	found, err := c.getJSON(ctx, clobBucket, c.clobURL+"/price?"+params.Encode(), &resp)
	if err != nil || !found {
		return 0, err
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, nil
	}
	return price, nil
}

// getJSON performs a GET with the 429 retry contract shared by all venue
// clients: rate limits are retried with exponential backoff, anything else
// downgrades to an absent result. Only context cancellation is an error.
func (c *Client) getJSON(ctx context.Context, bucket, rawURL string, out any) (bool, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx, bucket); err != nil {
			return false, err
		}

		status, body, err := c.doOnce(ctx, rawURL)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			c.logger.Debug("polymarket-request-failed",
				zap.String("url", rawURL),
				zap.Error(err),
			)
			requestsTotal.WithLabelValues(bucket, "error").Inc()
			return false, nil
		}

		if status == http.StatusTooManyRequests {
			requestsTotal.WithLabelValues(bucket, "429").Inc()
			if attempt == c.maxRetries {
				c.logger.Warn("polymarket-rate-limit-retries-exhausted", zap.String("url", rawURL))
				return false, nil
			}
			delay := c.initialBackoff * (1 << attempt)
			retriesTotal.WithLabelValues(bucket).Inc()
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		requestsTotal.WithLabelValues(bucket, strconv.Itoa(status)).Inc()
		if status != http.StatusOK {
			c.logger.Debug("polymarket-unexpected-status",
				zap.String("url", rawURL),
				zap.Int("status", status),
			)
			return false, nil
		}

		if err := json.Unmarshal(body, out); err != nil {
			c.logger.Debug("polymarket-undecodable-response",
				zap.String("url", rawURL),
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

func (c *Client) doOnce(ctx context.Context, rawURL string) (int, []byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "prediction-arb/1.0")

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
				Venue:      types.VenuePolymarket,
				StatusCode: resp.StatusCode,
				Path:       rawURL,
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

package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/circuitbreaker"
	"github.com/mselser95/prediction-arb/internal/kalshi"
	"github.com/mselser95/prediction-arb/internal/polymarket"
	"github.com/mselser95/prediction-arb/internal/ratelimit"
	"github.com/mselser95/prediction-arb/pkg/cache"
	"github.com/mselser95/prediction-arb/pkg/config"
)

// newLimiter builds a per-venue limiter for one-shot commands. Each command
// gets its own; only the scanner process shares one across clients.
func newLimiter(cfg *config.Config, logger *zap.Logger) (*ratelimit.Limiter, error) {
	return ratelimit.New(&ratelimit.Config{
		Logger: logger,
		Budgets: map[string]float64{
			"kalshi": cfg.KalshiRateLimit,
			"clob":   cfg.ClobRateLimit,
			"gamma":  cfg.GammaRateLimit,
			"spot":   cfg.SpotRateLimit,
		},
	})
}

func newPolymarketClient(cfg *config.Config, logger *zap.Logger) (*polymarket.Client, error) {
	limiter, err := newLimiter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create limiter: %w", err)
	}
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Venue:  "polymarket",
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}
	tokenCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return polymarket.New(&polymarket.Config{
		GammaURL:    cfg.PolymarketGammaURL,
		ClobURL:     cfg.PolymarketClobURL,
		HTTPTimeout: cfg.HTTPTimeout,
		Limiter:     limiter,
		Breaker:     breaker,
		TokenCache:  tokenCache,
		Logger:      logger,
	})
}

func newKalshiClient(cfg *config.Config, logger *zap.Logger) (*kalshi.Client, error) {
	limiter, err := newLimiter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create limiter: %w", err)
	}
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Venue:  "kalshi",
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}
	return kalshi.New(&kalshi.Config{
		BaseURL:     cfg.KalshiBaseURL,
		APIKey:      cfg.KalshiAPIKey,
		PrivateKey:  cfg.KalshiPrivateKey,
		HTTPTimeout: cfg.HTTPTimeout,
		Limiter:     limiter,
		Breaker:     breaker,
		Logger:      logger,
	})
}

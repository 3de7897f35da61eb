package ratelimit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter paces venue requests with per-venue token buckets. Budgets are
// fixed at construction; waiting respects context cancellation so a
// cancelled scan never blocks on a token.
type Limiter struct {
	buckets map[string]*rate.Limiter
	logger  *zap.Logger
}

// Config holds rate limiter configuration.
type Config struct {
	Logger *zap.Logger

	// Budgets maps a venue key to its request budget per second.
	Budgets map[string]float64
}

// New creates a limiter with one token bucket per venue.
func New(cfg *Config) (*Limiter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Budgets) == 0 {
		return nil, fmt.Errorf("budgets cannot be empty")
	}

	buckets := make(map[string]*rate.Limiter, len(cfg.Budgets))
	for venue, rps := range cfg.Budgets {
		if rps <= 0 {
			return nil, fmt.Errorf("budget for %s must be positive, got %f", venue, rps)
		}
		burst := int(rps / 10)
		if burst < 1 {
			burst = 1
		}
		buckets[venue] = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Limiter{
		buckets: buckets,
		logger:  cfg.Logger,
	}, nil
}

// Wait blocks until the venue's bucket grants a token or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, venue string) error {
	bucket, ok := l.buckets[venue]
	if !ok {
		return fmt.Errorf("no rate budget configured for venue %q", venue)
	}

	timer := waitTimer(venue)
	err := bucket.Wait(ctx)
	timer()

	if err != nil {
		return fmt.Errorf("rate wait for %s: %w", venue, err)
	}

	WaitsTotal.WithLabelValues(venue).Inc()
	return nil
}

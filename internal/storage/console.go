package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/arbitrage"
	"github.com/mselser95/prediction-arb/pkg/types"
)

// consoleRetention bounds the in-memory window used for period stats when
// no database is configured. Matches the widest dashboard window.
const consoleRetention = 24 * time.Hour

type consoleEntry struct {
	ts     time.Time
	profit float64
}

// ConsoleStorage implements Storage by logging opportunities and keeping
// a bounded in-memory window so the dashboard stats still work without a
// database.
type ConsoleStorage struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries []consoleEntry
}

// NewConsoleStorage creates a console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{logger: logger}
}

// StoreOpportunity logs the opportunity and retains its profit for
// period stats.
func (c *ConsoleStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	c.logger.Info("arbitrage-opportunity-detected",
		zap.String("arb-type", string(opp.Type)),
		zap.String("market", opp.MarketPair),
		zap.String("strategy", opp.Strategy),
		zap.Float64("total-cost", opp.TotalCost),
		zap.Float64("profit-cents", opp.ProfitCents),
		zap.String("url", opp.URL),
	)

	c.mu.Lock()
	c.entries = append(c.entries, consoleEntry{ts: opp.Timestamp, profit: opp.ProfitCents})
	c.pruneLocked(time.Now().Add(-consoleRetention))
	c.mu.Unlock()

	storedTotal.WithLabelValues("console").Inc()
	return nil
}

// StoreScanStats logs one tick's counters.
func (c *ConsoleStorage) StoreScanStats(ctx context.Context, stats ScanStats) error {
	c.logger.Debug("scan-stats",
		zap.Int("poly-count", stats.PolyCount),
		zap.Int("kalshi-count", stats.KalshiCount),
		zap.Int("matched-pairs", stats.MatchedPairs),
		zap.Int("opportunities", stats.Opportunities),
	)
	return nil
}

// PeriodStats aggregates the retained entries over a trailing window.
func (c *ConsoleStorage) PeriodStats(ctx context.Context, window time.Duration) (types.PeriodStats, error) {
	cutoff := time.Now().Add(-window)

	c.mu.Lock()
	defer c.mu.Unlock()

	var stats types.PeriodStats
	for _, e := range c.entries {
		if e.ts.After(cutoff) {
			stats.Count++
			stats.ProfitCents += e.profit
		}
	}
	return stats, nil
}

func (c *ConsoleStorage) pruneLocked(cutoff time.Time) {
	keep := c.entries[:0]
	for _, e := range c.entries {
		if e.ts.After(cutoff) {
			keep = append(keep, e)
		}
	}
	c.entries = keep
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("console-storage-closing")
	return nil
}

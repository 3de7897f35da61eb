package storage

import (
	"context"
	"time"

	"github.com/mselser95/prediction-arb/internal/arbitrage"
	"github.com/mselser95/prediction-arb/pkg/types"
)

// ScanStats is one tick's market counts, persisted so gaps in the scan
// history are visible after the fact.
type ScanStats struct {
	PolyCount     int
	KalshiCount   int
	CryptoPoly    int
	CryptoKalshi  int
	MatchedPairs  int
	Opportunities int
}

// Storage is the relational sink for opportunities and scan statistics.
type Storage interface {
	// StoreOpportunity appends one detected opportunity.
	StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error

	// StoreScanStats records one tick's counters.
	StoreScanStats(ctx context.Context, stats ScanStats) error

	// PeriodStats aggregates opportunities over a trailing window.
	PeriodStats(ctx context.Context, window time.Duration) (types.PeriodStats, error)

	// Close closes the storage connection.
	Close() error
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

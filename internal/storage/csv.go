package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/arbitrage"
)

// csvHeader is consumed by downstream notebooks; the column set and order
// must not change.
var csvHeader = []string{
	"timestamp", "market_pair", "polymarket_market", "kalshi_market",
	"strategy", "poly_price", "kalshi_price", "total_cost", "profit_cents",
	"poly_market_id", "kalshi_ticker", "arb_type",
}

// CSVLogger appends opportunities to a CSV file, writing the header only
// when it creates the file.
type CSVLogger struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVLogger opens or creates the log file at path.
func NewCSVLogger(path string, logger *zap.Logger) (*CSVLogger, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv log: %w", err)
	}

	l := &CSVLogger{
		path:   path,
		logger: logger,
		file:   f,
		w:      csv.NewWriter(f),
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv log: %w", err)
	}
	if info.Size() == 0 {
		if err := l.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		l.w.Flush()
		if err := l.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	logger.Info("csv-log-opened", zap.String("path", path))
	return l, nil
}

// Append writes one opportunity row and flushes it.
func (l *CSVLogger) Append(opp *arbitrage.Opportunity) error {
	row := []string{
		opp.Timestamp.Format(time.RFC3339),
		opp.MarketPair,
		opp.PolyMarket,
		opp.KalshiMarket,
		opp.Strategy,
		fmt.Sprintf("%.4f", opp.PolyPrice()),
		fmt.Sprintf("%.4f", opp.KalshiPrice()),
		fmt.Sprintf("%.4f", opp.TotalCost),
		fmt.Sprintf("%.2f", opp.ProfitCents),
		opp.PolyMarketID,
		opp.KalshiTicker,
		string(opp.Type),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Write(row); err != nil {
		storeErrorsTotal.WithLabelValues("csv").Inc()
		return fmt.Errorf("write csv row: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		storeErrorsTotal.WithLabelValues("csv").Inc()
		return fmt.Errorf("flush csv row: %w", err)
	}

	storedTotal.WithLabelValues("csv").Inc()
	return nil
}

// Close flushes and closes the file.
func (l *CSVLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.file.Close()
		return fmt.Errorf("flush csv log: %w", err)
	}
	return l.file.Close()
}

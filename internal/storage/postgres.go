package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/arbitrage"
	"github.com/mselser95/prediction-arb/pkg/types"
)

// Timestamps are stored as epoch seconds so window queries stay a single
// numeric comparison.
const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id serial PRIMARY KEY,
	ts double precision,
	bot text,
	market text,
	arb_type text,
	strategy text,
	profit_cents double precision,
	price_a double precision,
	price_b double precision,
	source_a text,
	source_b text,
	url text
);
CREATE TABLE IF NOT EXISTS scan_stats (
	id serial PRIMARY KEY,
	ts double precision,
	poly_count integer,
	kalshi_count integer,
	crypto_poly integer,
	crypto_kalshi integer,
	matched_pairs integer,
	opportunities integer
);
CREATE INDEX IF NOT EXISTS idx_opp_ts ON opportunities (ts);
CREATE INDEX IF NOT EXISTS idx_opp_bot ON opportunities (bot);
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	bot    string
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	DSN    string // lib/pq connection string or postgres:// URL
	Bot    string // value of the bot column on every row
	Logger *zap.Logger
}

// NewPostgresStorage connects, verifies the connection and creates the
// schema when missing.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected", zap.String("bot", cfg.Bot))
	return &PostgresStorage{
		db:     db,
		bot:    cfg.Bot,
		logger: cfg.Logger,
	}, nil
}

// StoreOpportunity appends one opportunity row.
func (p *PostgresStorage) StoreOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	query := `
		INSERT INTO opportunities (
			ts, bot, market, arb_type, strategy, profit_cents,
			price_a, price_b, source_a, source_b, url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := p.db.ExecContext(ctx, query,
		epochSeconds(opp.Timestamp),
		p.bot,
		clip(opp.MarketPair, 300),
		string(opp.Type),
		clip(opp.Strategy, 200),
		opp.ProfitCents,
		opp.PriceA,
		opp.PriceB,
		opp.SourceA,
		opp.SourceB,
		opp.URL,
	)
	if err != nil {
		storeErrorsTotal.WithLabelValues("postgres").Inc()
		return fmt.Errorf("insert opportunity: %w", err)
	}

	storedTotal.WithLabelValues("postgres").Inc()
	p.logger.Debug("opportunity-stored",
		zap.String("id", opp.ID),
		zap.String("arb-type", string(opp.Type)))
	return nil
}

// StoreScanStats records one tick's counters.
func (p *PostgresStorage) StoreScanStats(ctx context.Context, stats ScanStats) error {
	query := `
		INSERT INTO scan_stats (
			ts, poly_count, kalshi_count, crypto_poly, crypto_kalshi,
			matched_pairs, opportunities
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.db.ExecContext(ctx, query,
		epochSeconds(time.Now()),
		stats.PolyCount,
		stats.KalshiCount,
		stats.CryptoPoly,
		stats.CryptoKalshi,
		stats.MatchedPairs,
		stats.Opportunities,
	)
	if err != nil {
		storeErrorsTotal.WithLabelValues("postgres").Inc()
		return fmt.Errorf("insert scan stats: %w", err)
	}
	return nil
}

// PeriodStats aggregates this bot's opportunities over a trailing window.
func (p *PostgresStorage) PeriodStats(ctx context.Context, window time.Duration) (types.PeriodStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(profit_cents), 0)
		FROM opportunities
		WHERE ts > $1 AND bot = $2
	`

	cutoff := epochSeconds(time.Now().Add(-window))
	var stats types.PeriodStats
	err := p.db.QueryRowContext(ctx, query, cutoff, p.bot).Scan(&stats.Count, &stats.ProfitCents)
	if err != nil {
		return types.PeriodStats{}, fmt.Errorf("query period stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("postgres-storage-closing")
	return p.db.Close()
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/arbitrage"
	"github.com/mselser95/prediction-arb/internal/constraints"
	"github.com/mselser95/prediction-arb/internal/matcher"
	"github.com/mselser95/prediction-arb/internal/orderbook"
	"github.com/mselser95/prediction-arb/internal/storage"
	"github.com/mselser95/prediction-arb/pkg/types"
)

const (
	// maxOpportunities and maxErrors bound the in-memory rings that feed
	// the dashboard. Both keep the newest entries.
	maxOpportunities = 200
	maxErrors        = 20

	// maxBookFallbacks is the default per-tick cap on orderbook fetches for
	// crypto markets whose list response carried no market-level ask.
	maxBookFallbacks = 50

	// maxConstraintFetches is the default per-tick cap on Polymarket price
	// fetches made for constraint checking.
	maxConstraintFetches = 50

	// cryptoSeriesLimit is the per-series page size for the crypto sweeps.
	cryptoSeriesLimit = 100

	// minSleep is the floor between ticks even when a tick overruns the
	// poll interval.
	minSleep = time.Second
)

// kalshiCryptoSeries are the Kalshi series fetched for spot-lag detection.
var kalshiCryptoSeries = []string{"KXBTC", "KXETH", "KXSOL"}

// PolyVenue is the Polymarket surface the scan loop consumes.
type PolyVenue interface {
	ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error)
	GetOrderbook(ctx context.Context, marketID string) (*orderbook.Book, error)
	GetBestPrices(ctx context.Context, tokenID string) (*types.Quote, error)
	MultiOutcomePrices(ctx context.Context, market *types.Market) ([]orderbook.OutcomePrice, error)
}

// KalshiVenue is the Kalshi surface the scan loop consumes.
type KalshiVenue interface {
	ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error)
	GetOrderbook(ctx context.Context, ticker string) (*orderbook.Book, error)
}

// SpotOracle supplies reference crypto spot prices.
type SpotOracle interface {
	GetAllSpots(ctx context.Context) (map[string]float64, error)
}

// PairMatcher resolves cross-venue market pairs and owns the match cache.
type PairMatcher interface {
	Pairs(ctx context.Context, polys, kalshis []types.Market) []matcher.Pair
	Rematch(ctx context.Context, polys, kalshis []types.Market) int
	ShouldRematch(interval time.Duration) bool
	Stats() types.MatcherStats
}

// Scanner drives the scan loop: fetch, match, evaluate every predicate,
// sink, publish. It owns the matcher and the dashboard rings; everything it
// mutates is touched only from the loop goroutine, and readers get an
// immutable snapshot swapped in once per tick.
type Scanner struct {
	poly     PolyVenue
	kalshi   KalshiVenue
	spot     SpotOracle
	matcher  PairMatcher
	eval     *arbitrage.Evaluator
	detector *constraints.Detector
	store    storage.Storage
	csv      *storage.CSVLogger
	logger   *zap.Logger

	pollInterval       time.Duration
	fetchLimit         int
	maxPairs           int
	maxMulti           int
	spotFetchCap       int
	constraintFetchCap int
	rematchInterval    time.Duration

	started   time.Time
	scanCount int64
	opps      []types.OpportunityRecord
	errs      []string
	snapshot  atomic.Pointer[types.StateSnapshot]
}

// Config holds scanner configuration. CSV is optional; the interval and cap
// fields fall back to their defaults when zero.
type Config struct {
	Poly      PolyVenue
	Kalshi    KalshiVenue
	Spot      SpotOracle
	Matcher   PairMatcher
	Evaluator *arbitrage.Evaluator
	Detector  *constraints.Detector
	Storage   storage.Storage
	CSV       *storage.CSVLogger
	Logger    *zap.Logger

	PollInterval         time.Duration
	MarketFetchLimit     int
	MaxPairsPerTick      int
	MaxMultiOutcome      int
	MaxSpotLagFetches    int
	MaxConstraintFetches int
	RematchInterval      time.Duration
}

// New creates a Scanner.
func New(cfg *Config) (*Scanner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Poly == nil {
		return nil, fmt.Errorf("polymarket venue cannot be nil")
	}
	if cfg.Kalshi == nil {
		return nil, fmt.Errorf("kalshi venue cannot be nil")
	}
	if cfg.Spot == nil {
		return nil, fmt.Errorf("spot oracle cannot be nil")
	}
	if cfg.Matcher == nil {
		return nil, fmt.Errorf("matcher cannot be nil")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("constraint detector cannot be nil")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	fetchLimit := cfg.MarketFetchLimit
	if fetchLimit <= 0 {
		fetchLimit = 200
	}
	maxPairs := cfg.MaxPairsPerTick
	if maxPairs <= 0 {
		maxPairs = 30
	}
	maxMulti := cfg.MaxMultiOutcome
	if maxMulti <= 0 {
		maxMulti = 80
	}
	spotFetchCap := cfg.MaxSpotLagFetches
	if spotFetchCap <= 0 {
		spotFetchCap = maxBookFallbacks
	}
	constraintFetchCap := cfg.MaxConstraintFetches
	if constraintFetchCap <= 0 {
		constraintFetchCap = maxConstraintFetches
	}
	rematchInterval := cfg.RematchInterval
	if rematchInterval <= 0 {
		rematchInterval = 300 * time.Second
	}

	s := &Scanner{
		poly:               cfg.Poly,
		kalshi:             cfg.Kalshi,
		spot:               cfg.Spot,
		matcher:            cfg.Matcher,
		eval:               cfg.Evaluator,
		detector:           cfg.Detector,
		store:              cfg.Storage,
		csv:                cfg.CSV,
		logger:             cfg.Logger,
		pollInterval:       pollInterval,
		fetchLimit:         fetchLimit,
		maxPairs:           maxPairs,
		maxMulti:           maxMulti,
		spotFetchCap:       spotFetchCap,
		constraintFetchCap: constraintFetchCap,
		rematchInterval:    rematchInterval,
		started:            time.Now().UTC(),
	}
	s.snapshot.Store(&types.StateSnapshot{
		Status:        "starting",
		SpotPrices:    map[string]float64{},
		Opportunities: []types.OpportunityRecord{},
		Errors:        []string{},
		Uptime:        s.started.Format(time.RFC3339),
	})
	return s, nil
}

// Snapshot returns the latest published state. Safe for concurrent readers.
func (s *Scanner) Snapshot() types.StateSnapshot {
	return *s.snapshot.Load()
}

// Run drives the scan loop until the context is cancelled. Errors inside a
// tick land on the error ring and never stop the loop; the next tick starts
// after max(minSleep, pollInterval - elapsed).
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("market-fetch-limit", s.fetchLimit),
		zap.Int("max-pairs-per-tick", s.maxPairs),
	)

	for {
		tickStart := time.Now().UTC()
		s.tick(ctx, tickStart)
		if ctx.Err() != nil {
			s.logger.Info("scanner-stopping")
			return ctx.Err()
		}

		delay := s.pollInterval - time.Since(tickStart)
		if delay < minSleep {
			delay = minSleep
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scanner-stopping")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// tick runs one full scan. Stage order is also log order: cross and intra
// pair checks, multi-outcome, the intra-Kalshi sweep, spot-lag, then the
// logical constraints. A stage that fails contributes nothing and the tick
// moves on.
func (s *Scanner) tick(ctx context.Context, tickStart time.Time) {
	timer := prometheus.NewTimer(tickDuration)
	defer timer.ObserveDuration()

	s.scanCount++
	ticksTotal.Inc()

	fr := s.fetchAll(ctx)
	if ctx.Err() != nil {
		return
	}
	cryptoPolys := cryptoPolymarkets(fr.polys)

	marketsFetched.WithLabelValues("polymarket").Set(float64(len(fr.polys)))
	marketsFetched.WithLabelValues("kalshi").Set(float64(len(fr.kalshis)))
	marketsFetched.WithLabelValues("kalshi_crypto").Set(float64(len(fr.cryptoKalshi)))
	marketsFetched.WithLabelValues("polymarket_crypto").Set(float64(len(cryptoPolys)))

	s.logger.Info("scan-tick",
		zap.Int64("scan", s.scanCount),
		zap.Int("poly-markets", len(fr.polys)),
		zap.Int("kalshi-markets", len(fr.kalshis)),
		zap.Int("crypto-poly", len(cryptoPolys)),
		zap.Int("crypto-kalshi", len(fr.cryptoKalshi)),
	)

	if s.matcher.ShouldRematch(s.rematchInterval) {
		if promoted := s.matcher.Rematch(ctx, fr.polys, fr.kalshis); promoted > 0 {
			s.logger.Info("rematch-sweep-complete", zap.Int("promoted", promoted))
		}
	}
	pairs := s.matcher.Pairs(ctx, fr.polys, fr.kalshis)

	pairOpps, pricedKalshi := s.evalPairs(ctx, pairs)
	found := pairOpps
	found = append(found, s.evalMultiOutcome(ctx, fr.polys)...)
	found = append(found, s.evalIntraKalshi(pricedKalshi, fr.kalshis, fr.cryptoKalshi)...)
	found = append(found, s.evalSpotLag(ctx, fr, cryptoPolys)...)
	found = append(found, s.evalConstraints(ctx, fr)...)
	if ctx.Err() != nil {
		return
	}

	s.sink(ctx, tickStart, found)

	stats := storage.ScanStats{
		PolyCount:     len(fr.polys),
		KalshiCount:   len(fr.kalshis),
		CryptoPoly:    len(cryptoPolys),
		CryptoKalshi:  len(fr.cryptoKalshi),
		MatchedPairs:  len(pairs),
		Opportunities: len(found),
	}
	if err := s.store.StoreScanStats(ctx, stats); err != nil {
		s.noteError("store_scan_stats", err)
	}

	s.publish("running", tickStart, fr, len(cryptoPolys), len(pairs))
}

// fetchResult carries one tick's market and spot fetches.
type fetchResult struct {
	spots        map[string]float64
	polys        []types.Market
	kalshis      []types.Market
	cryptoKalshi []types.Market
}

// fetchAll runs the four list fetches in parallel. A failed fetch leaves
// its slot empty; downstream stages skip what is missing.
func (s *Scanner) fetchAll(ctx context.Context) fetchResult {
	var (
		fr                                     fetchResult
		spotErr, polyErr, kalshiErr, seriesErr error
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		fr.spots, spotErr = s.spot.GetAllSpots(ctx)
	}()
	go func() {
		defer wg.Done()
		fr.polys, polyErr = s.poly.ListMarkets(ctx, types.MarketFilter{Limit: s.fetchLimit})
	}()
	go func() {
		defer wg.Done()
		fr.kalshis, kalshiErr = s.kalshi.ListMarkets(ctx, types.MarketFilter{
			Status:          "open",
			Limit:           s.fetchLimit,
			ExcludeCategory: "Sports",
		})
	}()
	go func() {
		defer wg.Done()
		for _, series := range kalshiCryptoSeries {
			markets, err := s.kalshi.ListMarkets(ctx, types.MarketFilter{
				Status:       "open",
				Limit:        cryptoSeriesLimit,
				SeriesTicker: series,
			})
			if err != nil {
				seriesErr = err
				return
			}
			fr.cryptoKalshi = append(fr.cryptoKalshi, markets...)
		}
	}()
	wg.Wait()

	s.noteError("spot_prices", spotErr)
	s.noteError("poly_markets", polyErr)
	s.noteError("kalshi_markets", kalshiErr)
	s.noteError("kalshi_crypto_series", seriesErr)
	return fr
}

// evalPairs fetches books for the first maxPairs matched pairs and runs the
// cross-venue and single-venue predicates on each. It also returns the
// Kalshi tickers whose books were priced, so the market-level sweep does
// not re-check them from the staler list quotes.
func (s *Scanner) evalPairs(ctx context.Context, pairs []matcher.Pair) ([]*arbitrage.Opportunity, map[string]struct{}) {
	if len(pairs) > s.maxPairs {
		pairs = pairs[:s.maxPairs]
	}

	priced := make(map[string]struct{}, len(pairs))
	var opps []*arbitrage.Opportunity
	for _, pair := range pairs {
		if ctx.Err() != nil {
			return opps, priced
		}
		polyBook, err := s.poly.GetOrderbook(ctx, pair.Poly.ID)
		if err != nil {
			s.noteError("poly_orderbook", err)
			continue
		}
		kalshiBook, err := s.kalshi.GetOrderbook(ctx, pair.Kalshi.ID)
		if err != nil {
			s.noteError("kalshi_orderbook", err)
			continue
		}
		priced[pair.Kalshi.ID] = struct{}{}
		opps = append(opps, s.eval.EvaluatePair(pair.Poly, pair.Kalshi, polyBook, kalshiBook)...)
	}
	return opps, priced
}

// evalMultiOutcome prices the categorical markets among the first maxMulti
// listed Polymarket markets. Binary markets cost no fetch.
func (s *Scanner) evalMultiOutcome(ctx context.Context, polys []types.Market) []*arbitrage.Opportunity {
	limit := len(polys)
	if limit > s.maxMulti {
		limit = s.maxMulti
	}

	var opps []*arbitrage.Opportunity
	for i := 0; i < limit; i++ {
		m := polys[i]
		if !m.IsCategorical() {
			continue
		}
		if ctx.Err() != nil {
			return opps
		}
		prices, err := s.poly.MultiOutcomePrices(ctx, &m)
		if err != nil {
			s.noteError("multi_outcome_prices", err)
			continue
		}
		if len(prices) < 3 {
			continue
		}
		if opp := s.eval.EvaluateMultiOutcome(m, prices); opp != nil {
			opps = append(opps, opp)
		}
	}
	return opps
}

// evalIntraKalshi sweeps every Kalshi market fetched this tick using the
// market-level cent quotes, so the sweep costs no orderbook calls. Crypto
// series markets can also appear in the non-sports list, and paired tickers
// were already priced from their books; the seen set keeps a market from
// being checked twice.
func (s *Scanner) evalIntraKalshi(priced map[string]struct{}, lists ...[]types.Market) []*arbitrage.Opportunity {
	seen := make(map[string]struct{}, len(priced))
	for id := range priced {
		seen[id] = struct{}{}
	}
	var opps []*arbitrage.Opportunity
	for _, list := range lists {
		for _, m := range list {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			if opp := s.eval.EvaluateIntraKalshi(m); opp != nil {
				opps = append(opps, opp)
			}
		}
	}
	return opps
}

// evalSpotLag checks crypto markets on both venues against spot. Kalshi
// prefers the market-level ask and falls back to at most spotFetchCap
// orderbook fetches; Polymarket prices the first outcome token directly.
func (s *Scanner) evalSpotLag(ctx context.Context, fr fetchResult, cryptoPolys []types.Market) []*arbitrage.Opportunity {
	var opps []*arbitrage.Opportunity

	fallbacks := 0
	for _, m := range fr.cryptoKalshi {
		coin, ok := arbitrage.CoinFromTicker(m.ID)
		if !ok {
			continue
		}
		spot, ok := fr.spots[coin]
		if !ok {
			continue
		}

		yesAsk := float64(m.YesAskCents) / 100.0
		if m.YesAskCents <= 0 {
			if fallbacks >= s.spotFetchCap {
				continue
			}
			if ctx.Err() != nil {
				return opps
			}
			book, err := s.kalshi.GetOrderbook(ctx, m.ID)
			fallbacks++
			if err != nil {
				s.noteError("kalshi_orderbook", err)
				continue
			}
			if book == nil || book.YesAsk <= 0 {
				continue
			}
			yesAsk = book.YesAsk
		}

		if opp := s.eval.EvaluateSpotLagKalshi(m, coin, spot, yesAsk); opp != nil {
			opps = append(opps, opp)
		}
	}

	for _, m := range cryptoPolys {
		coin, ok := arbitrage.IdentifyCoin(m.Title)
		if !ok {
			continue
		}
		spot, ok := fr.spots[coin]
		if !ok || len(m.Outcomes) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return opps
		}
		quote, err := s.poly.GetBestPrices(ctx, m.Outcomes[0].TokenID)
		if err != nil {
			s.noteError("poly_best_prices", err)
			continue
		}
		if quote == nil || quote.Ask <= 0 {
			continue
		}
		if opp := s.eval.EvaluateSpotLagPoly(m, coin, spot, quote.Ask); opp != nil {
			opps = append(opps, opp)
		}
	}

	return opps
}

// evalConstraints runs the logical-constraint pass per venue. Kalshi prices
// come free from the list response; Polymarket asks are fetched only for
// ids that appear in a mined constraint, at most constraintFetchCap per
// tick.
func (s *Scanner) evalConstraints(ctx context.Context, fr fetchResult) []*arbitrage.Opportunity {
	var opps []*arbitrage.Opportunity

	kalshiPrices := make(map[string]float64, len(fr.kalshis))
	for _, m := range fr.kalshis {
		if m.YesAskCents > 0 {
			kalshiPrices[m.ID] = float64(m.YesAskCents) / 100.0
		}
	}
	for _, v := range s.detector.Scan(fr.kalshis, kalshiPrices) {
		if opp := s.eval.EvaluateViolation(v); opp != nil {
			opps = append(opps, opp)
		}
	}

	cs := s.detector.Constraints(fr.polys)
	if len(cs) == 0 {
		return opps
	}

	byID := make(map[string]types.Market, len(fr.polys))
	for _, m := range fr.polys {
		byID[m.ID] = m
	}
	polyPrices := make(map[string]float64)
	fetches := 0
	for _, c := range cs {
		if fetches >= s.constraintFetchCap {
			break
		}
		for _, id := range c.MarketIDs {
			if fetches >= s.constraintFetchCap {
				break
			}
			if _, priced := polyPrices[id]; priced {
				continue
			}
			m, listed := byID[id]
			if !listed || len(m.Outcomes) == 0 {
				continue
			}
			if ctx.Err() != nil {
				return opps
			}
			quote, err := s.poly.GetBestPrices(ctx, m.Outcomes[0].TokenID)
			fetches++
			if err != nil {
				s.noteError("poly_best_prices", err)
				continue
			}
			if quote == nil || quote.Ask <= 0 {
				continue
			}
			polyPrices[id] = quote.Ask
		}
	}
	for _, v := range s.detector.DetectViolations(cs, polyPrices, byID) {
		if opp := s.eval.EvaluateViolation(v); opp != nil {
			opps = append(opps, opp)
		}
	}
	return opps
}

// sink persists the tick's opportunities and appends them to the dashboard
// ring. Timestamps are pinned to the tick start so one tick's discoveries
// sort together across sinks.
func (s *Scanner) sink(ctx context.Context, tickStart time.Time, found []*arbitrage.Opportunity) {
	for _, opp := range found {
		opp.Timestamp = tickStart
		if err := s.store.StoreOpportunity(ctx, opp); err != nil {
			s.noteError("store_opportunity", err)
		}
		if s.csv != nil {
			if err := s.csv.Append(opp); err != nil {
				s.noteError("csv_append", err)
			}
		}
		s.opps = append(s.opps, opp.Record())
		s.logger.Info("arbitrage-opportunity-detected",
			zap.String("type", string(opp.Type)),
			zap.String("market", opp.MarketPair),
			zap.String("strategy", opp.Strategy),
			zap.Float64("profit-cents", opp.ProfitCents),
		)
	}
	if len(s.opps) > maxOpportunities {
		s.opps = s.opps[len(s.opps)-maxOpportunities:]
	}
}

// publish swaps in a fresh snapshot for the dashboard. Ring slices are
// copied because readers hold a snapshot across ticks.
func (s *Scanner) publish(status string, tickStart time.Time, fr fetchResult, cryptoPoly, matched int) {
	spots := fr.spots
	if spots == nil {
		spots = map[string]float64{}
	}
	s.snapshot.Store(&types.StateSnapshot{
		Status:        status,
		LastScan:      tickStart.Format("15:04:05"),
		ScanCount:     s.scanCount,
		SpotPrices:    spots,
		PolyCount:     len(fr.polys),
		KalshiCount:   len(fr.kalshis),
		CryptoPoly:    cryptoPoly,
		CryptoKalshi:  len(fr.cryptoKalshi),
		MatchedPairs:  matched,
		Matcher:       s.matcher.Stats(),
		Opportunities: append([]types.OpportunityRecord{}, s.opps...),
		Errors:        append([]string{}, s.errs...),
		Uptime:        s.started.Format(time.RFC3339),
	})
}

// noteError records a tick-stage failure on the bounded error ring.
// Cancellation is not recorded: the loop is already shutting down.
func (s *Scanner) noteError(stage string, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	tickErrorsTotal.WithLabelValues(stage).Inc()
	s.logger.Warn("scan-stage-failed", zap.String("stage", stage), zap.Error(err))

	s.errs = append(s.errs, fmt.Sprintf("[%s] %s: %v", time.Now().UTC().Format("15:04:05"), stage, err))
	if len(s.errs) > maxErrors {
		s.errs = s.errs[len(s.errs)-maxErrors:]
	}
}

// cryptoPolymarkets returns the Polymarket markets whose titles name a
// tracked coin.
func cryptoPolymarkets(markets []types.Market) []types.Market {
	var crypto []types.Market
	for _, m := range markets {
		if _, ok := arbitrage.IdentifyCoin(m.Title); ok {
			crypto = append(crypto, m)
		}
	}
	return crypto
}

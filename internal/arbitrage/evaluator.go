package arbitrage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/orderbook"
	"github.com/mselser95/prediction-arb/pkg/types"
)

// ArbFeeBuffer is the slippage/fee allowance subtracted from the $1 payout
// before a cost counts as arbitrage: a basket is flagged only when its cost
// is strictly below 1 - ArbFeeBuffer.
const ArbFeeBuffer = 0.005

// Evaluator computes the no-arbitrage predicates over normalized books.
// It is pure: no I/O, no retained state besides configuration, so every
// scan tick sees exactly the prices it fetched.
type Evaluator struct {
	minProfitCents float64
	logger         *zap.Logger
}

// Config holds evaluator configuration.
type Config struct {
	MinProfitCents float64
	Logger         *zap.Logger
}

// New creates an Evaluator.
func New(cfg *Config) (*Evaluator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MinProfitCents < 0 {
		return nil, fmt.Errorf("min profit cents cannot be negative")
	}
	return &Evaluator{
		minProfitCents: cfg.MinProfitCents,
		logger:         cfg.Logger,
	}, nil
}

// profitable applies both gates: the fee-buffered cost bound and the
// configured profit floor. Profit is what remains of the $1 settlement
// in cents.
func (e *Evaluator) profitable(cost float64) (float64, bool) {
	if cost >= 1.0-ArbFeeBuffer {
		return 0, false
	}
	profit := (1.0 - cost) * 100
	if profit < e.minProfitCents {
		rejectedTotal.WithLabelValues("below_min_profit").Inc()
		return 0, false
	}
	return profit, true
}

// EvaluatePair runs the cross-venue predicates in both directions plus the
// single-venue predicates on each side of one matched pair. When several
// qualify on the same tick, all are emitted. A missing or one-sided book
// skips the pair silently: absent data is not arbitrage.
func (e *Evaluator) EvaluatePair(poly, kalshi types.Market, polyBook, kalshiBook *orderbook.Book) []*Opportunity {
	if !polyBook.Complete() || !kalshiBook.Complete() {
		rejectedTotal.WithLabelValues("missing_book").Inc()
		return nil
	}

	pairName := poly.Title + " / " + kalshi.Title
	var opps []*Opportunity

	// Buy YES on Polymarket, NO on Kalshi.
	if profit, ok := e.profitable(polyBook.YesAsk + kalshiBook.NoAsk); ok {
		opp := newOpportunity(TypeCrossExchange)
		opp.MarketPair = truncate(pairName, 200)
		opp.PolyMarket = poly.Title
		opp.KalshiMarket = kalshi.Title
		opp.Strategy = "poly_yes_kalshi_no"
		opp.PriceA = polyBook.YesAsk
		opp.PriceB = kalshiBook.NoAsk
		opp.SourceA = string(types.VenuePolymarket)
		opp.SourceB = string(types.VenueKalshi)
		opp.TotalCost = polyBook.YesAsk + kalshiBook.NoAsk
		opp.ProfitCents = profit
		opp.PolyMarketID = poly.ID
		opp.KalshiTicker = kalshi.ID
		opp.URL = kalshi.URL()
		opps = append(opps, opp)
	}

	// Buy YES on Kalshi, NO on Polymarket.
	if profit, ok := e.profitable(kalshiBook.YesAsk + polyBook.NoAsk); ok {
		opp := newOpportunity(TypeCrossExchange)
		opp.MarketPair = truncate(pairName, 200)
		opp.PolyMarket = poly.Title
		opp.KalshiMarket = kalshi.Title
		opp.Strategy = "kalshi_yes_poly_no"
		opp.PriceA = kalshiBook.YesAsk
		opp.PriceB = polyBook.NoAsk
		opp.SourceA = string(types.VenueKalshi)
		opp.SourceB = string(types.VenuePolymarket)
		opp.TotalCost = kalshiBook.YesAsk + polyBook.NoAsk
		opp.ProfitCents = profit
		opp.PolyMarketID = poly.ID
		opp.KalshiTicker = kalshi.ID
		opp.URL = kalshi.URL()
		opps = append(opps, opp)
	}

	// Buy both sides on Polymarket alone.
	if profit, ok := e.profitable(polyBook.YesAsk + polyBook.NoAsk); ok {
		opp := newOpportunity(TypeIntraPolymarket)
		opp.MarketPair = truncate(poly.Title, 200)
		opp.PolyMarket = poly.Title
		opp.Strategy = "buy_poly_yes_and_no"
		opp.PriceA = polyBook.YesAsk
		opp.PriceB = polyBook.NoAsk
		opp.SourceA = string(types.VenuePolymarket)
		opp.SourceB = string(types.VenuePolymarket)
		opp.TotalCost = polyBook.YesAsk + polyBook.NoAsk
		opp.ProfitCents = profit
		opp.PolyMarketID = poly.ID
		opp.URL = poly.URL()
		opps = append(opps, opp)
	}

	// Buy both sides on Kalshi alone, priced from the same book fetch.
	if profit, ok := e.profitable(kalshiBook.YesAsk + kalshiBook.NoAsk); ok {
		name := kalshi.Title
		if kalshi.Subtitle != "" {
			name = kalshi.Title + " - " + kalshi.Subtitle
		}
		opp := newOpportunity(TypeIntraKalshi)
		opp.MarketPair = truncate(name, 200)
		opp.KalshiMarket = kalshi.Title
		opp.Strategy = "buy_kalshi_yes_and_no"
		opp.PriceA = kalshiBook.YesAsk
		opp.PriceB = kalshiBook.NoAsk
		opp.SourceA = string(types.VenueKalshi)
		opp.SourceB = string(types.VenueKalshi)
		opp.TotalCost = kalshiBook.YesAsk + kalshiBook.NoAsk
		opp.ProfitCents = profit
		opp.KalshiTicker = kalshi.ID
		opp.URL = kalshi.URL()
		opps = append(opps, opp)
	}

	for _, opp := range opps {
		detectedTotal.WithLabelValues(string(opp.Type)).Inc()
		profitCents.Observe(opp.ProfitCents)
	}
	return opps
}

// EvaluateIntraKalshi checks a single Kalshi market's own YES/NO asks
// using the market-level cent prices from the list response, so the sweep
// over hundreds of markets costs no orderbook calls.
func (e *Evaluator) EvaluateIntraKalshi(m types.Market) *Opportunity {
	if m.YesAskCents <= 0 || m.NoAskCents <= 0 {
		return nil
	}

	cost := float64(m.YesAskCents)/100.0 + float64(m.NoAskCents)/100.0
	profit, ok := e.profitable(cost)
	if !ok {
		return nil
	}

	name := m.Title
	if m.Subtitle != "" {
		name = m.Title + " - " + m.Subtitle
	}

	opp := newOpportunity(TypeIntraKalshi)
	opp.MarketPair = truncate(name, 200)
	opp.KalshiMarket = m.Title
	opp.Strategy = fmt.Sprintf("Buy YES@%d¢ + NO@%d¢ = %d¢",
		m.YesAskCents, m.NoAskCents, m.YesAskCents+m.NoAskCents)
	opp.PriceA = float64(m.YesAskCents) / 100.0
	opp.PriceB = float64(m.NoAskCents) / 100.0
	opp.SourceA = string(types.VenueKalshi)
	opp.SourceB = string(types.VenueKalshi)
	opp.TotalCost = cost
	opp.ProfitCents = profit
	opp.KalshiTicker = m.ID
	opp.URL = m.URL()

	detectedTotal.WithLabelValues(string(TypeIntraKalshi)).Inc()
	profitCents.Observe(profit)
	return opp
}

// EvaluateMultiOutcome checks whether buying YES on every outcome of a
// categorical market costs less than the guaranteed $1 settlement. Needs
// at least three priced outcomes; binary markets are the pair predicates'
// job.
func (e *Evaluator) EvaluateMultiOutcome(m types.Market, prices []orderbook.OutcomePrice) *Opportunity {
	if len(prices) < 3 {
		rejectedTotal.WithLabelValues("too_few_outcomes").Inc()
		return nil
	}

	cost := 0.0
	for _, p := range prices {
		cost += p.Ask
	}
	profit, ok := e.profitable(cost)
	if !ok {
		return nil
	}

	opp := newOpportunity(TypeMultiOutcome)
	opp.MarketPair = truncate(m.Title, 200)
	opp.PolyMarket = m.Title
	opp.Strategy = fmt.Sprintf("buy_all_%d_yes_outcomes", len(prices))
	opp.PriceA = cost
	opp.SourceA = string(m.Venue)
	opp.TotalCost = cost
	opp.ProfitCents = profit
	opp.PolyMarketID = m.ID
	opp.URL = m.URL()

	e.logger.Info("multi-outcome-arbitrage",
		zap.String("market", m.Title),
		zap.Int("outcomes", len(prices)),
		zap.Float64("total-cost", cost),
		zap.Float64("profit-cents", profit),
	)
	detectedTotal.WithLabelValues(string(TypeMultiOutcome)).Inc()
	profitCents.Observe(profit)
	return opp
}

package arbitrage

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/constraints"
	"github.com/mselser95/prediction-arb/pkg/types"
)

// EvaluateViolation converts a logical-constraint violation into an
// opportunity. For superset violations the play is buying YES on the
// later (underpriced) market and NO on the earlier (overpriced) one, so
// the later market carries the venue id and URL columns.
func (e *Evaluator) EvaluateViolation(v constraints.Violation) *Opportunity {
	if len(v.Markets) == 0 {
		return nil
	}
	if v.ProfitCents < e.minProfitCents {
		rejectedTotal.WithLabelValues("below_min_profit").Inc()
		return nil
	}

	opp := newOpportunity(LogicalType(string(v.Constraint.Kind), v.Venue))
	opp.Strategy = v.Strategy
	opp.ProfitCents = v.ProfitCents
	opp.SourceA = string(v.Venue)
	opp.SourceB = string(v.Venue)

	switch v.Constraint.Kind {
	case constraints.KindSuperset:
		if len(v.Markets) != 2 {
			return nil
		}
		earlier, later := v.Markets[0], v.Markets[1]
		opp.MarketPair = truncate(earlier.Title+" / "+later.Title, 200)
		opp.PriceA = v.Prices[earlier.ID]
		opp.PriceB = v.Prices[later.ID]
		// Later YES plus earlier NO at its complement.
		opp.TotalCost = v.Prices[later.ID] + (1 - v.Prices[earlier.ID])
		if v.Venue == types.VenuePolymarket {
			opp.PolyMarket = later.Title
			opp.PolyMarketID = later.ID
		} else {
			opp.KalshiMarket = later.Title
			opp.KalshiTicker = later.ID
		}
		opp.URL = later.URL()

	default:
		opp.MarketPair = truncate(v.Constraint.Description, 200)
		if opp.MarketPair == "" {
			opp.MarketPair = truncate(strings.Join(v.Constraint.MarketIDs, " + "), 200)
		}
		opp.PriceA = v.Amount + 1.0 // the summed YES asks
		opp.TotalCost = v.Amount + 1.0
		first := v.Markets[0]
		if v.Venue == types.VenuePolymarket {
			opp.PolyMarket = first.Title
			opp.PolyMarketID = first.ID
		} else {
			opp.KalshiMarket = first.Title
			opp.KalshiTicker = first.ID
		}
		opp.URL = first.URL()
	}

	e.logger.Info("logical-constraint-arbitrage",
		zap.String("type", string(opp.Type)),
		zap.String("strategy", opp.Strategy),
		zap.String("market", opp.MarketPair),
		zap.Float64("profit-cents", opp.ProfitCents),
	)
	detectedTotal.WithLabelValues(string(opp.Type)).Inc()
	profitCents.Observe(opp.ProfitCents)
	return opp
}

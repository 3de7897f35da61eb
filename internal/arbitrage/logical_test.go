package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/prediction-arb/internal/constraints"
	"github.com/mselser95/prediction-arb/pkg/types"
)

func TestEvaluateViolation_Superset(t *testing.T) {
	e := newTestEvaluator(t, 1.0)

	earlier := types.Market{Venue: types.VenueKalshi, ID: "RATECUT-26MAR", Title: "Fed rate cut by March 2026?"}
	later := types.Market{Venue: types.VenueKalshi, ID: "RATECUT-26JUN", Title: "Fed rate cut by June 2026?"}

	v := constraints.Violation{
		Constraint: constraints.Constraint{
			Kind:      constraints.KindSuperset,
			MarketIDs: []string{earlier.ID, later.ID},
			Operator:  "<=",
			Tolerance: constraints.SupersetTolerance,
		},
		Venue:       types.VenueKalshi,
		Markets:     []types.Market{earlier, later},
		Prices:      map[string]float64{earlier.ID: 0.30, later.ID: 0.22},
		Amount:      0.08,
		Strategy:    "buy_later_yes_buy_earlier_no",
		ProfitCents: 5.0,
	}

	opp := e.EvaluateViolation(v)
	require.NotNil(t, opp)
	assert.Equal(t, ArbType("logical_superset_kalshi"), opp.Type)
	assert.Equal(t, "buy_later_yes_buy_earlier_no", opp.Strategy)
	assert.Equal(t, "Fed rate cut by March 2026? / Fed rate cut by June 2026?", opp.MarketPair)
	assert.InDelta(t, 0.30, opp.PriceA, 1e-9)
	assert.InDelta(t, 0.22, opp.PriceB, 1e-9)
	assert.InDelta(t, 0.92, opp.TotalCost, 1e-9)
	assert.InDelta(t, 5.0, opp.ProfitCents, 1e-9)
	// The buy-YES leg is the later market.
	assert.Equal(t, "RATECUT-26JUN", opp.KalshiTicker)
	assert.Equal(t, "Fed rate cut by June 2026?", opp.KalshiMarket)
	assert.Equal(t, "https://kalshi.com/markets/RATECUT-26JUN", opp.URL)
	assert.InDelta(t, 0.30, opp.KalshiPrice(), 1e-9)
	assert.Zero(t, opp.PolyPrice())
}

func TestEvaluateViolation_MutualExclusion(t *testing.T) {
	e := newTestEvaluator(t, 1.0)

	a := types.Market{Venue: types.VenuePolymarket, ID: "0xa", Title: "Will Smith win?", Slug: "smith-wins"}
	b := types.Market{Venue: types.VenuePolymarket, ID: "0xb", Title: "Will Jones win?", Slug: "jones-wins"}

	v := constraints.Violation{
		Constraint: constraints.Constraint{
			Kind:        constraints.KindMutualExclusion,
			MarketIDs:   []string{a.ID, b.ID},
			Tolerance:   constraints.SupersetTolerance,
			Description: "at most one nominee wins",
		},
		Venue:       types.VenuePolymarket,
		Markets:     []types.Market{a, b},
		Prices:      map[string]float64{a.ID: 0.60, b.ID: 0.55},
		Amount:      0.15,
		Strategy:    "buy_all_no_positions",
		ProfitCents: 12.0,
	}

	opp := e.EvaluateViolation(v)
	require.NotNil(t, opp)
	assert.Equal(t, ArbType("logical_mutual_exclusion_polymarket"), opp.Type)
	assert.Equal(t, "buy_all_no_positions", opp.Strategy)
	assert.Equal(t, "at most one nominee wins", opp.MarketPair)
	assert.InDelta(t, 1.15, opp.PriceA, 1e-9)
	assert.InDelta(t, 1.15, opp.TotalCost, 1e-9)
	assert.Equal(t, "0xa", opp.PolyMarketID)
	assert.Equal(t, "https://polymarket.com/event/smith-wins", opp.URL)
}

func TestEvaluateViolation_Skips(t *testing.T) {
	e := newTestEvaluator(t, 1.0)

	assert.Nil(t, e.EvaluateViolation(constraints.Violation{}))

	m := types.Market{Venue: types.VenueKalshi, ID: "X", Title: "X?"}
	belowFloor := constraints.Violation{
		Constraint:  constraints.Constraint{Kind: constraints.KindSuperset, MarketIDs: []string{"X", "Y"}},
		Venue:       types.VenueKalshi,
		Markets:     []types.Market{m, m},
		Prices:      map[string]float64{"X": 0.30, "Y": 0.28},
		ProfitCents: 0.5,
	}
	assert.Nil(t, e.EvaluateViolation(belowFloor))
}

package arbitrage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mselser95/prediction-arb/pkg/types"
)

// ArbType classifies how an opportunity makes its riskless profit.
type ArbType string

const (
	TypeCrossExchange   ArbType = "cross_exchange"
	TypeIntraPolymarket ArbType = "intra_polymarket"
	TypeIntraKalshi     ArbType = "intra_kalshi"
	TypeMultiOutcome    ArbType = "multi_outcome"
	TypeSpotLag         ArbType = "spot_lag"
)

// LogicalType builds the arb type for a constraint violation, e.g.
// logical_superset_polymarket.
func LogicalType(kind string, venue types.Venue) ArbType {
	return ArbType("logical_" + kind + "_" + string(venue))
}

// Opportunity is an immutable record of one detected arbitrage. PriceA and
// PriceB are the two legs' prices with their venues in SourceA/SourceB;
// venue-keyed views for the CSV log and dashboard are derived, never
// stored twice.
type Opportunity struct {
	ID           string
	Timestamp    time.Time
	Type         ArbType
	MarketPair   string
	PolyMarket   string
	KalshiMarket string
	Strategy     string
	PriceA       float64
	PriceB       float64
	SourceA      string
	SourceB      string
	TotalCost    float64
	ProfitCents  float64
	PolyMarketID string
	KalshiTicker string
	URL          string
}

func newOpportunity(arbType ArbType) *Opportunity {
	return &Opportunity{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      arbType,
	}
}

// PolyPrice returns the Polymarket-side leg price, 0 when no leg trades
// there.
func (o *Opportunity) PolyPrice() float64 {
	if o.SourceA == string(types.VenuePolymarket) {
		return o.PriceA
	}
	if o.SourceB == string(types.VenuePolymarket) {
		return o.PriceB
	}
	return 0
}

// KalshiPrice returns the Kalshi-side leg price, 0 when no leg trades
// there.
func (o *Opportunity) KalshiPrice() float64 {
	if o.SourceA == string(types.VenueKalshi) {
		return o.PriceA
	}
	if o.SourceB == string(types.VenueKalshi) {
		return o.PriceB
	}
	return 0
}

// Record converts the opportunity to its dashboard-facing shape.
func (o *Opportunity) Record() types.OpportunityRecord {
	return types.OpportunityRecord{
		Timestamp:   o.Timestamp.Format(time.RFC3339),
		ArbType:     string(o.Type),
		Market:      o.MarketPair,
		Strategy:    o.Strategy,
		ProfitCents: o.ProfitCents,
		PolyPrice:   o.PolyPrice(),
		KalshiPrice: o.KalshiPrice(),
		URL:         o.URL,
	}
}

// String renders a one-line summary for console sinks.
func (o *Opportunity) String() string {
	return fmt.Sprintf("[%s] %s | %s | profit %.2f¢",
		o.Type, o.MarketPair, o.Strategy, o.ProfitCents)
}

// truncate keeps market descriptions bounded for storage.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

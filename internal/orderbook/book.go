package orderbook

import (
	"strconv"
)

// Book is the normalized orderbook for one market. Asks are fractional
// dollars in (0, 1]; a zero side means the venue returned no liquidity.
// The evaluator only ever sees this shape.
type Book struct {
	MarketID string
	YesAsk   float64
	NoAsk    float64
	Outcomes []OutcomePrice // populated for categorical markets
}

// OutcomePrice is one priced outcome of a categorical market.
type OutcomePrice struct {
	Label   string
	TokenID string
	Ask     float64
}

// Complete reports whether both binary sides are priced.
func (b *Book) Complete() bool {
	return b != nil && b.YesAsk > 0 && b.NoAsk > 0
}

// Level is a single price level from the Polymarket CLOB, which quotes
// prices and sizes as decimal strings.
type Level struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BestAsk returns the lowest parseable ask price from CLOB levels, or 0.
func BestAsk(levels []Level) float64 {
	best := 0.0
	for _, lvl := range levels {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		if best == 0 || price < best {
			best = price
		}
	}
	return best
}

// BestBid returns the highest parseable bid price from CLOB levels, or 0.
func BestBid(levels []Level) float64 {
	best := 0.0
	for _, lvl := range levels {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		if price > best {
			best = price
		}
	}
	return best
}

// BestBidCents returns the best bid from a Kalshi ladder in integer cents.
// Ladders arrive as [[price_cents, size], ...] sorted ascending, so the
// best bid is the LAST element. Returns 0 for an empty or malformed ladder.
func BestBidCents(ladder [][]float64) float64 {
	if len(ladder) == 0 {
		return 0
	}
	last := ladder[len(ladder)-1]
	if len(last) == 0 {
		return 0
	}
	return last[0]
}

// AsksFromBidCents derives fractional asks from best bids in cents:
// the ask for one side is what remains after the opposite side's bid,
// yes_ask = (100 - best_no_bid)/100 and no_ask = (100 - best_yes_bid)/100.
func AsksFromBidCents(yesBidCents, noBidCents float64) (yesAsk, noAsk float64) {
	yesAsk = (100 - noBidCents) / 100.0
	noAsk = (100 - yesBidCents) / 100.0
	return yesAsk, noAsk
}

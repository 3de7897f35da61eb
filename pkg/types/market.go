package types

// Venue identifies a prediction-market venue.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// Market is the normalized market shape shared by all venues.
// Identity is (Venue, ID): the Polymarket condition id or the Kalshi ticker.
type Market struct {
	Venue    Venue
	ID       string
	Title    string
	Subtitle string // Kalshi only; carries the threshold phrase for crypto series
	EventID  string
	Category string
	Slug     string // Polymarket only; used to build event URLs
	Active   bool
	Outcomes []OutcomeToken

	// Market-level quotes in integer cents, 0 when the venue does not
	// publish them (Kalshi lists carry these; Polymarket does not).
	YesAskCents int
	NoAskCents  int
}

// OutcomeToken is one outcome of a market with its venue-local token id.
type OutcomeToken struct {
	TokenID string
	Label   string // "Yes", "No", or a categorical outcome name
}

// IsBinary reports whether the market has exactly two outcomes.
func (m *Market) IsBinary() bool {
	if m.Venue == VenueKalshi {
		return true
	}
	return len(m.Outcomes) == 2
}

// IsCategorical reports whether the market has three or more outcomes.
func (m *Market) IsCategorical() bool {
	return len(m.Outcomes) >= 3
}

// OutcomeByLabel returns the token for an outcome label.
// Matching is tolerant of YES/Yes and NO/No casing.
func (m *Market) OutcomeByLabel(label string) *OutcomeToken {
	for i := range m.Outcomes {
		have := m.Outcomes[i].Label
		if have == label ||
			(label == "YES" && have == "Yes") ||
			(label == "NO" && have == "No") {
			return &m.Outcomes[i]
		}
	}
	return nil
}

// URL returns the public page for the market, or "" when unknown.
func (m *Market) URL() string {
	switch m.Venue {
	case VenueKalshi:
		if m.ID == "" {
			return ""
		}
		return "https://kalshi.com/markets/" + m.ID
	case VenuePolymarket:
		if m.Slug == "" {
			return ""
		}
		return "https://polymarket.com/event/" + m.Slug
	}
	return ""
}

// MarketFilter narrows a venue market listing.
type MarketFilter struct {
	Status          string // venue-specific status value, e.g. "open"
	Limit           int
	SeriesTicker    string // Kalshi series filter (KXBTC, KXETH, KXSOL)
	ExcludeCategory string // drop markets whose category matches (case-insensitive)
}

// Quote is a best bid/ask pair in fractional dollars. A zero side means
// the venue returned no liquidity for it.
type Quote struct {
	Bid float64
	Ask float64
}

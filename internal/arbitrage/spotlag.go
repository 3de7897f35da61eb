package arbitrage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mselser95/prediction-arb/pkg/types"
)

// Spot-lag gates. A market is only interesting when the spot price sits
// close enough to the strike that the outcome is genuinely live, yet the
// YES price still claims near-certainty the other way.
const (
	// MispricingThreshold is how far a YES price must sit from the
	// spot-implied outcome before it counts as lagging.
	MispricingThreshold = 0.15

	// ProximityBand is the max relative distance between spot and strike
	// for the predicate to arm at all.
	ProximityBand = 0.05
)

// SpotThreshold is a strike condition parsed from market text.
type SpotThreshold struct {
	Direction string // above, below, bracket
	Value     float64
	Low       float64
	High      float64
}

var (
	aboveRe   = regexp.MustCompile(`^\$?([\d.]+)\s+or above`)
	belowRe   = regexp.MustCompile(`^\$?([\d.]+)\s+or below`)
	bracketRe = regexp.MustCompile(`^\$?([\d.]+)\s+to\s+\$?([\d.]+)`)
	dollarRe  = regexp.MustCompile(`\$(\d[\d,]*(?:\.\d+)?)`)

	aboveWords = []string{"ABOVE", "OVER", "EXCEED", "REACH", "HIT", "CROSS"}
	belowWords = []string{"BELOW", "UNDER", "DROP", "FALL"}

	tickerCoins = []struct {
		prefix string
		coin   string
	}{
		{"KXBTC", "BTC"},
		{"KXETH", "ETH"},
		{"KXSOL", "SOL"},
	}

	titleCoins = []struct {
		coin     string
		keywords []string
	}{
		{"BTC", []string{"BITCOIN", "BTC"}},
		{"ETH", []string{"ETHEREUM", "ETH"}},
		{"SOL", []string{"SOLANA", "SOL"}},
	}

	coinWordRes = map[string]*regexp.Regexp{}
)

func init() {
	for _, tc := range titleCoins {
		for _, kw := range tc.keywords {
			coinWordRes[kw] = regexp.MustCompile(`\b` + kw + `\b`)
		}
	}
}

// String re-emits the threshold in subtitle form. Parsing the result
// yields an equal value.
func (t SpotThreshold) String() string {
	switch t.Direction {
	case "above":
		return "$" + formatStrike(t.Value) + " or above"
	case "below":
		return "$" + formatStrike(t.Value) + " or below"
	case "bracket":
		return "$" + formatStrike(t.Low) + " to $" + formatStrike(t.High)
	}
	return ""
}

func formatStrike(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseKalshiSubtitle parses a strike condition from a Kalshi subtitle,
// e.g. "$101,000 or above" or "$95,000 to $99,999.99". Commas are stripped
// before matching.
func ParseKalshiSubtitle(subtitle string) (SpotThreshold, bool) {
	s := strings.ReplaceAll(subtitle, ",", "")

	if m := aboveRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return SpotThreshold{Direction: "above", Value: v}, true
		}
	}
	if m := belowRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return SpotThreshold{Direction: "below", Value: v}, true
		}
	}
	if m := bracketRe.FindStringSubmatch(s); m != nil {
		low, err1 := strconv.ParseFloat(m[1], 64)
		high, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return SpotThreshold{Direction: "bracket", Low: low, High: high}, true
		}
	}
	return SpotThreshold{}, false
}

// ExtractThreshold pulls the strike from a Polymarket title: the largest
// dollar amount mentioned, commas stripped.
func ExtractThreshold(title string) (float64, bool) {
	matches := dollarRe.FindAllStringSubmatch(title, -1)
	if len(matches) == 0 {
		return 0, false
	}
	best := 0.0
	found := false
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// TitleDirection classifies a Polymarket title as an above or below
// market. Upward words win; a title with neither defaults to above, since
// "will X reach" phrasings dominate.
func TitleDirection(title string) string {
	upper := strings.ToUpper(title)
	for _, w := range aboveWords {
		if strings.Contains(upper, w) {
			return "above"
		}
	}
	for _, w := range belowWords {
		if strings.Contains(upper, w) {
			return "below"
		}
	}
	return "above"
}

// CoinFromTicker maps a Kalshi crypto series ticker to its asset symbol.
func CoinFromTicker(ticker string) (string, bool) {
	for _, tc := range tickerCoins {
		if strings.HasPrefix(ticker, tc.prefix) {
			return tc.coin, true
		}
	}
	return "", false
}

// IdentifyCoin finds the crypto asset a Polymarket title is about, using
// whole-word matches so "solana" never fires on "solar".
func IdentifyCoin(title string) (string, bool) {
	upper := strings.ToUpper(title)
	for _, tc := range titleCoins {
		for _, kw := range tc.keywords {
			if coinWordRes[kw].MatchString(upper) {
				return tc.coin, true
			}
		}
	}
	return "", false
}

// nearThreshold is the proximity gate: relative distance within
// ProximityBand.
func nearThreshold(spot, threshold float64) bool {
	if threshold == 0 {
		return false
	}
	return abs(spot-threshold)/threshold <= ProximityBand
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// EvaluateSpotLagKalshi checks one Kalshi crypto market against spot. The
// YES price must contradict the spot-implied outcome by more than the
// mispricing threshold while spot sits inside the proximity band.
func (e *Evaluator) EvaluateSpotLagKalshi(m types.Market, coin string, spot, yesAsk float64) *Opportunity {
	parsed, ok := ParseKalshiSubtitle(m.Subtitle)
	if !ok || spot <= 0 || yesAsk <= 0 {
		return nil
	}

	name := m.Title
	if m.Subtitle != "" {
		name = m.Title + " - " + m.Subtitle
	}

	switch parsed.Direction {
	case "above":
		if !nearThreshold(spot, parsed.Value) {
			return nil
		}
		if spot >= parsed.Value && yesAsk < MispricingThreshold {
			return e.spotLagOpp(m, types.VenueKalshi, coin, "BUY YES", name, spot, parsed.Value, yesAsk)
		}
		if spot < parsed.Value && yesAsk > 1-MispricingThreshold {
			return e.spotLagOpp(m, types.VenueKalshi, coin, "BUY NO", name, spot, parsed.Value, yesAsk)
		}
	case "below":
		if !nearThreshold(spot, parsed.Value) {
			return nil
		}
		if spot <= parsed.Value && yesAsk < MispricingThreshold {
			return e.spotLagOpp(m, types.VenueKalshi, coin, "BUY YES", name, spot, parsed.Value, yesAsk)
		}
		if spot > parsed.Value && yesAsk > 1-MispricingThreshold {
			return e.spotLagOpp(m, types.VenueKalshi, coin, "BUY NO", name, spot, parsed.Value, yesAsk)
		}
	case "bracket":
		if !nearThreshold(spot, parsed.Low) && !nearThreshold(spot, parsed.High) {
			return nil
		}
		inside := parsed.Low <= spot && spot <= parsed.High
		if inside && yesAsk < MispricingThreshold {
			return e.spotLagOpp(m, types.VenueKalshi, coin, "BUY YES", name, spot, parsed.Low, yesAsk)
		}
		if !inside && yesAsk > 1-MispricingThreshold {
			return e.spotLagOpp(m, types.VenueKalshi, coin, "BUY NO", name, spot, parsed.Low, yesAsk)
		}
	}
	return nil
}

// EvaluateSpotLagPoly checks one Polymarket crypto market against spot.
// The strike comes from the title; above markets use strict comparison
// because "reach $X" resolves on touching, so equality is not a lag.
func (e *Evaluator) EvaluateSpotLagPoly(m types.Market, coin string, spot, yesAsk float64) *Opportunity {
	threshold, ok := ExtractThreshold(m.Title)
	if !ok || spot <= 0 || yesAsk <= 0 {
		return nil
	}
	if !nearThreshold(spot, threshold) {
		return nil
	}

	if TitleDirection(m.Title) == "above" {
		if spot > threshold && yesAsk < MispricingThreshold {
			return e.spotLagOpp(m, types.VenuePolymarket, coin, "BUY YES", m.Title, spot, threshold, yesAsk)
		}
		if spot < threshold && yesAsk > 1-MispricingThreshold {
			return e.spotLagOpp(m, types.VenuePolymarket, coin, "BUY NO", m.Title, spot, threshold, yesAsk)
		}
		return nil
	}

	if spot < threshold && yesAsk < MispricingThreshold {
		return e.spotLagOpp(m, types.VenuePolymarket, coin, "BUY YES", m.Title, spot, threshold, yesAsk)
	}
	if spot > threshold && yesAsk > 1-MispricingThreshold {
		return e.spotLagOpp(m, types.VenuePolymarket, coin, "BUY NO", m.Title, spot, threshold, yesAsk)
	}
	return nil
}

func (e *Evaluator) spotLagOpp(m types.Market, venue types.Venue, coin, side, name string, spot, threshold, yesAsk float64) *Opportunity {
	profit := yesAsk * 100
	if side == "BUY YES" {
		profit = (1 - yesAsk) * 100
	}

	opp := newOpportunity(TypeSpotLag)
	opp.MarketPair = truncate(name, 200)
	opp.Strategy = fmt.Sprintf("%s (%s $%s vs $%s)", side, coin, formatUSD(spot), formatUSD(threshold))
	opp.PriceA = yesAsk
	opp.SourceA = string(venue)
	opp.TotalCost = yesAsk
	opp.ProfitCents = profit
	opp.URL = m.URL()
	if venue == types.VenueKalshi {
		opp.KalshiMarket = m.Title
		opp.KalshiTicker = m.ID
	} else {
		opp.PolyMarket = m.Title
		opp.PolyMarketID = m.ID
	}

	detectedTotal.WithLabelValues(string(TypeSpotLag)).Inc()
	profitCents.Observe(profit)
	return opp
}

// formatUSD renders a price with thousands separators and no decimals,
// matching the strategy strings operators grep for.
func formatUSD(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

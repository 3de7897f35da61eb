package constraints

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/types"
)

const (
	// SupersetTolerance is the slack allowed before a temporal-superset
	// inversion counts as a violation.
	SupersetTolerance = 0.02

	// ConstraintFeeBuffer is subtracted from the violation amount when
	// estimating profit, covering fees on both legs.
	ConstraintFeeBuffer = 0.03

	// topicOverlapMin is the share of non-date tokens two titles must have
	// in common before they are treated as the same underlying question.
	topicOverlapMin = 0.6
)

// Kind classifies a logical relationship between markets on one venue.
type Kind string

const (
	KindSuperset        Kind = "superset"
	KindImplication     Kind = "implication"
	KindMutualExclusion Kind = "mutual_exclusion"
	KindPartition       Kind = "partition"
)

// Constraint ties an ordered list of same-venue market ids to a pricing
// rule. For superset the order is (earlier-dated, later-dated) and the
// rule is P(earlier) <= P(later).
type Constraint struct {
	Kind        Kind
	MarketIDs   []string
	Operator    string
	Tolerance   float64
	Description string
}

// Violation is a constraint the current YES asks break, together with the
// play that profits from it.
type Violation struct {
	Constraint  Constraint
	Venue       types.Venue
	Markets     []types.Market // same order as Constraint.MarketIDs
	Prices      map[string]float64
	Amount      float64
	Strategy    string
	ProfitCents float64
}

// Detector mines temporal-superset constraints from market titles and
// checks them, plus any statically configured constraints, against
// current prices. Date parsing is memoized per title.
type Detector struct {
	minProfitCents float64
	logger         *zap.Logger
	now            func() time.Time

	mu         sync.Mutex
	dates      map[string]time.Time // zero value marks a known unparseable title
	configured []Constraint
}

// Config holds detector configuration.
type Config struct {
	MinProfitCents float64
	Logger         *zap.Logger
}

// New creates a Detector.
func New(cfg *Config) (*Detector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MinProfitCents < 0 {
		return nil, fmt.Errorf("min profit cents cannot be negative")
	}
	return &Detector{
		minProfitCents: cfg.MinProfitCents,
		logger:         cfg.Logger,
		now:            time.Now,
		dates:          make(map[string]time.Time),
	}, nil
}

// AddConstraint registers a statically configured constraint, e.g. a
// known mutual-exclusion set, evaluated on every Scan.
func (d *Detector) AddConstraint(c Constraint) {
	d.mu.Lock()
	d.configured = append(d.configured, c)
	d.mu.Unlock()
}

var (
	byMonthYearRe = regexp.MustCompile(`by\s+([a-z]+)\s+(\d{4})`)
	byMonthDayRe  = regexp.MustCompile(`by\s+([a-z]+)\s+(\d{1,2})`)
	inYearRe      = regexp.MustCompile(`in\s+(\d{4})`)
	byQuarterRe   = regexp.MustCompile(`by\s+q([1-4])\s+(\d{4})`)

	datePhraseRe   = regexp.MustCompile(`by\s+\w+\s+\d{1,4}`)
	inYearPhraseRe = regexp.MustCompile(`in\s+\d{4}`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseTitleDate extracts a deadline from a market title. Patterns are
// tried in a fixed order and the first one that parses wins:
//
//	"by March 2026"  -> first of that month
//	"by June 1"      -> that day in the current or next year
//	"in 2026"        -> end of year
//	"by Q2 2026"     -> first day of the quarter's final month
func (d *Detector) ParseTitleDate(title string) (time.Time, bool) {
	d.mu.Lock()
	if cached, ok := d.dates[title]; ok {
		d.mu.Unlock()
		return cached, !cached.IsZero()
	}
	d.mu.Unlock()

	parsed := d.parseTitleDate(strings.ToLower(title))

	d.mu.Lock()
	d.dates[title] = parsed
	d.mu.Unlock()
	return parsed, !parsed.IsZero()
}

func (d *Detector) parseTitleDate(title string) time.Time {
	if m := byMonthYearRe.FindStringSubmatch(title); m != nil {
		if month, ok := monthsByName[m[1]]; ok {
			year, err := strconv.Atoi(m[2])
			if err == nil {
				return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			}
		}
	}

	if m := byMonthDayRe.FindStringSubmatch(title); m != nil {
		if month, ok := monthsByName[m[1]]; ok {
			day, err := strconv.Atoi(m[2])
			if err == nil && day >= 1 && day <= 31 {
				now := d.now()
				dt := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
				// Rejects day overflow like June 31 normalizing into July.
				if dt.Month() == month {
					if dt.Before(now) {
						dt = dt.AddDate(1, 0, 0)
					}
					return dt
				}
			}
		}
	}

	if m := inYearRe.FindStringSubmatch(title); m != nil {
		year, err := strconv.Atoi(m[1])
		if err == nil {
			return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		}
	}

	if m := byQuarterRe.FindStringSubmatch(title); m != nil {
		quarter, err1 := strconv.Atoi(m[1])
		year, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			month := time.Month(quarter * 3)
			return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	return time.Time{}
}

// stripDatePhrases removes the deadline wording so only the base question
// remains for topic comparison.
func stripDatePhrases(title string) string {
	s := datePhraseRe.ReplaceAllString(title, "")
	s = inYearPhraseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// topicOverlap is the share of distinct shared tokens over the longer
// token list, after date phrases are removed.
func topicOverlap(a, b string) float64 {
	ta := strings.Fields(stripDatePhrases(a))
	tb := strings.Fields(stripDatePhrases(b))

	inA := make(map[string]struct{}, len(ta))
	for _, tok := range ta {
		inA[tok] = struct{}{}
	}
	shared := 0
	counted := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		if _, ok := inA[tok]; !ok {
			continue
		}
		if _, dup := counted[tok]; dup {
			continue
		}
		counted[tok] = struct{}{}
		shared++
	}

	den := len(ta)
	if len(tb) > den {
		den = len(tb)
	}
	if den < 1 {
		den = 1
	}
	return float64(shared) / float64(den)
}

type datedMarket struct {
	market types.Market
	date   time.Time
}

// FindTemporalSupersets mines superset constraints from one venue's
// markets: two dated titles on the same topic order into
// (earlier, later) with P(earlier) <= P(later), because the later
// deadline covers every way the earlier one resolves YES.
func (d *Detector) FindTemporalSupersets(markets []types.Market) []Constraint {
	var dated []datedMarket
	for _, m := range markets {
		if dt, ok := d.ParseTitleDate(m.Title); ok {
			dated = append(dated, datedMarket{market: m, date: dt})
		}
	}

	var constraints []Constraint
	for i := 0; i < len(dated); i++ {
		for j := i + 1; j < len(dated); j++ {
			a, b := dated[i], dated[j]
			overlap := topicOverlap(strings.ToLower(a.market.Title), strings.ToLower(b.market.Title))
			if overlap <= topicOverlapMin {
				continue
			}

			var earlier, later datedMarket
			switch {
			case a.date.Before(b.date):
				earlier, later = a, b
			case b.date.Before(a.date):
				earlier, later = b, a
			default:
				continue
			}

			constraints = append(constraints, Constraint{
				Kind:      KindSuperset,
				MarketIDs: []string{earlier.market.ID, later.market.ID},
				Operator:  "<=",
				Tolerance: SupersetTolerance,
				Description: fmt.Sprintf("earlier date (%s) must be <= later date (%s)",
					earlier.date.Format("Jan 2006"), later.date.Format("Jan 2006")),
			})
			minedTotal.WithLabelValues(string(KindSuperset)).Inc()
		}
	}
	return constraints
}

// DetectViolations checks constraints against current YES asks. Markets
// missing a price skip superset checks and count as zero in exclusion
// sums. Violations below the profit floor are dropped.
func (d *Detector) DetectViolations(cs []Constraint, prices map[string]float64, byID map[string]types.Market) []Violation {
	var violations []Violation
	for _, c := range cs {
		switch c.Kind {
		case KindSuperset:
			if v, ok := d.checkSuperset(c, prices, byID); ok {
				violations = append(violations, v)
			}
		case KindMutualExclusion:
			if v, ok := d.checkExclusion(c, prices, byID); ok {
				violations = append(violations, v)
			}
		}
	}
	return violations
}

func (d *Detector) checkSuperset(c Constraint, prices map[string]float64, byID map[string]types.Market) (Violation, bool) {
	if len(c.MarketIDs) != 2 {
		return Violation{}, false
	}
	earlierID, laterID := c.MarketIDs[0], c.MarketIDs[1]
	earlier, okE := prices[earlierID]
	later, okL := prices[laterID]
	if !okE || !okL {
		return Violation{}, false
	}
	if earlier <= later+c.Tolerance {
		return Violation{}, false
	}

	amount := earlier - later
	profit := (amount - ConstraintFeeBuffer) * 100
	if profit < d.minProfitCents {
		return Violation{}, false
	}

	violationsTotal.WithLabelValues(string(KindSuperset)).Inc()
	d.logger.Info("temporal-superset-violation",
		zap.String("earlier", earlierID),
		zap.String("later", laterID),
		zap.Float64("earlier-price", earlier),
		zap.Float64("later-price", later),
		zap.Float64("profit-cents", profit),
	)
	return Violation{
		Constraint:  c,
		Venue:       byID[earlierID].Venue,
		Markets:     []types.Market{byID[earlierID], byID[laterID]},
		Prices:      map[string]float64{earlierID: earlier, laterID: later},
		Amount:      amount,
		Strategy:    "buy_later_yes_buy_earlier_no",
		ProfitCents: profit,
	}, true
}

func (d *Detector) checkExclusion(c Constraint, prices map[string]float64, byID map[string]types.Market) (Violation, bool) {
	total := 0.0
	for _, id := range c.MarketIDs {
		total += prices[id]
	}
	if total <= 1.0+c.Tolerance {
		return Violation{}, false
	}

	amount := total - 1.0
	profit := (amount - ConstraintFeeBuffer) * 100
	if profit < d.minProfitCents {
		return Violation{}, false
	}

	markets := make([]types.Market, 0, len(c.MarketIDs))
	got := make(map[string]float64, len(c.MarketIDs))
	var venue types.Venue
	for _, id := range c.MarketIDs {
		m, ok := byID[id]
		if ok {
			markets = append(markets, m)
			if venue == "" {
				venue = m.Venue
			}
		}
		got[id] = prices[id]
	}

	violationsTotal.WithLabelValues(string(KindMutualExclusion)).Inc()
	d.logger.Info("mutual-exclusion-violation",
		zap.Strings("markets", c.MarketIDs),
		zap.Float64("total", total),
		zap.Float64("profit-cents", profit),
	)
	return Violation{
		Constraint:  c,
		Venue:       venue,
		Markets:     markets,
		Prices:      got,
		Amount:      amount,
		Strategy:    "buy_all_no_positions",
		ProfitCents: profit,
	}, true
}

// Constraints returns the venue's active constraint set: supersets mined
// from the given markets plus any configured constraints. Callers that
// must fetch prices can use it to price only the constrained ids.
func (d *Detector) Constraints(markets []types.Market) []Constraint {
	cs := d.FindTemporalSupersets(markets)
	d.mu.Lock()
	cs = append(cs, d.configured...)
	d.mu.Unlock()
	return cs
}

// Scan mines superset constraints from one venue's markets and evaluates
// them, plus any configured constraints, against the given YES asks.
func (d *Detector) Scan(markets []types.Market, prices map[string]float64) []Violation {
	byID := make(map[string]types.Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}
	return d.DetectViolations(d.Constraints(markets), prices, byID)
}

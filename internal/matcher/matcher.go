package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/cache"
	"github.com/mselser95/prediction-arb/pkg/types"
)

// Cascade thresholds. The fuzzy tiers run cheap-first; the semantic tier
// is a last resort and only exists when an embedder is configured.
const (
	fuzzyThreshold    = 70
	partialThreshold  = 75
	semanticThreshold = 0.85

	vectorTTL = 24 * time.Hour
)

// Pair is a matched market pair ready for cross-venue evaluation.
type Pair struct {
	Poly   types.Market
	Kalshi types.Market
	Method string
}

// Config holds matcher configuration. Embedder is optional; without it the
// cascade stops after the fuzzy tiers. Vectors is required when Embedder
// is set.
type Config struct {
	DB       *MatchDB
	Embedder Embedder
	Vectors  cache.Cache
	Logger   *zap.Logger
}

// Matcher maintains the venue-A to venue-B market mapping with a four-tier
// title-matching cascade backed by the persistent MatchDB.
type Matcher struct {
	db       *MatchDB
	embedder Embedder
	vectors  cache.Cache
	logger   *zap.Logger
}

// New creates a Matcher.
func New(cfg *Config) (*Matcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.DB == nil {
		return nil, fmt.Errorf("match db cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Embedder != nil && cfg.Vectors == nil {
		return nil, fmt.Errorf("vector cache cannot be nil when an embedder is set")
	}

	return &Matcher{
		db:       cfg.DB,
		embedder: cfg.Embedder,
		vectors:  cfg.Vectors,
		logger:   cfg.Logger,
	}, nil
}

// Pairs returns the tradeable pairs for this tick: cached matches whose
// counterpart is still live plus new matches found by the cascade. New
// venue-A ids that fail the cascade enter the known-unmatched set so they
// are not retried until the next sweep.
func (m *Matcher) Pairs(ctx context.Context, polys, kalshis []types.Market) []Pair {
	kalshiByID := make(map[string]types.Market, len(kalshis))
	for _, k := range kalshis {
		kalshiByID[k.ID] = k
	}

	var pairs []Pair
	for i := range polys {
		p := polys[i]

		if ticker, ok := m.db.Match(p.ID); ok {
			if k, live := kalshiByID[ticker]; live {
				pairs = append(pairs, Pair{Poly: p, Kalshi: k, Method: "cached"})
			}
			continue
		}
		if m.db.IsUnmatched(p.ID) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		k, method, found := m.findMatch(ctx, p.Title, kalshis)
		if !found {
			m.db.MarkUnmatched(p.ID)
			continue
		}
		if !m.db.SetMatch(p.ID, k.ID) {
			continue
		}

		matchesTotal.WithLabelValues(tierOf(method)).Inc()
		m.logger.Info("markets-matched",
			zap.String("poly-title", p.Title),
			zap.String("kalshi-ticker", k.ID),
			zap.String("method", method),
		)
		pairs = append(pairs, Pair{Poly: p, Kalshi: k, Method: method})
	}
	return pairs
}

// Rematch re-runs the cascade for every known-unmatched id against the
// current venue-B universe and stamps the sweep. Returns the number of
// promotions.
func (m *Matcher) Rematch(ctx context.Context, polys, kalshis []types.Market) int {
	titleByID := make(map[string]string, len(polys))
	for _, p := range polys {
		titleByID[p.ID] = p.Title
	}

	promoted := 0
	for _, id := range m.db.UnmatchedPoly() {
		title, live := titleByID[id]
		if !live || ctx.Err() != nil {
			continue
		}
		k, method, found := m.findMatch(ctx, title, kalshis)
		if !found {
			continue
		}
		if m.db.SetMatch(id, k.ID) {
			promoted++
			rematchPromotionsTotal.Inc()
			m.logger.Info("rematch-promoted-market",
				zap.String("poly-title", title),
				zap.String("kalshi-ticker", k.ID),
				zap.String("method", method),
			)
		}
	}

	m.db.CompleteSweep()
	return promoted
}

// ShouldRematch reports whether the periodic sweep is due.
func (m *Matcher) ShouldRematch(interval time.Duration) bool {
	return m.db.ShouldSweep(interval)
}

// Stats exposes the underlying cache counts.
func (m *Matcher) Stats() types.MatcherStats {
	return m.db.Stats()
}

// findMatch runs the cascade against every candidate not already claimed
// as a match value. The first accepted candidate wins.
func (m *Matcher) findMatch(ctx context.Context, polyTitle string, kalshis []types.Market) (types.Market, string, bool) {
	for i := range kalshis {
		k := kalshis[i]
		if m.db.IsValueUsed(k.ID) {
			continue
		}
		if method, ok := m.matchTitles(ctx, polyTitle, k.Title); ok {
			return k, method, true
		}
	}
	return types.Market{}, "", false
}

// matchTitles runs the four-tier cascade on one title pair and tags the
// accepting tier with its score.
func (m *Matcher) matchTitles(ctx context.Context, polyTitle, kalshiTitle string) (string, bool) {
	a := strings.ToLower(polyTitle)
	b := strings.ToLower(kalshiTitle)

	if score := fuzzy.TokenSortRatio(a, b); score >= fuzzyThreshold {
		return fmt.Sprintf("token_sort_%d", score), true
	}
	if score := fuzzy.TokenSetRatio(a, b); score >= fuzzyThreshold {
		return fmt.Sprintf("token_set_%d", score), true
	}
	if score := fuzzy.PartialRatio(a, b); score >= partialThreshold {
		return fmt.Sprintf("partial_%d", score), true
	}

	if m.embedder == nil {
		return "", false
	}
	va := m.embedding(ctx, a)
	vb := m.embedding(ctx, b)
	if va == nil || vb == nil {
		return "", false
	}
	if sim := cosine(va, vb); sim >= semanticThreshold {
		return fmt.Sprintf("semantic_%.2f", sim), true
	}
	return "", false
}

// embedding returns the cached vector for a title, computing and caching
// it on miss. Failures degrade to nil: the cascade simply loses its last
// tier for that pair.
func (m *Matcher) embedding(ctx context.Context, title string) []float64 {
	key := "emb:" + title
	if v, ok := m.vectors.Get(key); ok {
		if vec, isVec := v.([]float64); isVec {
			return vec
		}
	}

	vec, err := m.embedder.Embed(ctx, title)
	if err != nil {
		m.logger.Debug("embedding-failed",
			zap.String("title", title),
			zap.Error(err),
		)
		return nil
	}
	m.vectors.Set(key, vec, vectorTTL)
	return vec
}

// tierOf strips the score suffix from a method tag for metric labels.
func tierOf(method string) string {
	if idx := strings.LastIndex(method, "_"); idx > 0 {
		return method[:idx]
	}
	return method
}

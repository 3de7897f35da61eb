package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/internal/matcher"
	"github.com/mselser95/prediction-arb/pkg/cache"
	"github.com/mselser95/prediction-arb/pkg/config"
	"github.com/mselser95/prediction-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "Run the market-matching cascade once and print the pairs",
	Long: `Fetches open markets from both venues, runs the title-matching cascade
against the persistent match cache, and prints the resulting pairs.
The cache file is updated exactly as a scanner tick would update it.

The semantic tier only participates when OPENAI_API_KEY is set.`,
	RunE: runMatches,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(matchesCmd)
	matchesCmd.Flags().IntP("limit", "l", 200, "Maximum markets to fetch per venue")
}

func runMatches(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	limit, _ := cmd.Flags().GetInt("limit")

	polyClient, err := newPolymarketClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("create polymarket client: %w", err)
	}
	kalshiClient, err := newKalshiClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("create kalshi client: %w", err)
	}

	polys, err := polyClient.ListMarkets(ctx, types.MarketFilter{Limit: limit})
	if err != nil {
		return fmt.Errorf("fetch polymarket markets: %w", err)
	}
	kalshis, err := kalshiClient.ListMarkets(ctx, types.MarketFilter{
		Status:          "open",
		Limit:           limit,
		ExcludeCategory: "Sports",
	})
	if err != nil {
		return fmt.Errorf("fetch kalshi markets: %w", err)
	}
	fmt.Printf("Fetched %d polymarket and %d kalshi markets.\n\n", len(polys), len(kalshis))

	m, err := newMatcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create matcher: %w", err)
	}

	pairs := m.Pairs(ctx, polys, kalshis)
	if len(pairs) == 0 {
		fmt.Println("No matched pairs.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "POLYMARKET\tKALSHI\tMETHOD")
		fmt.Fprintln(w, "----------\t------\t------")
		for _, p := range pairs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(p.Poly.Title, 50), p.Kalshi.ID, p.Method)
		}
		_ = w.Flush()
	}

	stats := m.Stats()
	fmt.Printf("\nMatched: %d  Unmatched polymarket: %d  Unmatched kalshi: %d\n",
		stats.MatchedPairs, stats.UnmatchedPoly, stats.UnmatchedKalshi)
	return nil
}

// newMatcher builds the same cascade the scanner uses, semantic tier
// included when the key is present.
func newMatcher(cfg *config.Config, logger *zap.Logger) (*matcher.Matcher, error) {
	db, err := matcher.OpenDB(cfg.MatchCacheFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open match cache: %w", err)
	}
	vectors, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create vector cache: %w", err)
	}

	var embedder matcher.Embedder
	if cfg.OpenAIAPIKey != "" {
		openAI, err := matcher.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = openAI
	}

	return matcher.New(&matcher.Config{
		DB:       db,
		Embedder: embedder,
		Vectors:  vectors,
		Logger:   logger,
	})
}

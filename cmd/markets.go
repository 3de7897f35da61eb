package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mselser95/prediction-arb/pkg/config"
	"github.com/mselser95/prediction-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets <polymarket|kalshi>",
	Short: "List open markets from one venue",
	Long: `Fetches open markets from one venue and prints them, useful for
checking what the scanner would see without starting it.

Examples:
  prediction-arb markets polymarket --limit 10
  prediction-arb markets kalshi --series KXBTC`,
	Args: cobra.ExactArgs(1),
	RunE: runMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to fetch")
	marketsCmd.Flags().StringP("series", "s", "", "Kalshi series ticker filter, e.g. KXBTC")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	venue := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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
	series, _ := cmd.Flags().GetString("series")

	var markets []types.Market
	switch venue {
	case "polymarket":
		client, err := newPolymarketClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("create polymarket client: %w", err)
		}
		markets, err = client.ListMarkets(ctx, types.MarketFilter{Limit: limit})
		if err != nil {
			return fmt.Errorf("fetch polymarket markets: %w", err)
		}
	case "kalshi":
		client, err := newKalshiClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("create kalshi client: %w", err)
		}
		markets, err = client.ListMarkets(ctx, types.MarketFilter{
			Status:       "open",
			Limit:        limit,
			SeriesTicker: series,
		})
		if err != nil {
			return fmt.Errorf("fetch kalshi markets: %w", err)
		}
	default:
		return fmt.Errorf("unknown venue %q (want polymarket or kalshi)", venue)
	}

	if len(markets) == 0 {
		fmt.Println("No open markets found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tQUOTES")
	fmt.Fprintln(w, "--\t-----\t------")
	for i := range markets {
		m := &markets[i]
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, truncate(m.Title, 60), quoteSummary(m))
	}
	_ = w.Flush()

	fmt.Printf("\nTotal: %d markets\n", len(markets))
	return nil
}

// quoteSummary renders what the list response alone says about prices.
// Kalshi lists carry market-level asks; Polymarket lists only carry tokens.
func quoteSummary(m *types.Market) string {
	if m.Venue == types.VenueKalshi {
		if m.YesAskCents > 0 || m.NoAskCents > 0 {
			return fmt.Sprintf("yes %d / no %d cents", m.YesAskCents, m.NoAskCents)
		}
		return "no quotes"
	}
	return fmt.Sprintf("%d outcomes", len(m.Outcomes))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mselser95/prediction-arb/internal/orderbook"
	"github.com/mselser95/prediction-arb/pkg/config"
	"github.com/mselser95/prediction-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var orderbookCmd = &cobra.Command{
	Use:   "orderbook <polymarket|kalshi> <market-id>",
	Short: "Fetch one market's reduced orderbook",
	Long: `Fetches a market's orderbook and prints the YES/NO asks the evaluator
would see. For Polymarket the market id is the condition id; outcome
tokens are resolved through a discovery pass first. For Kalshi the
market id is the ticker.

Examples:
  prediction-arb orderbook kalshi KXBTC-25AUG29-T110000
  prediction-arb orderbook polymarket 0x1234abcd`,
	Args: cobra.ExactArgs(2),
	RunE: runOrderbook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(orderbookCmd)
	orderbookCmd.Flags().IntP("limit", "l", 200, "Polymarket discovery page size used to resolve outcome tokens")
}

func runOrderbook(cmd *cobra.Command, args []string) error {
	venue, marketID := args[0], args[1]
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

	var book *orderbook.Book
	switch venue {
	case "kalshi":
		client, err := newKalshiClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("create kalshi client: %w", err)
		}
		book, err = client.GetOrderbook(ctx, marketID)
		if err != nil {
			return fmt.Errorf("fetch orderbook: %w", err)
		}
	case "polymarket":
		client, err := newPolymarketClient(cfg, logger)
		if err != nil {
			return fmt.Errorf("create polymarket client: %w", err)
		}
		limit, _ := cmd.Flags().GetInt("limit")

		// Token ids only come from discovery, so resolve the market first.
		markets, err := client.ListMarkets(ctx, types.MarketFilter{Limit: limit})
		if err != nil {
			return fmt.Errorf("fetch polymarket markets: %w", err)
		}
		found := false
		for i := range markets {
			if markets[i].ID == marketID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("market %s is not among the first %d active markets", marketID, limit)
		}
		book, err = client.GetOrderbook(ctx, marketID)
		if err != nil {
			return fmt.Errorf("fetch orderbook: %w", err)
		}
	default:
		return fmt.Errorf("unknown venue %q (want polymarket or kalshi)", venue)
	}

	if book == nil {
		fmt.Println("No orderbook available for this market.")
		return nil
	}

	printBook(book)
	return nil
}

func printBook(book *orderbook.Book) {
	fmt.Printf("Market:  %s\n", book.MarketID)

	if len(book.Outcomes) > 0 {
		fmt.Println("Outcome asks:")
		sum := 0.0
		for _, o := range book.Outcomes {
			fmt.Printf("  %-40s %.4f\n", truncate(o.Label, 40), o.Ask)
			sum += o.Ask
		}
		fmt.Printf("Sum of asks: %.4f\n", sum)
		if sum > 0 && sum < 1.0 {
			fmt.Printf("Buying every outcome locks in %.2f cents per set before fees.\n", (1-sum)*100)
		}
		return
	}

	fmt.Printf("YES ask: %.4f\n", book.YesAsk)
	fmt.Printf("NO ask:  %.4f\n", book.NoAsk)
	if !book.Complete() {
		fmt.Println("At least one side has no liquidity.")
		return
	}
	sum := book.YesAsk + book.NoAsk
	fmt.Printf("Sum:     %.4f\n", sum)
	if sum < 1.0 {
		fmt.Printf("Buying both sides locks in %.2f cents per contract before fees.\n", (1-sum)*100)
	}
}

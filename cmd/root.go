package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "prediction-arb",
	Short: "Cross-venue prediction market arbitrage scanner",
	Long: `Cross-venue prediction market arbitrage scanner that samples Polymarket
and Kalshi, matches equivalent markets by title, and reports opportunities
whenever ask prices violate a no-arbitrage bound.

The scanner polls both venues plus Coinbase spot prices on a fixed interval,
logs every opportunity to CSV and the configured storage, and serves a live
dashboard with SSE and websocket feeds.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; deployments usually set the environment
		// directly.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

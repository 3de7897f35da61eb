package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/prediction-arb/internal/app"
	"github.com/mselser95/prediction-arb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage scanner",
	Long: `Starts the scanner, which will:
1. Fetch open markets from Polymarket and Kalshi plus Coinbase spot prices
2. Match equivalent markets across venues by title
3. Check every matched pair and crypto market against the no-arbitrage bounds
4. Log opportunities to CSV and storage and serve the live dashboard`,
	RunE: runScanner,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runScanner(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradeledger/configs"
	"tradeledger/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tool for the trade ledger service",
	Long: `ledgerctl runs maintenance and diagnostic tasks against the trade ledger.

It provides tools for:
  - Applying the Postgres schema
  - Issuing bearer tokens for testing
  - Inspecting quotes from the live feed or the generator
  - Running demo simulations against an in-memory ledger
  - Summarizing the settlement journal

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the service configuration and builds a console logger
func loadConfig() (*configs.Config, *zap.Logger, error) {
	cfg, err := configs.Load()
	if err != nil {
		return nil, nil, err
	}
	logCfg := cfg.Log
	logCfg.Encoding = "console"
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

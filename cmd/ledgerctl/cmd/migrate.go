package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradeledger/internal/database"
	"tradeledger/internal/infra"
)

var migratePrint bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the ledger schema to the database named by DATABASE_URL.

The schema is idempotent and safe to apply repeatedly.

Examples:
  ledgerctl migrate
  ledgerctl migrate --print > schema.sql`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "print the schema instead of applying it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migratePrint {
		fmt.Fprint(cmd.OutOrStdout(), database.Schema())
		return nil
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	pool, err := infra.NewDatabase(ctx, cfg.Database.URL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
	return nil
}

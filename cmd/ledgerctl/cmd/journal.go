package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tradeledger/internal/journal"
)

var journalDBPath string

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the settlement journal",
	Long: `Query settlement and equity records from the SQLite journal.

Subcommands:
  list     - List a user's settlements
  summary  - Total a user's settlements and show the latest equity

Examples:
  ledgerctl journal list <user-id>
  ledgerctl journal summary <user-id> --db ./ledger.sqlite`,
}

var journalListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's settlements",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalList,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary <user-id>",
	Short: "Summarize a user's settlements",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSummary,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalSummaryCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./ledger.sqlite", "path to SQLite journal DB")
}

func openJournal(arg string) (*journal.SQLite, uuid.UUID, error) {
	userID, err := uuid.Parse(arg)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("open db: %w", err)
	}
	return j, userID, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, userID, err := openJournal(args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListSettlements(cmd.Context(), userID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no settlements")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLOSED\tSYMBOL\tSIDE\tENTRY\tEXIT\tNET\tREASON")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ClosedAt.Format("2006-01-02 15:04:05"), r.Symbol, r.PositionType,
			r.EntryPrice, r.ExitPrice, r.NetPnL.StringFixed(2), r.Reason)
	}
	return w.Flush()
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	j, userID, err := openJournal(args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	s, err := j.Summarize(cmd.Context(), userID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "settlements: %d (%d won)\n", s.Settlements, s.Wins)
	fmt.Fprintf(out, "net pnl:     %s\n", s.NetPnL.StringFixed(2))
	fmt.Fprintf(out, "commission:  %s\n", s.Commission.StringFixed(2))
	if s.Snapshots > 0 {
		fmt.Fprintf(out, "equity:      %s at %s (%d snapshots)\n",
			s.LastEquity.StringFixed(2), s.LastAt.Format("2006-01-02 15:04:05"), s.Snapshots)
	}
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display completed trades.

Trades are read from the SQLite mirror when --db is given, otherwise from
the CSV trade log.

Subcommands:
  trade  - Get details of a specific trade by ID
  today  - List trades booked today
  day    - List trades booked on a specific day
  report - Summarise a day as an Org-mode document

Examples:
  scalper journal trade <trade-id> --db ledger/trades.sqlite
  scalper journal today
  scalper journal day 2025-01-15
  scalper journal report 2025-01-15`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades booked today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades booked on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalReportCmd = &cobra.Command{
	Use:   "report [YYYY-MM-DD]",
	Short: "Summarise a trading day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalReport,
}

var (
	journalDBPath  string
	journalCSVPath string
	journalTZ      string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalReportCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to the SQLite journal mirror")
	journalCmd.PersistentFlags().StringVar(&journalCSVPath, "csv", "ledger/trades.csv", "path to the CSV trade log")
	journalCmd.PersistentFlags().StringVar(&journalTZ, "tz", "Europe/Berlin", "time zone of the trading day")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	tradeID := args[0]
	if journalDBPath == "" {
		recs, err := journal.ReadCSV(journalCSVPath)
		if err != nil {
			return fmt.Errorf("read trades: %w", err)
		}
		for _, rec := range recs {
			if rec.ID == tradeID {
				fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
				return nil
			}
		}
		return fmt.Errorf("trade %s not found", tradeID)
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(tradeID)
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(journalTZ)
	if err != nil {
		return fmt.Errorf("tz: %w", err)
	}
	recs, err := tradesOn(loc, time.Now().In(loc).Format("2006-01-02"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(journalTZ)
	if err != nil {
		return fmt.Errorf("tz: %w", err)
	}
	recs, err := tradesOn(loc, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalReport(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(journalTZ)
	if err != nil {
		return fmt.Errorf("tz: %w", err)
	}
	day := time.Now().In(loc).Format("2006-01-02")
	if len(args) == 1 {
		day = args[0]
	}
	recs, err := tradesOn(loc, day)
	if err != nil {
		return err
	}
	out, err := journal.Summarise(day, recs).Org()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func tradesOn(loc *time.Location, day string) ([]journal.TradeRecord, error) {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}

	if journalDBPath == "" {
		recs, err := journal.ReadCSV(journalCSVPath)
		if err != nil {
			return nil, fmt.Errorf("read trades: %w", err)
		}
		return journal.FilterBetween(recs, start, end), nil
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListTradesBetween(start, end)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return recs, nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}

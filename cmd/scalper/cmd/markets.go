package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/broker"
)

var marketsCmd = &cobra.Command{
	Use:   "markets [term]",
	Short: "Search markets or show the instrument the bot would trade",
	Long: `Without a term, run the instrument selection the trading loop uses and
print the chosen instrument. With a term, list the markets matching it.

Examples:
  scalper markets
  scalper markets "Germany 40"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMarkets,
}

func init() {
	rootCmd.AddCommand(marketsCmd)
}

func runMarkets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	s, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if len(args) == 0 {
		in, err := broker.SelectIndex(ctx, s.broker, cfg.Selector(), log)
		if err != nil {
			return err
		}
		fmt.Printf("Epic:           %s\n", in.Epic)
		fmt.Printf("Name:           %s\n", in.Name)
		fmt.Printf("Currency:       %s\n", in.Currency)
		fmt.Printf("Min deal size:  %g\n", in.MinDealSize)
		fmt.Printf("Min stop (pts): %g\n", in.MinStopDistance)
		fmt.Printf("Contract size:  %g\n", in.ContractSize)
		fmt.Printf("Margin rate:    %.2f%%\n", in.MarginRate*100)
		fmt.Printf("Pip value:      %g per %g pts\n", in.PipValue, in.PointsPerPip)
		fmt.Printf("Price:          %g\n", in.Price)
		return nil
	}

	hits, err := s.broker.SearchMarkets(ctx, args[0])
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EPIC\tNAME\tTYPE\tEXPIRY\tBID\tOFFER")
	for _, h := range hits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\n", h.Epic, h.Name, h.Type, h.Expiry, h.Bid, h.Offer)
	}
	return w.Flush()
}

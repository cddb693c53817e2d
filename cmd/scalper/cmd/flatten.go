package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/bot"
)

var flattenCmd = &cobra.Command{
	Use:   "flatten",
	Short: "Close open positions at market",
	Long: `Close every open position, or only those on one epic.

Examples:
  scalper flatten
  scalper flatten --epic IX.D.DAX.IFMM.IP`,
	Args: cobra.NoArgs,
	RunE: runFlatten,
}

var flattenEpic string

func init() {
	rootCmd.AddCommand(flattenCmd)

	flattenCmd.Flags().StringVarP(&flattenEpic, "epic", "e", "", "only close positions on this epic")
}

func runFlatten(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	n, err := bot.Flatten(ctx, s.broker, flattenEpic, s.policies.Close, log)
	fmt.Printf("Closed %d position(s)\n", n)
	return err
}

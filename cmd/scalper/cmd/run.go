package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/bot"
	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/quota"
	"github.com/rustyeddy/scalper/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop",
	Long: `Log in, pick the index instrument and trade until the daily target, the
daily loss limit or the consecutive-loss limit is reached, or until the
process is interrupted. Open positions are closed before logging out.

Examples:
  scalper run
  scalper run --env prod.env
  PAPER_TRADING=true scalper run`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	go quota.NewReporter(s.tracker, cfg.Quota.ReportEvery, log).Run(ctx)
	go func() {
		if err := quota.ServeMetrics(ctx, cfg.Quota.MetricsAddr, log); err != nil {
			log.Error("metrics server", zap.Error(err))
		}
	}()

	inst, err := broker.SelectIndex(ctx, s.broker, cfg.Selector(), log)
	if err != nil {
		return fmt.Errorf("select instrument: %w", err)
	}

	strat, err := strategies.New(cfg.Strategy.Name, s.broker, cfg.StrategyParams())
	if err != nil {
		return err
	}
	gate, err := cfg.Gate()
	if err != nil {
		return err
	}
	lopts, err := cfg.LedgerOptions(log)
	if err != nil {
		return err
	}
	ledger, err := journal.Open(lopts)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	log.Info("starting",
		zap.String("epic", inst.Epic),
		zap.String("name", inst.Name),
		zap.String("strategy", strat.Name()),
		zap.Float64("balance", ledger.Balance()),
		zap.Float64("day_net", ledger.DayNet()),
		zap.Bool("paper", cfg.IG.Paper))

	b := bot.New(s.broker, strat, ledger, gate, bot.Options{
		Epic:         inst.Epic,
		Limits:       cfg.Limits(),
		Sizing:       cfg.SizingParams(cfg.Targets.WorkingCapital),
		Trade:        cfg.TradeParams(),
		Retry:        s.policies,
		IdleSleep:    cfg.Session.IdleSleep,
		EntryRetry:   cfg.Timing.EntryRetry,
		RetryBackoff: cfg.Timing.RetryBackoff,
	}, log)

	res, err := b.Run(ctx)
	fmt.Printf("Stopped: %s\n", res.Reason)
	fmt.Printf("  Trades:  %d (%d won, %d lost)\n", res.Trades, res.Wins, res.Losses)
	fmt.Printf("  Day net: %.2f\n", res.DayNet)
	fmt.Printf("  Balance: %.2f\n", res.Balance)
	return err
}

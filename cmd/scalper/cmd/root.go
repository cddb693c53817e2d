package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/broker/ig"
	"github.com/rustyeddy/scalper/broker/paper"
	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/internal/logging"
	"github.com/rustyeddy/scalper/internal/retry"
	"github.com/rustyeddy/scalper/quota"
)

var rootCmd = &cobra.Command{
	Use:   "scalper",
	Short: "An intraday index scalper for the IG REST dealing API",
	Long: `Scalper trades small, fast positions on the Germany 40 index through the
IG REST API.

It provides tools for:
  - Running the trading loop inside configured session windows
  - Inspecting and validating the environment configuration
  - Querying the trade journal
  - Searching markets and closing open positions by hand

Configuration is read from the environment; a .env file overrides it.`,
	SilenceUsage: true,
}

var (
	envFile string
	cfgFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded over the process environment")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML or JSON config file used instead of the environment")
}

// configError marks failures that leave the process without a usable
// configuration.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// ExitCode maps the error returned by Execute to the process exit status.
// Missing or invalid configuration exits with 2.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	var ce configError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load(envFile)
	}
	if err != nil {
		return nil, configError{err}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, configError{err}
	}
	return log, nil
}

// session is a logged-in broker plus what is needed to tear it down.
type session struct {
	broker   broker.Broker
	client   *ig.Client
	tracker  *quota.Tracker
	policies retry.Policies
	log      *zap.Logger
}

// connect builds the IG client (wrapped for paper dealing when configured)
// and logs in under the auth retry policy.
func connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*session, error) {
	tracker := quota.NewTracker(cfg.QuotaLimits())
	client, err := ig.New(cfg.IGClient(), ig.WithQuota(tracker), ig.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("ig client: %w", err)
	}

	var b broker.Broker = client
	if cfg.IG.Paper {
		log.Warn("paper trading: orders are simulated locally", zap.Float64("balance", cfg.Ledger.StartBalance))
		b = paper.NewEngine(client, cfg.Ledger.StartBalance, log)
	}

	s := &session{
		broker:   b,
		client:   client,
		tracker:  tracker,
		policies: retry.Defaults(cfg.Timing.RetryBackoff),
		log:      log,
	}
	if err := retry.Do(ctx, s.policies.Auth, b.Login); err != nil {
		client.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	log.Info("logged in",
		zap.String("account", client.AccountID()),
		zap.String("account_type", client.AccountType()))
	return s, nil
}

// close logs out even when ctx is already cancelled.
func (s *session) close(ctx context.Context) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.broker.Logout(lctx); err != nil {
		s.log.Warn("logout failed", zap.Error(err))
	}
	s.client.Close()
}

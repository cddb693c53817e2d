package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/strategies"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, generate or validate the configuration",
	Long: `Inspect the configuration the trading loop would run with.

Subcommands:
  show     - Print the effective configuration (credentials masked)
  init     - Write a config file with the defaults
  validate - Check the environment or a config file

Examples:
  scalper config show
  scalper config init -o scalper.yaml
  scalper config validate -c scalper.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configShowJSON   bool
	configInitOutput string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "print JSON instead of YAML")
	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "scalper.yaml", "output config file path")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r := cfg.Redacted()

	var out []byte
	if configShowJSON {
		out, err = json.MarshalIndent(r, "", "  ")
	} else {
		out, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nFill in the ig credentials and run with:")
	fmt.Printf("  scalper run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := envFile + " + environment"
	if cfgFile != "" {
		source = cfgFile
	}
	fmt.Printf("✓ Configuration valid: %s\n", source)
	fmt.Printf("  Targets:  %.2f per trade, %.2f per day, max loss %.2f, %d losses in a row\n",
		cfg.Targets.PerTrade, cfg.Targets.Daily, cfg.Targets.DailyMaxLoss, cfg.Targets.MaxLossStreak)
	fmt.Printf("  Strategy: %s (available: %s)\n", cfg.Strategy.Name, strings.Join(strategies.Names(), ", "))
	fmt.Printf("  Session:  %s %s (enabled: %t)\n", cfg.Session.Windows, cfg.Session.TZ, cfg.Session.Enabled)
	fmt.Printf("  Ledger:   %s\n", cfg.Ledger.Dir)
	fmt.Printf("  Paper:    %t\n", cfg.IG.Paper)
	return nil
}

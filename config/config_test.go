package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() *Config {
	cfg := Default()
	cfg.IG.APIKey = "key"
	cfg.IG.Username = "user"
	cfg.IG.Password = "secret"
	return cfg
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, 1.0, cfg.Targets.PerTrade)
	assert.Equal(t, 10.0, cfg.Targets.Daily)
	assert.Equal(t, 3.0, cfg.Targets.StopMultiplier)
	assert.Equal(t, 500.0, cfg.Ledger.StartBalance)
	assert.Equal(t, filepath.Join("ledger", "trades.csv"), cfg.Ledger.TradesCSV)
	assert.Equal(t, filepath.Join("ledger", "state.json"), cfg.Ledger.StateJSON)
	assert.Equal(t, "09:05,11:15;15:30,17:05", cfg.Session.Windows)
	assert.Equal(t, 30*time.Second, cfg.Session.IdleSleep)
	assert.Equal(t, 5*time.Second, cfg.Timing.PollPositions)
	assert.Equal(t, "micro_momentum", cfg.Strategy.Name)
	assert.Equal(t, 300*time.Second, cfg.Quota.CacheStale)
	assert.Equal(t, []string{"Germany 40", "Germany40", "DAX", "GER40", "DE40"}, cfg.Market.SearchTerms)

	// Credentials have no default.
	assert.EqualError(t, cfg.Validate(), "IG_API_KEY is required")
	assert.NoError(t, valid().Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing username", func(c *Config) { c.IG.Username = "" }, "IG_USERNAME is required"},
		{"missing password", func(c *Config) { c.IG.Password = "" }, "IG_PASSWORD is required"},
		{"zero per-trade target", func(c *Config) { c.Targets.PerTrade = 0 }, "PER_TRADE_TARGET_EUR must be positive"},
		{"negative daily loss", func(c *Config) { c.Targets.DailyMaxLoss = -1 }, "DAILY_MAX_LOSS_EUR must not be negative"},
		{"utilization above one", func(c *Config) { c.Targets.MarginUtilization = 1.5 }, "MARGIN_UTILIZATION must be between 0 and 1"},
		{"zero leverage", func(c *Config) { c.Targets.Leverage = 0 }, "EFFECTIVE_LEVERAGE must be positive"},
		{"bad windows", func(c *Config) { c.Session.Windows = "9-5" }, "session:"},
		{"bad session zone", func(c *Config) { c.Session.TZ = "Mars/Olympus" }, "session:"},
		{"bad ledger zone", func(c *Config) { c.Ledger.TZ = "Mars/Olympus" }, "LEDGER_TZ"},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "martingale" }, "SCALP_STRATEGY"},
		{"dashed strategy", func(c *Config) { c.Strategy.Name = "Parabolic-SAR" }, ""},
		{"zero poll", func(c *Config) { c.Timing.PollPositions = 0 }, "POLL_POSITIONS must be positive"},
		{"no market", func(c *Config) {
			c.Market.SearchTerms = nil
			c.Market.DefaultEpic = ""
		}, "SEARCH_TERMS or DEFAULT_EPIC is required"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadEnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"IG_API_KEY=file-key\n"+
			"PER_TRADE_TARGET_EUR=3\n"+
			"SCALP_STRATEGY=rsi\n"+
			"SEARCH_TERMS=DAX, GER40\n",
	), 0o600))

	// Registered with t.Setenv so the values the file writes are restored.
	t.Setenv("IG_API_KEY", "env-key")
	t.Setenv("IG_USERNAME", "user")
	t.Setenv("IG_PASSWORD", "secret")
	t.Setenv("PER_TRADE_TARGET_EUR", "2")
	t.Setenv("SCALP_STRATEGY", "")
	t.Setenv("SEARCH_TERMS", "")
	t.Setenv("POLL_POSITIONS", "2s")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.IG.APIKey)
	assert.Equal(t, 3.0, cfg.Targets.PerTrade)
	assert.Equal(t, "rsi", cfg.Strategy.Name)
	assert.Equal(t, []string{"DAX", "GER40"}, cfg.Market.SearchTerms)
	assert.Equal(t, 2*time.Second, cfg.Timing.PollPositions)
}

func TestLoadMissingEnvFile(t *testing.T) {
	t.Setenv("IG_API_KEY", "key")
	t.Setenv("IG_USERNAME", "user")
	t.Setenv("IG_PASSWORD", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "micro_momentum", cfg.Strategy.Name)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("IG_API_KEY", "key")
	t.Setenv("IG_USERNAME", "user")
	t.Setenv("IG_PASSWORD", "secret")
	t.Setenv("MARGIN_UTILIZATION", "2")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARGIN_UTILIZATION")

	t.Setenv("MARGIN_UTILIZATION", "lots")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse environment")
}

func TestSaveAndLoadFile(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"scalper.yaml", "scalper.json"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)

			cfg := valid()
			cfg.Strategy.Name = "stochastic"
			cfg.Session.IdleSleep = 45 * time.Second
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"ig:\n  api_key: k\n  username: u\n  password: p\ntargets:\n  daily: 25\n",
	), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Targets.Daily)
	assert.Equal(t, 1.0, cfg.Targets.PerTrade)
	assert.Equal(t, 20, cfg.Manage.EMAPeriod)
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	cfg := valid()
	r := cfg.Redacted()
	assert.Equal(t, "****", r.IG.APIKey)
	assert.Equal(t, "****", r.IG.Password)
	assert.Equal(t, "user", r.IG.Username)
	assert.Equal(t, "secret", cfg.IG.Password)
}

func TestConversions(t *testing.T) {
	t.Parallel()

	cfg := valid()
	cfg.Targets.WorkingCapital = 800
	cfg.Session.Enabled = false
	cfg.Market.SearchTerms = []string{"DAX"}

	sp := cfg.SizingParams(800)
	assert.Equal(t, 800.0, sp.WorkingCapital)
	assert.Equal(t, 5.0, sp.Leverage)
	assert.Equal(t, 3.0, sp.StopMultiplier)

	lim := cfg.Limits()
	assert.Equal(t, 10.0, lim.DailyTarget)
	assert.Equal(t, 3, lim.MaxConsecutiveLosses)

	tp := cfg.TradeParams()
	assert.Equal(t, 20, tp.EMAPeriod)
	assert.Equal(t, 5*time.Second, tp.PollInterval)
	assert.Equal(t, 0.8, tp.TrailDistMult)

	assert.Equal(t, 200, cfg.StrategyParams().MATrend)
	assert.Equal(t, 35, cfg.QuotaLimits().TradePerMin)

	igc := cfg.IGClient()
	assert.Equal(t, "key", igc.APIKey)
	assert.True(t, igc.Cache.Enabled)
	assert.Equal(t, 2000, igc.Cache.HistReserve)

	g, err := cfg.Gate()
	require.NoError(t, err)
	assert.False(t, g.Enabled)
	assert.Len(t, g.Windows, 2)

	sel := cfg.Selector()
	assert.Equal(t, []string{"DAX"}, sel.Terms)
	assert.Equal(t, "IX.D.DAX.IFMM.IP", sel.DefaultEpic)

	opts, err := cfg.LedgerOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", opts.Location.String())
	assert.Equal(t, 500.0, opts.StartBalance)
}

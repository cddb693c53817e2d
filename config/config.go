package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/broker/ig"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/quota"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/session"
	"github.com/rustyeddy/scalper/strategies"
	"github.com/rustyeddy/scalper/trade"
)

// Config is the complete bot configuration. Every field is read from the
// environment; a .env file, when present, overrides the process environment.
type Config struct {
	IG       IGConfig       `json:"ig" yaml:"ig"`
	Targets  TargetConfig   `json:"targets" yaml:"targets"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger"`
	Manage   ManageConfig   `json:"manage" yaml:"manage"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Timing   TimingConfig   `json:"timing" yaml:"timing"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Quota    QuotaConfig    `json:"quota" yaml:"quota"`
	Market   MarketConfig   `json:"market" yaml:"market"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// IGConfig holds the REST credentials and dealing mode.
type IGConfig struct {
	APIKey    string `env:"IG_API_KEY" json:"api_key" yaml:"api_key"`
	Username  string `env:"IG_USERNAME" json:"username" yaml:"username"`
	Password  string `env:"IG_PASSWORD" json:"password" yaml:"password"`
	AccountID string `env:"IG_ACCOUNT_ID" json:"account_id,omitempty" yaml:"account_id,omitempty"`
	BaseURL   string `env:"IG_BASE_URL" envDefault:"https://demo-api.ig.com/gateway/deal" json:"base_url" yaml:"base_url"`
	Paper     bool   `env:"PAPER_TRADING" envDefault:"false" json:"paper" yaml:"paper"`
}

// TargetConfig holds the money targets, guards and sizing budget.
type TargetConfig struct {
	PerTrade          float64 `env:"PER_TRADE_TARGET_EUR" envDefault:"1.0" json:"per_trade" yaml:"per_trade"`
	Daily             float64 `env:"DAILY_TARGET_EUR" envDefault:"10.0" json:"daily" yaml:"daily"`
	DailyMaxLoss      float64 `env:"DAILY_MAX_LOSS_EUR" envDefault:"10.0" json:"daily_max_loss" yaml:"daily_max_loss"`
	MaxLossStreak     int     `env:"MAX_CONSECUTIVE_LOSSES" envDefault:"3" json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	StopMultiplier    float64 `env:"STOP_TO_LIMIT_MULTIPLIER" envDefault:"3.0" json:"stop_multiplier" yaml:"stop_multiplier"`
	Leverage          float64 `env:"EFFECTIVE_LEVERAGE" envDefault:"5" json:"leverage" yaml:"leverage"`
	MarginUtilization float64 `env:"MARGIN_UTILIZATION" envDefault:"1" json:"margin_utilization" yaml:"margin_utilization"`
	// WorkingCapital overrides the ledger balance when positive.
	WorkingCapital float64 `env:"WORKING_CAPITAL" envDefault:"0" json:"working_capital" yaml:"working_capital"`
}

// LedgerConfig locates the journal files. Empty file paths resolve under Dir.
type LedgerConfig struct {
	StartBalance float64 `env:"START_BALANCE_EUR" envDefault:"500" json:"start_balance" yaml:"start_balance"`
	Dir          string  `env:"LEDGER_DIR" envDefault:"ledger" json:"dir" yaml:"dir"`
	TradesCSV    string  `env:"LEDGER_TRADES_CSV" json:"trades_csv" yaml:"trades_csv"`
	StateJSON    string  `env:"LEDGER_STATE_JSON" json:"state_json" yaml:"state_json"`
	SQLite       string  `env:"LEDGER_SQLITE" json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TZ           string  `env:"LEDGER_TZ" envDefault:"Europe/Berlin" json:"tz" yaml:"tz"`
}

// ManageConfig holds the entry gate and the open-trade management settings.
type ManageConfig struct {
	EMAPeriod       int     `env:"EMA_PERIOD" envDefault:"20" json:"ema_period" yaml:"ema_period"`
	ATRPeriod       int     `env:"ATR_PERIOD" envDefault:"14" json:"atr_period" yaml:"atr_period"`
	ATRMin          float64 `env:"ATR_MIN_THRESHOLD" envDefault:"3.0" json:"atr_min" yaml:"atr_min"`
	SpreadMax       float64 `env:"SPREAD_MAX_POINTS" envDefault:"3.0" json:"spread_max" yaml:"spread_max"`
	BreakevenRatio  float64 `env:"BREAKEVEN_TRIGGER_RATIO" envDefault:"0.5" json:"breakeven_ratio" yaml:"breakeven_ratio"`
	BreakevenOffset float64 `env:"BREAKEVEN_OFFSET_POINTS" envDefault:"0.1" json:"breakeven_offset" yaml:"breakeven_offset"`
	TrailDistMult   float64 `env:"TRAIL_DIST_ATR_MULT" envDefault:"0.8" json:"trail_dist_mult" yaml:"trail_dist_mult"`
	TrailStepMult   float64 `env:"TRAIL_STEP_ATR_MULT" envDefault:"0.3" json:"trail_step_mult" yaml:"trail_step_mult"`
	MinTrailStep    float64 `env:"MIN_TRAIL_STEP_POINTS" envDefault:"0.1" json:"min_trail_step" yaml:"min_trail_step"`
}

// SessionConfig describes the trading windows.
type SessionConfig struct {
	Enabled      bool          `env:"SESSION_FILTER_ENABLED" envDefault:"true" json:"enabled" yaml:"enabled"`
	SkipWeekends bool          `env:"SESSION_SKIP_WEEKENDS" envDefault:"true" json:"skip_weekends" yaml:"skip_weekends"`
	Windows      string        `env:"SESSION_WINDOWS_LOCAL" envDefault:"09:05,11:15;15:30,17:05" json:"windows" yaml:"windows"`
	TZ           string        `env:"SESSION_TZ" envDefault:"Europe/Berlin" json:"tz" yaml:"tz"`
	IdleSleep    time.Duration `env:"SESSION_IDLE_SLEEP" envDefault:"30s" json:"idle_sleep" yaml:"idle_sleep"`
}

// TimingConfig holds the loop intervals.
type TimingConfig struct {
	PollPositions time.Duration `env:"POLL_POSITIONS" envDefault:"5s" json:"poll_positions" yaml:"poll_positions"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" envDefault:"1s" json:"retry_backoff" yaml:"retry_backoff"`
	EntryRetry    time.Duration `env:"ENTRY_RETRY_DELAY" envDefault:"5s" json:"entry_retry" yaml:"entry_retry"`
}

// StrategyConfig selects the entry variant and its parameters.
type StrategyConfig struct {
	Name      string  `env:"SCALP_STRATEGY" envDefault:"micro_momentum" json:"name" yaml:"name"`
	StoK      int     `env:"STO_K_PERIOD" envDefault:"14" json:"sto_k" yaml:"sto_k"`
	StoD      int     `env:"STO_D_PERIOD" envDefault:"3" json:"sto_d" yaml:"sto_d"`
	StoLo     float64 `env:"STO_LO" envDefault:"20" json:"sto_lo" yaml:"sto_lo"`
	StoHi     float64 `env:"STO_HI" envDefault:"80" json:"sto_hi" yaml:"sto_hi"`
	MAFast    int     `env:"MA_FAST" envDefault:"5" json:"ma_fast" yaml:"ma_fast"`
	MASlow    int     `env:"MA_SLOW" envDefault:"20" json:"ma_slow" yaml:"ma_slow"`
	MATrend   int     `env:"MA_TREND" envDefault:"200" json:"ma_trend" yaml:"ma_trend"`
	RSIPeriod int     `env:"RSI_PERIOD" envDefault:"14" json:"rsi_period" yaml:"rsi_period"`
	RSILo     float64 `env:"RSI_LO" envDefault:"30" json:"rsi_lo" yaml:"rsi_lo"`
	RSIHi     float64 `env:"RSI_HI" envDefault:"70" json:"rsi_hi" yaml:"rsi_hi"`
	PSARStep  float64 `env:"PSAR_AF" envDefault:"0.02" json:"psar_af" yaml:"psar_af"`
	PSARMax   float64 `env:"PSAR_AF_MAX" envDefault:"0.2" json:"psar_af_max" yaml:"psar_af_max"`
}

// QuotaConfig holds the API allowance estimates and the price cache.
type QuotaConfig struct {
	ReportEvery    time.Duration `env:"QUOTA_REPORT_EVERY" envDefault:"30s" json:"report_every" yaml:"report_every"`
	TradePerMin    int           `env:"EST_TRADE_PER_MIN" envDefault:"35" json:"trade_per_min" yaml:"trade_per_min"`
	DataPerMin     int           `env:"EST_DATA_PER_MIN" envDefault:"120" json:"data_per_min" yaml:"data_per_min"`
	HistPointsWeek int           `env:"EST_HIST_POINTS_WEEK" envDefault:"10000" json:"hist_points_week" yaml:"hist_points_week"`
	CacheEnabled   bool          `env:"PRICE_CACHE_ENABLED" envDefault:"true" json:"cache_enabled" yaml:"cache_enabled"`
	CacheStale     time.Duration `env:"PRICE_CACHE_STALE" envDefault:"300s" json:"cache_stale" yaml:"cache_stale"`
	HistReserve    int           `env:"HIST_RESERVE_POINTS" envDefault:"2000" json:"hist_reserve" yaml:"hist_reserve"`
	MetricsAddr    string        `env:"METRICS_ADDR" json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// MarketConfig drives instrument selection.
type MarketConfig struct {
	SearchTerms []string `env:"SEARCH_TERMS" envSeparator:"," envDefault:"Germany 40,Germany40,DAX,GER40,DE40" json:"search_terms" yaml:"search_terms"`
	DefaultEpic string   `env:"DEFAULT_EPIC" envDefault:"IX.D.DAX.IFMM.IP" json:"default_epic" yaml:"default_epic"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info" json:"level" yaml:"level"`
	Format string `env:"LOG_FORMAT" envDefault:"console" json:"format" yaml:"format"`
}

// Load reads envFile (if it exists) over the process environment and
// parses the result. The configuration is validated before it is returned.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields the file
// leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Redacted returns a copy with the credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.IG.APIKey = mask(c.IG.APIKey)
	out.IG.Password = mask(c.IG.Password)
	out.Market.SearchTerms = append([]string(nil), c.Market.SearchTerms...)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.IG.APIKey == "" {
		return fmt.Errorf("IG_API_KEY is required")
	}
	if c.IG.Username == "" {
		return fmt.Errorf("IG_USERNAME is required")
	}
	if c.IG.Password == "" {
		return fmt.Errorf("IG_PASSWORD is required")
	}

	t := c.Targets
	if t.PerTrade <= 0 {
		return fmt.Errorf("PER_TRADE_TARGET_EUR must be positive")
	}
	if t.Daily <= 0 {
		return fmt.Errorf("DAILY_TARGET_EUR must be positive")
	}
	if t.DailyMaxLoss < 0 {
		return fmt.Errorf("DAILY_MAX_LOSS_EUR must not be negative")
	}
	if t.MaxLossStreak < 0 {
		return fmt.Errorf("MAX_CONSECUTIVE_LOSSES must not be negative")
	}
	if t.StopMultiplier <= 0 {
		return fmt.Errorf("STOP_TO_LIMIT_MULTIPLIER must be positive")
	}
	if t.Leverage <= 0 {
		return fmt.Errorf("EFFECTIVE_LEVERAGE must be positive")
	}
	if t.MarginUtilization <= 0 || t.MarginUtilization > 1 {
		return fmt.Errorf("MARGIN_UTILIZATION must be between 0 and 1")
	}
	if t.WorkingCapital < 0 {
		return fmt.Errorf("WORKING_CAPITAL must not be negative")
	}

	if c.Ledger.StartBalance <= 0 {
		return fmt.Errorf("START_BALANCE_EUR must be positive")
	}
	if c.Ledger.Dir == "" {
		return fmt.Errorf("LEDGER_DIR is required")
	}
	if _, err := c.ledgerLocation(); err != nil {
		return err
	}

	m := c.Manage
	if m.EMAPeriod <= 0 || m.ATRPeriod <= 0 {
		return fmt.Errorf("EMA_PERIOD and ATR_PERIOD must be positive")
	}
	if m.ATRMin < 0 || m.SpreadMax <= 0 {
		return fmt.Errorf("ATR_MIN_THRESHOLD must not be negative and SPREAD_MAX_POINTS must be positive")
	}
	if m.BreakevenRatio <= 0 || m.BreakevenRatio > 1 {
		return fmt.Errorf("BREAKEVEN_TRIGGER_RATIO must be between 0 and 1")
	}
	if m.TrailDistMult <= 0 || m.TrailStepMult <= 0 {
		return fmt.Errorf("trailing multipliers must be positive")
	}

	if _, err := c.Gate(); err != nil {
		return err
	}

	if c.Timing.PollPositions <= 0 {
		return fmt.Errorf("POLL_POSITIONS must be positive")
	}
	if c.Timing.RetryBackoff < 0 || c.Timing.EntryRetry < 0 || c.Session.IdleSleep < 0 {
		return fmt.Errorf("sleep intervals must not be negative")
	}

	if _, err := strategies.New(c.Strategy.Name, nil, c.StrategyParams()); err != nil {
		return fmt.Errorf("SCALP_STRATEGY: %w", err)
	}

	if c.Quota.TradePerMin <= 0 || c.Quota.DataPerMin <= 0 || c.Quota.HistPointsWeek <= 0 {
		return fmt.Errorf("quota estimates must be positive")
	}
	if len(c.Market.SearchTerms) == 0 && c.Market.DefaultEpic == "" {
		return fmt.Errorf("SEARCH_TERMS or DEFAULT_EPIC is required")
	}
	return nil
}

// Default returns the configuration an empty environment produces.
func Default() *Config {
	cfg := &Config{}
	// Only envDefault values apply with an empty environment, and those
	// are all well formed.
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	cfg.resolve()
	return cfg
}

func (c *Config) resolve() {
	if c.Ledger.TradesCSV == "" {
		c.Ledger.TradesCSV = filepath.Join(c.Ledger.Dir, "trades.csv")
	}
	if c.Ledger.StateJSON == "" {
		c.Ledger.StateJSON = filepath.Join(c.Ledger.Dir, "state.json")
	}
	terms := c.Market.SearchTerms[:0]
	for _, s := range c.Market.SearchTerms {
		if s = strings.TrimSpace(s); s != "" {
			terms = append(terms, s)
		}
	}
	c.Market.SearchTerms = terms
}

func (c *Config) ledgerLocation() (*time.Location, error) {
	if c.Ledger.TZ == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Ledger.TZ)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_TZ %q: %w", c.Ledger.TZ, err)
	}
	return loc, nil
}

// SizingParams returns the sizing budget for workingCapital.
func (c *Config) SizingParams(workingCapital float64) risk.SizingParams {
	return risk.SizingParams{
		TargetProfit:      c.Targets.PerTrade,
		WorkingCapital:    workingCapital,
		Leverage:          c.Targets.Leverage,
		MarginUtilization: c.Targets.MarginUtilization,
		StopMultiplier:    c.Targets.StopMultiplier,
	}
}

func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		DailyTarget:          c.Targets.Daily,
		DailyMaxLoss:         c.Targets.DailyMaxLoss,
		MaxConsecutiveLosses: c.Targets.MaxLossStreak,
	}
}

func (c *Config) StrategyParams() strategies.Params {
	s := c.Strategy
	return strategies.Params{
		MAFast: s.MAFast, MASlow: s.MASlow, MATrend: s.MATrend,
		StoK: s.StoK, StoD: s.StoD, StoLo: s.StoLo, StoHi: s.StoHi,
		RSIPeriod: s.RSIPeriod, RSILo: s.RSILo, RSIHi: s.RSIHi,
		PSARStep: s.PSARStep, PSARMax: s.PSARMax,
	}
}

// TradeParams returns the management settings. MinStopDistance keeps its
// default until the instrument is known.
func (c *Config) TradeParams() trade.Params {
	p := trade.DefaultParams()
	m := c.Manage
	p.EMAPeriod = m.EMAPeriod
	p.ATRPeriod = m.ATRPeriod
	p.ATRMin = m.ATRMin
	p.SpreadMax = m.SpreadMax
	p.BreakevenRatio = m.BreakevenRatio
	p.BreakevenOffset = m.BreakevenOffset
	p.TrailDistMult = m.TrailDistMult
	p.TrailStepMult = m.TrailStepMult
	p.MinTrailStep = m.MinTrailStep
	p.PollInterval = c.Timing.PollPositions
	return p
}

func (c *Config) QuotaLimits() quota.Limits {
	return quota.Limits{
		TradePerMin:    c.Quota.TradePerMin,
		DataPerMin:     c.Quota.DataPerMin,
		HistPointsWeek: c.Quota.HistPointsWeek,
	}
}

// IGClient returns the REST client settings.
func (c *Config) IGClient() ig.Config {
	return ig.Config{
		BaseURL:   c.IG.BaseURL,
		APIKey:    c.IG.APIKey,
		Username:  c.IG.Username,
		Password:  c.IG.Password,
		AccountID: c.IG.AccountID,
		Cache: ig.CacheConfig{
			Enabled:     c.Quota.CacheEnabled,
			StaleLimit:  c.Quota.CacheStale,
			HistReserve: c.Quota.HistReserve,
		},
	}
}

// Gate builds the session gate. A disabled filter admits every instant but
// the window list must still parse.
func (c *Config) Gate() (session.Gate, error) {
	g, err := session.New(c.Session.Windows, c.Session.TZ, c.Session.SkipWeekends)
	if err != nil {
		return session.Gate{}, fmt.Errorf("session: %w", err)
	}
	g.Enabled = c.Session.Enabled
	return g, nil
}

// LedgerOptions returns the journal settings.
func (c *Config) LedgerOptions(log *zap.Logger) (journal.Options, error) {
	loc, err := c.ledgerLocation()
	if err != nil {
		return journal.Options{}, err
	}
	return journal.Options{
		Dir:          c.Ledger.Dir,
		TradesCSV:    c.Ledger.TradesCSV,
		StateJSON:    c.Ledger.StateJSON,
		SQLitePath:   c.Ledger.SQLite,
		StartBalance: c.Ledger.StartBalance,
		Location:     loc,
		Logger:       log,
	}, nil
}

func (c *Config) Selector() broker.Selector {
	s := broker.DefaultSelector()
	if len(c.Market.SearchTerms) > 0 {
		s.Terms = append([]string(nil), c.Market.SearchTerms...)
	}
	s.DefaultEpic = c.Market.DefaultEpic
	return s
}

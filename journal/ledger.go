package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/internal/id"
)

// Options configure a Ledger. Empty paths fall back to files in Dir.
type Options struct {
	Dir          string
	TradesCSV    string
	StateJSON    string
	SQLitePath   string // optional mirror
	StartBalance float64
	Location     *time.Location // trading-day zone, UTC when nil
	Logger       *zap.Logger
	Now          func() time.Time
}

// Ledger tracks the running balance and the trading-day anchor, appending
// every trade to its journals. It has a single writer and no locking.
type Ledger struct {
	opts     Options
	state    State
	journals []Journal
	sqlite   *SQLite
	log      *zap.Logger
}

// Open loads the state snapshot or seeds it from StartBalance. A corrupt
// snapshot is replaced by a fresh one and logged at error level.
func Open(opts Options) (*Ledger, error) {
	if opts.Dir == "" {
		opts.Dir = "ledger"
	}
	if opts.TradesCSV == "" {
		opts.TradesCSV = filepath.Join(opts.Dir, "trades.csv")
	}
	if opts.StateJSON == "" {
		opts.StateJSON = filepath.Join(opts.Dir, "state.json")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	for _, p := range []string{opts.Dir, filepath.Dir(opts.TradesCSV), filepath.Dir(opts.StateJSON)} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, fmt.Errorf("ledger dir: %w", err)
		}
	}

	l := &Ledger{opts: opts, log: opts.Logger.Named("ledger")}
	today := dayKey(opts.Now(), opts.Location)

	st, err := loadState(opts.StateJSON)
	switch {
	case err == nil:
		if st.Day == "" {
			st.Day = today
		}
		l.state = st
	case errors.Is(err, fs.ErrNotExist):
		l.state = l.seed(today)
	default:
		l.log.Error("ledger state unreadable, resetting to start balance",
			zap.String("path", opts.StateJSON),
			zap.Float64("start_balance", opts.StartBalance),
			zap.Error(err))
		l.state = l.seed(today)
	}
	l.roll(today)
	if err := l.flush(); err != nil {
		return nil, err
	}

	csvj, err := NewCSV(opts.TradesCSV)
	if err != nil {
		return nil, fmt.Errorf("open trades csv: %w", err)
	}
	l.journals = append(l.journals, csvj)

	if opts.SQLitePath != "" {
		db, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			csvj.Close()
			return nil, fmt.Errorf("open sqlite mirror: %w", err)
		}
		l.sqlite = db
		l.journals = append(l.journals, db)
	}
	return l, nil
}

func (l *Ledger) seed(today string) State {
	return State{Balance: l.opts.StartBalance, Day: today, DayStartBalance: l.opts.StartBalance}
}

// roll re-anchors the day-start balance when the trading day changed.
func (l *Ledger) roll(today string) bool {
	if l.state.Day == today {
		return false
	}
	l.log.Info("new trading day",
		zap.String("previous", l.state.Day),
		zap.String("day", today),
		zap.Float64("day_start_balance", l.state.Balance))
	l.state.Day = today
	l.state.DayStartBalance = l.state.Balance
	return true
}

// Rollover re-anchors the trading day if now falls on a new calendar day
// and reports whether it did.
func (l *Ledger) Rollover(now time.Time) (bool, error) {
	if !l.roll(dayKey(now, l.opts.Location)) {
		return false, nil
	}
	return true, l.flush()
}

// RecordTrade applies the day rollover for the trade's time, books its
// P&L, appends it to every journal and flushes the state. BalanceAfter and
// ID are filled in when empty.
func (l *Ledger) RecordTrade(t TradeRecord) (TradeRecord, error) {
	if t.Time.IsZero() {
		t.Time = l.opts.Now()
	}
	if t.ID == "" {
		t.ID = id.At(t.Time)
	}
	if t.Currency == "" {
		t.Currency = "EUR"
	}
	l.roll(dayKey(t.Time, l.opts.Location))
	l.state.Balance += t.PnL
	t.BalanceAfter = l.state.Balance

	var errs []error
	for _, j := range l.journals {
		if err := j.RecordTrade(t); err != nil {
			errs = append(errs, err)
		}
	}
	if err := l.flush(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return t, fmt.Errorf("record trade %s: %w", t.ID, err)
	}
	return t, nil
}

func (l *Ledger) flush() error {
	if err := saveState(l.opts.StateJSON, l.state); err != nil {
		return fmt.Errorf("save ledger state: %w", err)
	}
	return nil
}

func (l *Ledger) DayNet() float64          { return l.state.DayNet() }
func (l *Ledger) Balance() float64         { return l.state.Balance }
func (l *Ledger) DayStartBalance() float64 { return l.state.DayStartBalance }
func (l *Ledger) Day() string              { return l.state.Day }
func (l *Ledger) State() State             { return l.state }

// Store returns the SQLite mirror, or nil when none is configured.
func (l *Ledger) Store() *SQLite { return l.sqlite }

// Paths reports where the ledger keeps its files.
func (l *Ledger) Paths() (dir, tradesCSV, stateJSON string) {
	return l.opts.Dir, l.opts.TradesCSV, l.opts.StateJSON
}

func (l *Ledger) Close() error {
	var errs []error
	for _, j := range l.journals {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

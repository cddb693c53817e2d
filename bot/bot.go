// Package bot runs the trading day: it gates entries by session and market
// quality, sizes and submits one order at a time, hands each deal to a
// trade.Manager and books the outcome in the ledger until a stop condition
// trips.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/internal/retry"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/strategies"
	"github.com/rustyeddy/scalper/trade"
)

// StopReason says why Run returned.
type StopReason string

const (
	StopTarget     StopReason = "DAILY_TARGET_REACHED"
	StopDailyLoss  StopReason = "DAILY_LOSS_LIMIT"
	StopLossStreak StopReason = "MAX_CONSECUTIVE_LOSSES"
	StopSizing     StopReason = "SIZING_INFEASIBLE"
	StopCancelled  StopReason = "CANCELLED"
	StopFatal      StopReason = "ERROR"
)

// Ledger is the bookkeeping the bot needs. *journal.Ledger satisfies it.
type Ledger interface {
	Rollover(now time.Time) (bool, error)
	RecordTrade(t journal.TradeRecord) (journal.TradeRecord, error)
	DayNet() float64
	Balance() float64
	DayStartBalance() float64
	Day() string
}

// Gate admits or refuses new entries by time of day.
type Gate interface {
	Within(t time.Time) bool
}

// Options configures a Bot.
type Options struct {
	Epic   string
	Limits risk.Limits
	// Sizing.WorkingCapital overrides the ledger's day-start balance when
	// positive.
	Sizing risk.SizingParams
	Trade  trade.Params
	Retry  retry.Policies

	IdleSleep    time.Duration // outside the session windows
	EntryRetry   time.Duration // after a skipped entry
	RetryBackoff time.Duration // after a failed submission

	// ShutdownTimeout bounds the closing of positions after Run stops.
	ShutdownTimeout time.Duration

	Now func() time.Time
}

// Result summarises a run.
type Result struct {
	Reason  StopReason
	Trades  int
	Wins    int
	Losses  int
	DayNet  float64
	Balance float64
}

// Bot is not safe for concurrent use; Run drives it from one goroutine.
type Bot struct {
	broker   broker.Broker
	strategy strategies.Strategy
	ledger   Ledger
	gate     Gate
	opts     Options
	log      *zap.Logger

	day     string
	capital float64
	inst    market.Instrument
	sized   bool
	sizing  risk.Sizing
	streak  risk.LossStreak
	// pending holds the reference of a submitted order whose outcome was
	// never confirmed; no new order goes out until it is reconciled.
	pending string
	result  Result
}

func New(b broker.Broker, s strategies.Strategy, l Ledger, g Gate, opts Options, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	return &Bot{
		broker:   b,
		strategy: s,
		ledger:   l,
		gate:     g,
		opts:     opts,
		log:      log.With(zap.String("epic", opts.Epic), zap.String("strategy", s.Name())),
	}
}

// Sizing returns the current sizing.
func (b *Bot) Sizing() risk.Sizing { return b.sizing }

// WorkingCapital returns the capital fixed for the current trading day.
func (b *Bot) WorkingCapital() float64 { return b.capital }

// Run trades until a stop condition trips, ctx is cancelled or a fatal
// error occurs. Open positions on the epic are closed before it returns.
func (b *Bot) Run(ctx context.Context) (Result, error) {
	reason, err := b.loop(ctx)
	b.result.Reason = reason
	b.result.DayNet = b.ledger.DayNet()
	b.result.Balance = b.ledger.Balance()

	if n, ferr := b.Flatten(ctx); ferr != nil {
		b.log.Error("flatten on exit failed", zap.Int("closed", n), zap.Error(ferr))
	} else if n > 0 {
		b.log.Warn("closed positions left open on exit", zap.Int("closed", n))
	}

	b.log.Info("trading stopped",
		zap.String("reason", string(reason)),
		zap.Int("trades", b.result.Trades),
		zap.Int("wins", b.result.Wins),
		zap.Int("losses", b.result.Losses),
		zap.Float64("day_net", b.result.DayNet),
		zap.Float64("balance", b.result.Balance))
	return b.result, err
}

// Flatten closes what is open on the bot's epic. It outlives a cancelled
// ctx for at most ShutdownTimeout.
func (b *Bot) Flatten(ctx context.Context) (int, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.opts.ShutdownTimeout)
	defer cancel()
	return Flatten(fctx, b.broker, b.opts.Epic, b.opts.Retry.Close, b.log)
}

func (b *Bot) loop(ctx context.Context) (StopReason, error) {
	for {
		if ctx.Err() != nil {
			return StopCancelled, nil
		}

		if _, err := b.ledger.Rollover(b.opts.Now()); err != nil {
			b.log.Error("ledger rollover", zap.Error(err))
		}
		if b.ledger.Day() != b.day {
			if err := b.newDay(ctx); err != nil {
				if ctx.Err() != nil {
					return StopCancelled, nil
				}
				return StopFatal, err
			}
			if !b.sizing.Feasible {
				return StopSizing, nil
			}
		}

		if reason, stop := b.check(); stop {
			return reason, nil
		}

		if !b.gate.Within(b.opts.Now()) {
			b.log.Debug("outside session windows", zap.Duration("sleep", b.opts.IdleSleep))
			if retry.Sleep(ctx, b.opts.IdleSleep) != nil {
				return StopCancelled, nil
			}
			continue
		}

		open, ok := b.enter(ctx)
		if !ok {
			continue
		}

		out, merr := trade.NewManager(b.broker, open, b.tradeParams(), b.log).Run(ctx)
		if err := b.book(open, out, merr); err != nil {
			return StopFatal, err
		}
		if merr != nil {
			return StopCancelled, nil
		}

		if reason, stop := b.check(); stop {
			return reason, nil
		}
		if err := b.resize(ctx); err != nil {
			b.log.Warn("sizing refresh failed, keeping previous sizing", zap.Error(err))
		}
		if !b.sizing.Feasible {
			return StopSizing, nil
		}
	}
}

// newDay fixes the working capital for the ledger's trading day, resets
// the loss streak and sizes against the new capital. A failed instrument
// lookup is fatal only before the first sizing.
func (b *Bot) newDay(ctx context.Context) error {
	b.day = b.ledger.Day()
	b.capital = b.opts.Sizing.WorkingCapital
	if b.capital <= 0 {
		b.capital = b.ledger.DayStartBalance()
	}
	b.streak = risk.LossStreak{}
	metricStreak.Set(0)
	b.log.Info("trading day",
		zap.String("day", b.day),
		zap.Float64("working_capital", b.capital),
		zap.Float64("day_net", b.ledger.DayNet()))

	if err := b.resize(ctx); err != nil {
		if !b.sized {
			return err
		}
		b.log.Warn("instrument refresh failed, sizing from previous snapshot", zap.Error(err))
		b.size()
	}
	return nil
}

// resize refreshes the instrument snapshot and re-derives sizing. A failed
// refresh leaves the previous sizing in place.
func (b *Bot) resize(ctx context.Context) error {
	var in market.Instrument
	err := retry.Do(ctx, b.opts.Retry.MarketData, func(ctx context.Context) error {
		var err error
		in, err = b.broker.Instrument(ctx, b.opts.Epic)
		return err
	})
	if err != nil {
		return fmt.Errorf("instrument %s: %w", b.opts.Epic, err)
	}
	b.inst = in
	b.sized = true
	b.size()
	return nil
}

func (b *Bot) size() {
	in := b.inst
	p := b.opts.Sizing
	p.WorkingCapital = b.capital
	b.sizing = risk.ComputeSize(in, p)

	fields := []zap.Field{
		zap.Float64("size", b.sizing.Size),
		zap.Float64("tp_points", b.sizing.TakeProfit),
		zap.Float64("sl_points", b.sizing.StopLoss),
		zap.Float64("margin", b.sizing.Margin),
		zap.Float64("margin_cap", b.sizing.MarginCap),
		zap.Float64("exposure", b.sizing.Exposure),
		zap.Float64("exposure_cap", b.sizing.ExposureCap),
	}
	if !b.sizing.Feasible {
		b.log.Error("minimum deal size exceeds budget", append(fields, zap.Float64("min_size", in.MinDealSize))...)
		return
	}
	b.log.Info("sizing", fields...)
}

// check evaluates the stop conditions.
func (b *Bot) check() (StopReason, bool) {
	d := risk.Evaluate(b.opts.Limits, b.ledger.DayNet(), b.streak.Count())
	if d.Allowed {
		return "", false
	}
	for _, v := range d.Violations {
		b.log.Info("stop condition", zap.String("code", v.Code), zap.String("detail", v.Msg))
	}
	switch {
	case d.Has(risk.CodeDailyTarget):
		return StopTarget, true
	case d.Has(risk.CodeDailyLoss):
		return StopDailyLoss, true
	default:
		return StopLossStreak, true
	}
}

func (b *Bot) entryBars() int {
	return max(b.opts.Trade.ATRPeriod+2, 30)
}

// enter runs the entry gate, asks the strategy for a direction and submits
// the order. It returns false after sleeping when no trade was opened.
func (b *Bot) enter(ctx context.Context) (trade.OpenTrade, bool) {
	skip := func(cause string, wait time.Duration, fields ...zap.Field) (trade.OpenTrade, bool) {
		metricSkips.WithLabelValues(cause).Inc()
		b.log.Info("entry skipped", append([]zap.Field{zap.String("cause", cause)}, fields...)...)
		_ = retry.Sleep(ctx, wait)
		return trade.OpenTrade{}, false
	}

	if b.pending != "" {
		open, ok, err := b.adopt(ctx)
		if err != nil {
			return skip("reconcile_failed", b.opts.RetryBackoff, zap.String("deal_ref", b.pending), zap.Error(err))
		}
		if ok {
			return open, true
		}
	}

	var bars []market.Bar
	err := retry.Do(ctx, b.opts.Retry.MarketData, func(ctx context.Context) error {
		var err error
		bars, err = b.broker.RecentBars(ctx, b.opts.Epic, market.Minute, b.entryBars())
		return err
	})
	if err != nil {
		return skip("bars_error", b.opts.EntryRetry, zap.Error(err))
	}
	if len(bars) == 0 {
		return skip("no_bars", b.opts.EntryRetry)
	}

	atr := indicators.ATR(bars, b.opts.Trade.ATRPeriod)
	q, ok := indicators.LatestQuote(bars)
	switch {
	case !ok || !indicators.Ready(atr):
		return skip("indicators_not_ready", b.opts.EntryRetry, zap.Int("bars", len(bars)))
	case atr < b.opts.Trade.ATRMin:
		return skip("atr_low", b.opts.EntryRetry, zap.Float64("atr", atr), zap.Float64("min", b.opts.Trade.ATRMin))
	case q.HasSpread && q.Spread > b.opts.Trade.SpreadMax:
		return skip("spread_wide", b.opts.EntryRetry, zap.Float64("spread", q.Spread), zap.Float64("max", b.opts.Trade.SpreadMax))
	}

	sig, err := b.strategy.Direction(ctx, b.opts.Epic)
	if err != nil {
		return skip("strategy_error", b.opts.EntryRetry, zap.Error(err))
	}
	dir, ok := sig.Direction()
	if !ok {
		return skip("no_signal", b.opts.EntryRetry)
	}

	req := broker.OrderRequest{
		Epic:          b.opts.Epic,
		Expiry:        b.inst.Expiry,
		Currency:      b.inst.Currency,
		Direction:     dir,
		Size:          b.sizing.Size,
		LimitDistance: b.sizing.TakeProfit,
		StopDistance:  b.sizing.StopLoss,
	}
	var conf broker.Confirmation
	err = retry.Do(ctx, b.opts.Retry.Submit, func(ctx context.Context) error {
		var err error
		conf, err = b.broker.OpenMarket(ctx, req)
		if err == nil && !conf.Accepted() {
			err = fmt.Errorf("deal %s %s: %w", conf.DealRef, conf.Status, broker.ErrRejected)
		}
		return err
	})
	if errors.Is(err, broker.ErrUnconfirmed) {
		b.pending = conf.DealRef
		if b.pending == "" {
			b.pending = "unknown"
		}
		return skip("submit_unconfirmed", b.opts.RetryBackoff,
			zap.String("deal_ref", b.pending),
			zap.String("direction", string(dir)),
			zap.Float64("size", req.Size),
			zap.Error(err))
	}
	if err != nil {
		return skip("submit_failed", b.opts.RetryBackoff,
			zap.String("direction", string(dir)),
			zap.Float64("size", req.Size),
			zap.String("reason", conf.Reason),
			zap.Error(err))
	}

	entry, source := b.entryLevel(ctx, conf, q)
	b.log.Info("position opened",
		zap.String("deal_id", conf.DealID),
		zap.String("direction", string(dir)),
		zap.Float64("size", req.Size),
		zap.Float64("entry", entry),
		zap.String("entry_source", source),
		zap.Float64("tp_points", req.LimitDistance),
		zap.Float64("sl_points", req.StopDistance),
		zap.Float64("atr", atr),
		zap.Float64("spread", q.Spread))

	return trade.OpenTrade{
		DealID:     conf.DealID,
		Epic:       b.opts.Epic,
		Currency:   req.Currency,
		Expiry:     req.Expiry,
		Direction:  dir,
		Size:       req.Size,
		Entry:      entry,
		TakeProfit: req.LimitDistance,
	}, true
}

// adopt looks for a position on the epic left by an unconfirmed order and
// hands it to the manager. The pending reference is cleared once the
// positions have been listed.
func (b *Bot) adopt(ctx context.Context) (trade.OpenTrade, bool, error) {
	var positions []broker.Position
	err := retry.Do(ctx, b.opts.Retry.MarketData, func(ctx context.Context) error {
		var err error
		positions, err = b.broker.Positions(ctx)
		return err
	})
	if err != nil {
		return trade.OpenTrade{}, false, fmt.Errorf("list positions: %w", err)
	}
	ref := b.pending
	b.pending = ""

	var pos broker.Position
	for _, p := range positions {
		if p.Epic == b.opts.Epic {
			pos = p
			break
		}
	}
	if pos.DealID == "" {
		b.log.Info("unconfirmed deal not open", zap.String("deal_ref", ref))
		return trade.OpenTrade{}, false, nil
	}
	b.log.Warn("adopting unconfirmed deal",
		zap.String("deal_ref", ref),
		zap.String("deal_id", pos.DealID),
		zap.String("direction", string(pos.Direction)),
		zap.Float64("size", pos.Size),
		zap.Float64("entry", pos.Level))

	return trade.OpenTrade{
		DealID:     pos.DealID,
		Epic:       pos.Epic,
		Currency:   pos.Currency,
		Expiry:     pos.Expiry,
		Direction:  pos.Direction,
		Size:       pos.Size,
		Entry:      pos.Level,
		TakeProfit: b.sizing.TakeProfit,
	}, true, nil
}

// entryLevel prefers the broker's position record, then the confirmed
// level, then the last observed mid.
func (b *Bot) entryLevel(ctx context.Context, conf broker.Confirmation, q market.Quote) (float64, string) {
	ps, err := b.broker.Positions(ctx)
	if err != nil {
		b.log.Warn("position lookup failed", zap.Error(err))
	}
	if p, ok := broker.Find(ps, conf.DealID); ok && p.Level > 0 {
		return p.Level, "position"
	}
	if conf.Level > 0 {
		return conf.Level, "confirmation"
	}
	return q.Mid, "mid"
}

func (b *Bot) tradeParams() trade.Params {
	p := b.opts.Trade
	p.Amend = b.opts.Retry.Amend
	if b.inst.MinStopDistance > 0 {
		p.MinStopDistance = b.inst.MinStopDistance
	}
	return p
}

// book converts the outcome to money and appends it to the ledger. An
// unobserved outcome is booked at zero with a note.
func (b *Bot) book(open trade.OpenTrade, out trade.Outcome, merr error) error {
	rec := journal.TradeRecord{
		Time:      b.opts.Now(),
		Epic:      open.Epic,
		Direction: open.Direction,
		Size:      open.Size,
		Currency:  open.Currency,
		Entry:     open.Entry,
		Exit:      out.Exit,
		TPPoints:  open.TakeProfit,
		SLPoints:  b.sizing.StopLoss,
		Notes:     string(out.Reason),
	}
	switch {
	case out.Determinate():
		rec.MovePoints = out.Move
		rec.PnL = risk.PnL(*out.Move, b.inst, open.Size)
	case merr != nil:
		rec.Notes = fmt.Sprintf("%s: interrupted (%v), outcome unknown", out.Reason, merr)
	default:
		rec.Notes = fmt.Sprintf("%s: exit not observed, booked at zero", out.Reason)
	}

	rec, err := b.ledger.RecordTrade(rec)
	if err != nil {
		return fmt.Errorf("book trade %s: %w", open.DealID, err)
	}

	streak := b.streak.Record(rec.PnL)
	b.result.Trades++
	if rec.PnL > 0 {
		b.result.Wins++
	} else {
		b.result.Losses++
	}

	metricTrades.WithLabelValues(string(out.Reason)).Inc()
	metricDayNet.Set(b.ledger.DayNet())
	metricBalance.Set(b.ledger.Balance())
	metricStreak.Set(float64(streak))

	b.log.Info("trade booked",
		zap.String("id", rec.ID),
		zap.String("deal_id", open.DealID),
		zap.String("exit_reason", string(out.Reason)),
		zap.Bool("determinate", out.Determinate()),
		zap.Float64("pnl", rec.PnL),
		zap.Float64("day_net", b.ledger.DayNet()),
		zap.Float64("balance", rec.BalanceAfter),
		zap.Int("loss_streak", streak),
		zap.String("notes", rec.Notes))
	return nil
}

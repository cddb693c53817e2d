// Package trade manages one open position from entry to exit: it locks in
// breakeven with a trailing stop and exits when the entry premise fails.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/internal/retry"
	"github.com/rustyeddy/scalper/market"
)

// Params tune the manager.
type Params struct {
	EMAPeriod int
	ATRPeriod int

	ATRMin    float64 // points; below this the trade is closed
	SpreadMax float64 // points; above this the trade is closed

	BreakevenRatio  float64 // fraction of the take-profit distance
	BreakevenOffset float64 // points beyond entry for the breakeven stop
	TrailDistMult   float64 // × ATR
	TrailStepMult   float64 // × ATR
	MinTrailStep    float64 // points
	MinStopDistance float64 // broker minimum, points

	PollInterval time.Duration

	// Amend governs the breakeven amendment within one poll. A policy
	// without attempts tries once; the next poll tries again.
	Amend retry.Policy
}

// DefaultParams returns the standard management settings.
func DefaultParams() Params {
	return Params{
		EMAPeriod:       20,
		ATRPeriod:       14,
		ATRMin:          3,
		SpreadMax:       3,
		BreakevenRatio:  0.5,
		BreakevenOffset: 0.1,
		TrailDistMult:   0.8,
		TrailStepMult:   0.3,
		MinTrailStep:    0.1,
		MinStopDistance: 0.1,
		PollInterval:    5 * time.Second,
		Amend:           retry.Policy{Name: "amend", Attempts: 1},
	}
}

// Window is the number of bars needed for the indicators.
func (p Params) Window() int {
	return max(p.ATRPeriod+2, p.EMAPeriod, 30)
}

// Manager is not safe for concurrent use; one goroutine drives it.
type Manager struct {
	b   broker.Broker
	t   OpenTrade
	p   Params
	log *zap.Logger

	state   State
	outcome Outcome
}

// NewManager starts managing t in OpenUnmanaged.
func NewManager(b broker.Broker, t OpenTrade, p Params, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		b:   b,
		t:   t,
		p:   p,
		log: log.With(zap.String("deal_id", t.DealID), zap.String("direction", string(t.Direction))),
	}
}

func (m *Manager) State() State { return m.state }

// Outcome is meaningful once State is Closed.
func (m *Manager) Outcome() Outcome { return m.outcome }

// Run polls until the trade is closed or ctx is done. On cancellation the
// outcome is indeterminate with ExitCancelled and ctx's error is returned.
func (m *Manager) Run(ctx context.Context) (Outcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return m.cancel(err)
		}
		st, err := m.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return m.cancel(ctx.Err())
			}
			m.log.Error("poll failed", zap.Error(err))
		}
		if st == Closed {
			return m.outcome, nil
		}
		if err := retry.Sleep(ctx, m.p.PollInterval); err != nil {
			return m.cancel(err)
		}
	}
}

func (m *Manager) cancel(err error) (Outcome, error) {
	m.state = Closed
	m.outcome = Outcome{Reason: ExitCancelled}
	m.log.Warn("trade management interrupted", zap.Error(err))
	return m.outcome, err
}

// Poll runs one poll-decide-act cycle. Errors leave the state unchanged so
// the next poll can try again. Poll on a closed trade is a no-op.
func (m *Manager) Poll(ctx context.Context) (State, error) {
	if m.state == Closed {
		return Closed, nil
	}

	positions, err := m.b.Positions(ctx)
	if err != nil {
		return m.state, fmt.Errorf("list positions: %w", err)
	}
	pos, ok := broker.Find(positions, m.t.DealID)
	if !ok {
		m.closedByBroker(ctx)
		return m.state, nil
	}

	bars, err := m.b.RecentBars(ctx, m.t.Epic, market.Minute, m.p.Window())
	if err != nil {
		return m.state, fmt.Errorf("recent bars: %w", err)
	}
	if len(bars) == 0 {
		return m.state, nil
	}

	atr := indicators.ATR(bars, m.p.ATRPeriod)
	ema := indicators.EMA(indicators.Closes(bars), m.p.EMAPeriod)
	q, ok := indicators.LatestQuote(bars)
	if !ok || !indicators.Ready(atr, ema) {
		m.log.Debug("indicators not ready, holding")
		return m.state, nil
	}

	move := m.t.Direction.Move(m.t.Entry, q.Mid)

	if m.state == OpenUnmanaged && move >= m.t.TakeProfit*m.p.BreakevenRatio {
		m.activateTrailing(ctx, atr)
	}

	long := m.t.Direction.IsLong()
	if (long && q.Mid < ema) || (!long && q.Mid > ema) {
		m.log.Info("price crossed EMA, closing", zap.Float64("mid", q.Mid), zap.Float64("ema", ema))
		m.close(ctx, pos, ExitInvalidated, move, q.Mid)
		return m.state, nil
	}

	if atr < m.p.ATRMin || (q.HasSpread && q.Spread > m.p.SpreadMax) {
		m.log.Info("volatility or spread out of range, closing",
			zap.Float64("atr", atr),
			zap.Float64("spread", q.Spread),
		)
		m.close(ctx, pos, ExitDeteriorated, move, q.Mid)
		return m.state, nil
	}

	return m.state, nil
}

func (m *Manager) activateTrailing(ctx context.Context, atr float64) {
	dist := round2(max(atr*m.p.TrailDistMult, m.p.MinStopDistance))
	step := round2(max(atr*m.p.TrailStepMult, m.p.MinTrailStep))
	offset := m.p.BreakevenOffset
	if !m.t.Direction.IsLong() {
		offset = -offset
	}
	stop := round2(m.t.Entry + offset)

	amend := broker.Amendment{
		StopLevel:         &stop,
		Trailing:          true,
		TrailingDistance:  dist,
		TrailingIncrement: step,
	}
	pol := m.p.Amend
	if pol.Attempts <= 0 {
		pol.Attempts = 1
	}
	err := retry.Do(ctx, pol, func(ctx context.Context) error {
		return m.b.AmendPosition(ctx, m.t.DealID, amend)
	})
	if err != nil {
		m.log.Error("breakeven amendment failed", zap.Error(err))
		return
	}
	m.state = OpenTrailing
	m.log.Info("trailing activated",
		zap.Float64("distance", dist),
		zap.Float64("step", step),
		zap.Float64("stop_level", stop),
	)
}

// closedByBroker infers the exit from the latest tick; the actual fill of
// the broker-side stop or limit is not observed.
func (m *Manager) closedByBroker(ctx context.Context) {
	m.state = Closed
	m.outcome = Outcome{Reason: ExitBrokerClosed}

	bars, err := m.b.RecentBars(ctx, m.t.Epic, market.Minute, 2)
	if err != nil {
		m.log.Error("position gone, exit price unknown", zap.Error(err))
		return
	}
	q, ok := indicators.LatestQuote(bars)
	if !ok {
		m.log.Warn("position gone, no price to value it")
		return
	}
	m.outcome = observed(ExitBrokerClosed, m.t.Direction.Move(m.t.Entry, q.Mid), q.Mid)
	m.log.Info("position closed by broker",
		zap.Float64("move", *m.outcome.Move),
		zap.Float64("exit", q.Mid),
	)
}

// close sends the single close instruction for this trade. The outcome is
// the move observed at decision time whether or not the broker accepts it.
func (m *Manager) close(ctx context.Context, pos broker.Position, reason ExitReason, move, mid float64) {
	m.state = Closed
	m.outcome = observed(reason, move, mid)

	req := broker.CloseFor(pos)
	if req.Epic == "" {
		req.Epic = m.t.Epic
	}
	ref, err := m.b.ClosePosition(ctx, req)
	switch {
	case errors.Is(err, broker.ErrNotFound):
		m.log.Info("position already closed")
	case err != nil:
		m.log.Error("close instruction failed", zap.Error(err))
	default:
		m.log.Info("close instruction sent", zap.String("deal_ref", ref), zap.String("reason", string(reason)))
	}
}

func round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

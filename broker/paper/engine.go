// Package paper simulates dealing locally while reading live market data
// from another broker. Fills, stops, limits and trailing stops are evaluated
// against the latest bar close.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/indicators"
	"github.com/rustyeddy/scalper/internal/id"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
)

var (
	ErrTradeNotFound = fmt.Errorf("paper position: %w", broker.ErrNotFound)
	ErrNoPrice       = errors.New("paper: no price available")
)

// Exit reasons recorded on fills.
const (
	ReasonStop  = "STOP"
	ReasonLimit = "LIMIT"
	ReasonClose = "CLOSE"
)

// Fill is a closed paper position.
type Fill struct {
	DealID    string
	Epic      string
	Direction market.Direction
	Size      float64
	Entry     float64
	Exit      float64
	PnL       float64
	Reason    string
	Time      time.Time
}

type position struct {
	broker.Position
	inst market.Instrument

	limit     *float64
	stop      *float64
	trailing  bool
	trailDist float64
	trailStep float64
}

// Engine implements broker.Broker. Market data calls go to the data source.
type Engine struct {
	data broker.Broker
	log  *zap.Logger
	now  func() time.Time

	mu        sync.Mutex
	balance   float64
	positions map[string]*position
	fills     []Fill
}

var _ broker.Broker = (*Engine)(nil)

// NewEngine returns a paper account holding balance.
func NewEngine(data broker.Broker, balance float64, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		data:      data,
		log:       log,
		now:       time.Now,
		balance:   balance,
		positions: make(map[string]*position),
	}
}

func (e *Engine) Login(ctx context.Context) error  { return e.data.Login(ctx) }
func (e *Engine) Logout(ctx context.Context) error { return e.data.Logout(ctx) }

func (e *Engine) SearchMarkets(ctx context.Context, term string) ([]broker.MarketSummary, error) {
	return e.data.SearchMarkets(ctx, term)
}

func (e *Engine) Instrument(ctx context.Context, epic string) (market.Instrument, error) {
	return e.data.Instrument(ctx, epic)
}

func (e *Engine) RecentBars(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Bar, error) {
	return e.data.RecentBars(ctx, epic, res, n)
}

// Balance returns the cash balance after realised fills.
func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// Fills returns the closed positions in close order.
func (e *Engine) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Fill(nil), e.fills...)
}

func (e *Engine) quote(ctx context.Context, epic string) (market.Quote, error) {
	bars, err := e.data.RecentBars(ctx, epic, market.Minute, 1)
	if err != nil {
		return market.Quote{}, err
	}
	q, ok := indicators.LatestQuote(bars)
	if !ok {
		return market.Quote{}, fmt.Errorf("%w for %s", ErrNoPrice, epic)
	}
	return q, nil
}

// OpenMarket fills at the current ask (buy) or bid (sell).
func (e *Engine) OpenMarket(ctx context.Context, req broker.OrderRequest) (broker.Confirmation, error) {
	if req.Size <= 0 {
		return broker.Confirmation{Status: "REJECTED", Reason: "INVALID_SIZE"}, fmt.Errorf("open position: %w: size %v", broker.ErrRejected, req.Size)
	}
	inst, err := e.data.Instrument(ctx, req.Epic)
	if err != nil {
		return broker.Confirmation{}, fmt.Errorf("open position: %w", err)
	}
	q, err := e.quote(ctx, req.Epic)
	if err != nil {
		return broker.Confirmation{}, fmt.Errorf("open position: %w", err)
	}

	fill := q.Fill(req.Direction)
	dealID := id.New()
	p := &position{
		Position: broker.Position{
			DealID:    dealID,
			Epic:      req.Epic,
			Name:      inst.Name,
			Expiry:    req.Expiry,
			Currency:  req.Currency,
			Direction: req.Direction,
			Size:      req.Size,
			Level:     fill,
			Bid:       q.Bid,
			Offer:     q.Ask,
		},
		inst: inst,
	}
	if req.LimitDistance > 0 {
		lvl := fill + sign(req.Direction)*req.LimitDistance
		p.limit = &lvl
	}
	if req.StopDistance > 0 {
		lvl := fill - sign(req.Direction)*req.StopDistance
		p.stop = &lvl
	}

	e.mu.Lock()
	e.positions[dealID] = p
	e.mu.Unlock()

	e.log.Info("paper fill",
		zap.String("deal_id", dealID),
		zap.String("direction", string(req.Direction)),
		zap.Float64("size", req.Size),
		zap.Float64("level", fill),
	)
	return broker.Confirmation{
		DealRef: "PAPER-" + dealID,
		DealID:  dealID,
		Status:  "ACCEPTED",
		Level:   fill,
	}, nil
}

// AmendPosition replaces the protective orders of an open paper position.
func (e *Engine) AmendPosition(ctx context.Context, dealID string, a broker.Amendment) error {
	if a.Trailing && (a.StopLevel == nil || a.TrailingDistance <= 0 || a.TrailingIncrement <= 0) {
		return errors.New("amend position: trailing stop requires stop level, distance and increment")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[dealID]
	if !ok {
		return fmt.Errorf("amend %q: %w", dealID, ErrTradeNotFound)
	}
	if a.LimitLevel != nil {
		lvl := *a.LimitLevel
		p.limit = &lvl
	}
	if a.StopLevel != nil {
		lvl := *a.StopLevel
		p.stop = &lvl
	}
	p.trailing = a.Trailing
	p.trailDist = a.TrailingDistance
	p.trailStep = a.TrailingIncrement
	return nil
}

// Positions marks every open position to the latest price, closes those
// whose stop or limit was reached and lists the rest.
func (e *Engine) Positions(ctx context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	epics := map[string]bool{}
	for _, p := range e.positions {
		epics[p.Epic] = true
	}
	e.mu.Unlock()

	quotes := make(map[string]market.Quote, len(epics))
	for epic := range epics {
		q, err := e.quote(ctx, epic)
		if err != nil {
			return nil, fmt.Errorf("list positions: %w", err)
		}
		quotes[epic] = q
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for dealID, p := range e.positions {
		q, ok := quotes[p.Epic]
		if !ok {
			out = append(out, p.Position)
			continue
		}
		p.Bid, p.Offer = q.Bid, q.Ask
		if reason, exit := p.mark(q); reason != "" {
			e.closeLocked(dealID, p, exit, reason)
			continue
		}
		out = append(out, p.Position)
	}
	return out, nil
}

// ClosePosition closes at the current bid (long) or ask (short).
func (e *Engine) ClosePosition(ctx context.Context, req broker.CloseRequest) (string, error) {
	e.mu.Lock()
	p, ok := e.positions[req.DealID]
	e.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("close %q: %w", req.DealID, ErrTradeNotFound)
	}

	q, err := e.quote(ctx, p.Epic)
	if err != nil {
		return "", fmt.Errorf("close position: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.positions[req.DealID]; !ok {
		return "", fmt.Errorf("close %q: %w", req.DealID, ErrTradeNotFound)
	}
	e.closeLocked(req.DealID, p, q.Fill(p.Direction.Opposite()), ReasonClose)
	return "PAPER-CLOSE-" + req.DealID, nil
}

func (e *Engine) closeLocked(dealID string, p *position, exit float64, reason string) {
	pnl := risk.PnL(p.Direction.Move(p.Level, exit), p.inst, p.Size)
	e.balance += pnl
	e.fills = append(e.fills, Fill{
		DealID:    dealID,
		Epic:      p.Epic,
		Direction: p.Direction,
		Size:      p.Size,
		Entry:     p.Level,
		Exit:      exit,
		PnL:       pnl,
		Reason:    reason,
		Time:      e.now(),
	})
	delete(e.positions, dealID)

	e.log.Info("paper close",
		zap.String("deal_id", dealID),
		zap.String("reason", reason),
		zap.Float64("exit", exit),
		zap.Float64("pnl", pnl),
	)
}

func sign(d market.Direction) float64 {
	if d.IsLong() {
		return 1
	}
	return -1
}

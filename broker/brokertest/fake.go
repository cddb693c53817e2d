// Package brokertest provides a scriptable in-memory broker for tests.
package brokertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/market"
)

// Fake implements broker.Broker. Nil hooks fall back to empty successes;
// every dealing call is recorded.
type Fake struct {
	LoginErr    error
	Instruments map[string]market.Instrument
	SearchFn    func(term string) ([]broker.MarketSummary, error)
	BarsFn      func(epic string, res market.Resolution, n int) ([]market.Bar, error)
	OpenFn      func(req broker.OrderRequest) (broker.Confirmation, error)
	AmendFn     func(dealID string, a broker.Amendment) error
	PositionsFn func() ([]broker.Position, error)
	CloseFn     func(req broker.CloseRequest) (string, error)

	mu         sync.Mutex
	logins     int
	logouts    int
	opens      []broker.OrderRequest
	amends     []broker.Amendment
	closes     []broker.CloseRequest
	barsAsked  []int
	instLookup int
}

var _ broker.Broker = (*Fake)(nil)

func (f *Fake) Login(ctx context.Context) error {
	f.mu.Lock()
	f.logins++
	f.mu.Unlock()
	return f.LoginErr
}

func (f *Fake) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
	return nil
}

func (f *Fake) SearchMarkets(ctx context.Context, term string) ([]broker.MarketSummary, error) {
	if f.SearchFn == nil {
		return nil, nil
	}
	return f.SearchFn(term)
}

func (f *Fake) Instrument(ctx context.Context, epic string) (market.Instrument, error) {
	f.mu.Lock()
	f.instLookup++
	f.mu.Unlock()
	in, ok := f.Instruments[epic]
	if !ok {
		return market.Instrument{}, fmt.Errorf("instrument %s: %w", epic, broker.ErrNotFound)
	}
	return in, nil
}

func (f *Fake) RecentBars(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Bar, error) {
	f.mu.Lock()
	f.barsAsked = append(f.barsAsked, n)
	f.mu.Unlock()
	if f.BarsFn == nil {
		return nil, nil
	}
	return f.BarsFn(epic, res, n)
}

func (f *Fake) OpenMarket(ctx context.Context, req broker.OrderRequest) (broker.Confirmation, error) {
	f.mu.Lock()
	f.opens = append(f.opens, req)
	f.mu.Unlock()
	if f.OpenFn == nil {
		return broker.Confirmation{}, broker.ErrRejected
	}
	return f.OpenFn(req)
}

func (f *Fake) AmendPosition(ctx context.Context, dealID string, a broker.Amendment) error {
	f.mu.Lock()
	f.amends = append(f.amends, a)
	f.mu.Unlock()
	if f.AmendFn == nil {
		return nil
	}
	return f.AmendFn(dealID, a)
}

func (f *Fake) Positions(ctx context.Context) ([]broker.Position, error) {
	if f.PositionsFn == nil {
		return nil, nil
	}
	return f.PositionsFn()
}

func (f *Fake) ClosePosition(ctx context.Context, req broker.CloseRequest) (string, error) {
	f.mu.Lock()
	f.closes = append(f.closes, req)
	f.mu.Unlock()
	if f.CloseFn == nil {
		return "REF-" + req.DealID, nil
	}
	return f.CloseFn(req)
}

func (f *Fake) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *Fake) Logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

func (f *Fake) Opens() []broker.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.OrderRequest(nil), f.opens...)
}

func (f *Fake) Amends() []broker.Amendment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.Amendment(nil), f.amends...)
}

func (f *Fake) Closes() []broker.CloseRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.CloseRequest(nil), f.closes...)
}

// BarsAsked returns the bar counts requested, in call order.
func (f *Fake) BarsAsked() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.barsAsked...)
}

// InstrumentLookups counts Instrument calls.
func (f *Fake) InstrumentLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instLookup
}
